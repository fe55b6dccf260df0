package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BroadcastRow mirrors one row of the broadcasts relation. The nullable
// fields are absent for lock sentinels and undecodable payloads.
type BroadcastRow struct {
	TxIndex        int64
	TxHash         string
	BlockIndex     int64
	Source         string
	Timestamp      sql.NullInt64
	Value          sql.NullFloat64
	FeeFractionInt sql.NullInt64
	Text           sql.NullString
	Locked         bool
	Status         string
}

// DividendRow mirrors one row of the dividends relation.
type DividendRow struct {
	TxIndex         int64
	TxHash          string
	BlockIndex      int64
	Source          string
	Asset           sql.NullString
	DividendAsset   sql.NullString
	QuantityPerUnit sql.NullInt64
	FeePaid         int64
	Status          string
}

// ProofOfWorkRow mirrors one row of the proofofwork relation.
type ProofOfWorkRow struct {
	TxHash     string
	BlockIndex int64
	Address    string
	Mined      int64
	Status     string
}

// InsertBroadcast records a parsed broadcast.
func (s *Store) InsertBroadcast(ctx context.Context, row BroadcastRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO broadcasts(tx_index, tx_hash, block_index, source, timestamp, value, fee_fraction_int, text, locked, status)
         VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.TxIndex, row.TxHash, row.BlockIndex, row.Source,
		row.Timestamp, row.Value, row.FeeFractionInt, row.Text, row.Locked, row.Status)
	if err != nil {
		return fmt.Errorf("storage: insert broadcast: %w", err)
	}
	return nil
}

// LastValidBroadcast returns the latest valid broadcast from the source feed.
func (s *Store) LastValidBroadcast(ctx context.Context, source string) (*BroadcastRow, bool, error) {
	row := &BroadcastRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT tx_index, tx_hash, block_index, source, timestamp, value, fee_fraction_int, text, locked, status
         FROM broadcasts WHERE status = 'valid' AND source = ? ORDER BY tx_index DESC LIMIT 1`,
		source).Scan(&row.TxIndex, &row.TxHash, &row.BlockIndex, &row.Source,
		&row.Timestamp, &row.Value, &row.FeeFractionInt, &row.Text, &row.Locked, &row.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: query last broadcast: %w", err)
	}
	return row, true, nil
}

// UpsertAddressOptions stores the options value for an address, replacing any
// earlier setting.
func (s *Store) UpsertAddressOptions(ctx context.Context, address string, options int64, blockIndex int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO addresses(address, options, block_index) VALUES(?, ?, ?)`,
		address, options, blockIndex)
	if err != nil {
		return fmt.Errorf("storage: upsert address options: %w", err)
	}
	return nil
}

// AddressOptions returns the options value recorded for an address.
func (s *Store) AddressOptions(ctx context.Context, address string) (int64, bool, error) {
	var options int64
	err := s.db.QueryRowContext(ctx,
		`SELECT options FROM addresses WHERE address = ?`, address).Scan(&options)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage: query address options: %w", err)
	}
	return options, true, nil
}

// InsertDividend records a parsed dividend.
func (s *Store) InsertDividend(ctx context.Context, row DividendRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dividends(tx_index, tx_hash, block_index, source, asset, dividend_asset, quantity_per_unit, fee_paid, status)
         VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.TxIndex, row.TxHash, row.BlockIndex, row.Source,
		row.Asset, row.DividendAsset, row.QuantityPerUnit, row.FeePaid, row.Status)
	if err != nil {
		return fmt.Errorf("storage: insert dividend: %w", err)
	}
	return nil
}

// InsertProofOfWork records a pending payout.
func (s *Store) InsertProofOfWork(ctx context.Context, row ProofOfWorkRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proofofwork(tx_hash, block_index, address, mined, status) VALUES(?, ?, ?, ?, ?)`,
		row.TxHash, row.BlockIndex, row.Address, row.Mined, row.Status)
	if err != nil {
		return fmt.Errorf("storage: insert proofofwork: %w", err)
	}
	return nil
}

// PendingProofOfWork returns the pending payout rows recorded at or below
// the given block index.
func (s *Store) PendingProofOfWork(ctx context.Context, maxBlockIndex int64) ([]ProofOfWorkRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tx_hash, block_index, address, mined, status FROM proofofwork
         WHERE block_index <= ? AND status = 'pending'`, maxBlockIndex)
	if err != nil {
		return nil, fmt.Errorf("storage: query pending proofofwork: %w", err)
	}
	defer rows.Close()

	var out []ProofOfWorkRow
	for rows.Next() {
		var row ProofOfWorkRow
		if err := rows.Scan(&row.TxHash, &row.BlockIndex, &row.Address, &row.Mined, &row.Status); err != nil {
			return nil, fmt.Errorf("storage: scan proofofwork: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ConfirmProofOfWork marks the pending payouts recorded at the given block
// index as confirmed.
func (s *Store) ConfirmProofOfWork(ctx context.Context, blockIndex int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE proofofwork SET status = 'confirmed' WHERE block_index = ? AND status = 'pending'`,
		blockIndex)
	if err != nil {
		return fmt.Errorf("storage: confirm proofofwork: %w", err)
	}
	return nil
}

// ProofOfWork returns the payout row for a transaction hash.
func (s *Store) ProofOfWork(ctx context.Context, txHash string) (*ProofOfWorkRow, bool, error) {
	row := &ProofOfWorkRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT tx_hash, block_index, address, mined, status FROM proofofwork WHERE tx_hash = ?`,
		txHash).Scan(&row.TxHash, &row.BlockIndex, &row.Address, &row.Mined, &row.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: query proofofwork: %w", err)
	}
	return row, true, nil
}

// ConfirmedMinedTotal sums the confirmed proof-of-work payouts.
func (s *Store) ConfirmedMinedTotal(ctx context.Context) (int64, error) {
	return s.sumQuery(ctx,
		`SELECT COALESCE(SUM(mined), 0) FROM proofofwork WHERE status = 'confirmed'`)
}

// Broadcast returns the broadcast row stored for a transaction hash.
func (s *Store) Broadcast(ctx context.Context, txHash string) (*BroadcastRow, bool, error) {
	row := &BroadcastRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT tx_index, tx_hash, block_index, source, timestamp, value, fee_fraction_int, text, locked, status
         FROM broadcasts WHERE tx_hash = ?`,
		txHash).Scan(&row.TxIndex, &row.TxHash, &row.BlockIndex, &row.Source,
		&row.Timestamp, &row.Value, &row.FeeFractionInt, &row.Text, &row.Locked, &row.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: query broadcast: %w", err)
	}
	return row, true, nil
}

// Dividend returns the dividend row stored for a transaction hash.
func (s *Store) Dividend(ctx context.Context, txHash string) (*DividendRow, bool, error) {
	row := &DividendRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT tx_index, tx_hash, block_index, source, asset, dividend_asset, quantity_per_unit, fee_paid, status
         FROM dividends WHERE tx_hash = ?`,
		txHash).Scan(&row.TxIndex, &row.TxHash, &row.BlockIndex, &row.Source,
		&row.Asset, &row.DividendAsset, &row.QuantityPerUnit, &row.FeePaid, &row.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: query dividend: %w", err)
	}
	return row, true, nil
}
