package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// IssuanceRow mirrors one row of the issuances relation.
type IssuanceRow struct {
	TxIndex    int64
	TxHash     string
	BlockIndex int64
	Asset      string
	Quantity   int64
	Divisible  bool
	Issuer     string
	Status     string
}

// EscrowRow is one escrowed claim held against an asset by an open,
// not-yet-settled protocol action.
type EscrowRow struct {
	Address  string
	Asset    string
	Quantity int64
	Status   string
	Ref      string
}

// RegisterAsset records a freshly generated asset in the registry. Asset ids
// are stored as decimal text: the id space extends to 2^64-1, beyond the
// engine's signed integer column type.
func (s *Store) RegisterAsset(ctx context.Context, id uint64, name string, blockIndex int64, longname string) error {
	var long any
	if longname != "" {
		long = longname
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets(asset_id, asset_name, block_index, asset_longname) VALUES(?, ?, ?, ?)`,
		strconv.FormatUint(id, 10), name, blockIndex, long)
	if err != nil {
		return fmt.Errorf("storage: register asset: %w", err)
	}
	return nil
}

// AssetIDByName looks up a registered asset id.
func (s *Store) AssetIDByName(ctx context.Context, name string) (uint64, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT asset_id FROM assets WHERE asset_name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage: query asset id: %w", err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("storage: corrupt asset id %q: %w", raw, err)
	}
	return id, true, nil
}

// AssetNameByID looks up a registered asset name.
func (s *Store) AssetNameByID(ctx context.Context, id uint64) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT asset_name FROM assets WHERE asset_id = ?`,
		strconv.FormatUint(id, 10)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: query asset name: %w", err)
	}
	return name, true, nil
}

// AssetNameByLongname looks up the asset assigned to a subasset longname.
func (s *Store) AssetNameByLongname(ctx context.Context, longname string) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT asset_name FROM assets WHERE asset_longname = ?`, longname).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: query asset by longname: %w", err)
	}
	return name, true, nil
}

// InsertIssuance records an issuance row. Issuance itself is handled outside
// this engine; the row shape is part of the shared storage contract.
func (s *Store) InsertIssuance(ctx context.Context, row IssuanceRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issuances(tx_index, tx_hash, block_index, asset, quantity, divisible, issuer, status)
         VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		row.TxIndex, row.TxHash, row.BlockIndex, row.Asset, row.Quantity, row.Divisible, row.Issuer, row.Status)
	if err != nil {
		return fmt.Errorf("storage: insert issuance: %w", err)
	}
	return nil
}

// ValidIssuances returns the valid issuance rows for an asset in transaction
// order.
func (s *Store) ValidIssuances(ctx context.Context, asset string) ([]IssuanceRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tx_index, tx_hash, block_index, asset, quantity, divisible, issuer, status
         FROM issuances WHERE status = 'valid' AND asset = ? ORDER BY tx_index ASC`, asset)
	if err != nil {
		return nil, fmt.Errorf("storage: query issuances: %w", err)
	}
	defer rows.Close()

	var out []IssuanceRow
	for rows.Next() {
		var row IssuanceRow
		if err := rows.Scan(&row.TxIndex, &row.TxHash, &row.BlockIndex, &row.Asset,
			&row.Quantity, &row.Divisible, &row.Issuer, &row.Status); err != nil {
			return nil, fmt.Errorf("storage: scan issuance: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// IssuedTotal sums the valid issuance quantities for an asset.
func (s *Store) IssuedTotal(ctx context.Context, asset string) (int64, error) {
	return s.sumQuery(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM issuances WHERE status = 'valid' AND asset = ?`, asset)
}

// InsertDestruction records a destruction row.
func (s *Store) InsertDestruction(ctx context.Context, txIndex int64, txHash string, blockIndex int64, source, asset string, quantity int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO destructions(tx_index, tx_hash, block_index, source, asset, quantity, status)
         VALUES(?, ?, ?, ?, ?, ?, ?)`,
		txIndex, txHash, blockIndex, source, asset, quantity, status)
	if err != nil {
		return fmt.Errorf("storage: insert destruction: %w", err)
	}
	return nil
}

// DestroyedTotal sums the valid destruction quantities for an asset.
func (s *Store) DestroyedTotal(ctx context.Context, asset string) (int64, error) {
	return s.sumQuery(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM destructions WHERE status = 'valid' AND asset = ?`, asset)
}

// InsertEscrow records an escrowed claim. The writing modules live outside
// this engine; Holders reads the rows back.
func (s *Store) InsertEscrow(ctx context.Context, row EscrowRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO escrows(address, asset, quantity, status, ref) VALUES(?, ?, ?, ?, ?)`,
		row.Address, row.Asset, row.Quantity, row.Status, row.Ref)
	if err != nil {
		return fmt.Errorf("storage: insert escrow: %w", err)
	}
	return nil
}

// OpenEscrows returns the open escrow rows holding the given asset.
func (s *Store) OpenEscrows(ctx context.Context, asset string) ([]EscrowRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, asset, quantity, status, ref FROM escrows WHERE asset = ? AND status = 'open'`, asset)
	if err != nil {
		return nil, fmt.Errorf("storage: query escrows: %w", err)
	}
	defer rows.Close()

	var out []EscrowRow
	for rows.Next() {
		var row EscrowRow
		if err := rows.Scan(&row.Address, &row.Asset, &row.Quantity, &row.Status, &row.Ref); err != nil {
			return nil, fmt.Errorf("storage: scan escrow: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) sumQuery(ctx context.Context, query string, args ...any) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("storage: sum query: %w", err)
	}
	return total, nil
}
