package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BalanceRow is one (address, asset) balance.
type BalanceRow struct {
	Address  string
	Asset    string
	Quantity int64
}

// LedgerEventRow is one append-only credit or debit record.
type LedgerEventRow struct {
	BlockIndex int64
	Address    string
	Asset      string
	Quantity   int64
	Action     string
	Event      string
}

// Balance returns the quantity held by address in asset, along with whether
// a balance row exists at all.
func (s *Store) Balance(ctx context.Context, address, asset string) (int64, bool, error) {
	var quantity int64
	err := s.db.QueryRowContext(ctx,
		`SELECT quantity FROM balances WHERE address = ? AND asset = ?`,
		address, asset).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage: query balance: %w", err)
	}
	return quantity, true, nil
}

// CreateBalance inserts a fresh balance row.
func (s *Store) CreateBalance(ctx context.Context, address, asset string, quantity int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balances(address, asset, quantity) VALUES(?, ?, ?)`,
		address, asset, quantity)
	if err != nil {
		return fmt.Errorf("storage: insert balance: %w", err)
	}
	return nil
}

// SetBalance overwrites an existing balance row.
func (s *Store) SetBalance(ctx context.Context, address, asset string, quantity int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE balances SET quantity = ? WHERE address = ? AND asset = ?`,
		quantity, address, asset)
	if err != nil {
		return fmt.Errorf("storage: update balance: %w", err)
	}
	return nil
}

// BalancesForAsset returns every balance row for the asset, including rows
// whose quantity has dropped to zero.
func (s *Store) BalancesForAsset(ctx context.Context, asset string) ([]BalanceRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, asset, quantity FROM balances WHERE asset = ?`, asset)
	if err != nil {
		return nil, fmt.Errorf("storage: query balances: %w", err)
	}
	defer rows.Close()

	var out []BalanceRow
	for rows.Next() {
		var row BalanceRow
		if err := rows.Scan(&row.Address, &row.Asset, &row.Quantity); err != nil {
			return nil, fmt.Errorf("storage: scan balance: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// InsertCredit appends a credit record.
func (s *Store) InsertCredit(ctx context.Context, row LedgerEventRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credits(block_index, address, asset, quantity, action, event) VALUES(?, ?, ?, ?, ?, ?)`,
		row.BlockIndex, row.Address, row.Asset, row.Quantity, row.Action, row.Event)
	if err != nil {
		return fmt.Errorf("storage: insert credit: %w", err)
	}
	return nil
}

// InsertDebit appends a debit record.
func (s *Store) InsertDebit(ctx context.Context, row LedgerEventRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO debits(block_index, address, asset, quantity, action, event) VALUES(?, ?, ?, ?, ?, ?)`,
		row.BlockIndex, row.Address, row.Asset, row.Quantity, row.Action, row.Event)
	if err != nil {
		return fmt.Errorf("storage: insert debit: %w", err)
	}
	return nil
}

// Credits returns the credit records for an address in insertion order.
func (s *Store) Credits(ctx context.Context, address string) ([]LedgerEventRow, error) {
	return s.ledgerEvents(ctx, "credits", address)
}

// Debits returns the debit records for an address in insertion order.
func (s *Store) Debits(ctx context.Context, address string) ([]LedgerEventRow, error) {
	return s.ledgerEvents(ctx, "debits", address)
}

func (s *Store) ledgerEvents(ctx context.Context, table, address string) ([]LedgerEventRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block_index, address, asset, quantity, action, event FROM `+table+` WHERE address = ? ORDER BY rowid ASC`,
		address)
	if err != nil {
		return nil, fmt.Errorf("storage: query %s: %w", table, err)
	}
	defer rows.Close()

	var out []LedgerEventRow
	for rows.Next() {
		var row LedgerEventRow
		if err := rows.Scan(&row.BlockIndex, &row.Address, &row.Asset, &row.Quantity, &row.Action, &row.Event); err != nil {
			return nil, fmt.Errorf("storage: scan %s: %w", table, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
