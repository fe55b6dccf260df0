package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// UndoOp is the inverse of one ledger mutation. Applying a block's ops in
// reverse order restores the balances the block touched.
type UndoOp struct {
	Op       string // "credit" or "debit"
	Address  string
	Asset    string
	Quantity uint64
	Action   string
	Event    string
}

// SaveUndoJournal stores the undo ops for a block and prunes journals older
// than the retention window.
func (s *Store) SaveUndoJournal(ctx context.Context, blockIndex int64, ops []UndoOp, maxPastBlocks int64) error {
	encoded, err := rlp.EncodeToBytes(ops)
	if err != nil {
		return fmt.Errorf("storage: encode undo journal: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO undo_journal(block_index, ops) VALUES(?, ?)`,
		blockIndex, encoded); err != nil {
		return fmt.Errorf("storage: save undo journal: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM undo_journal WHERE block_index < ?`, blockIndex-maxPastBlocks); err != nil {
		return fmt.Errorf("storage: prune undo journal: %w", err)
	}
	return nil
}

// UndoJournal loads the undo ops stored for a block. A missing journal
// returns an empty slice: blocks without ledger mutations store nothing
// worth reverting.
func (s *Store) UndoJournal(ctx context.Context, blockIndex int64) ([]UndoOp, error) {
	var encoded []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT ops FROM undo_journal WHERE block_index = ?`, blockIndex).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: query undo journal: %w", err)
	}
	var ops []UndoOp
	if err := rlp.DecodeBytes(encoded, &ops); err != nil {
		return nil, fmt.Errorf("storage: decode undo journal: %w", err)
	}
	return ops, nil
}
