// Package ledger owns the per-(address, asset) balance rows and their
// append-only credit/debit trail. Message handlers never touch balances
// directly; every state-changing message ends here, and a debit or credit
// failing after validation has approved the message is a consensus-engine
// bug, not a recoverable condition.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"aspchain/config"
	"aspchain/observability"
	"aspchain/storage"
)

var (
	// ErrDebit marks a violated debit invariant.
	ErrDebit = errors.New("ledger: debit")
	// ErrCredit marks a violated credit invariant.
	ErrCredit = errors.New("ledger: credit")
)

// Ledger applies balance mutations against the store and keeps the per-block
// replay-audit state consumed by external reorg tooling.
type Ledger struct {
	store *storage.Store

	fingerprints []string
	undo         []storage.UndoOp
}

// New creates a ledger over the given store.
func New(store *storage.Store) *Ledger {
	return &Ledger{store: store}
}

// Debit decreases the address's balance in asset. The quantity must be a
// non-negative integer no greater than the address's current balance, and the
// host chain's native currency is never tracked here.
func (l *Ledger) Debit(ctx context.Context, blockIndex int64, address, asset string, quantity int64, action, event string) error {
	if quantity < 0 {
		return fmt.Errorf("%w: negative quantity", ErrDebit)
	}
	if asset == config.GasAsset {
		return fmt.Errorf("%w: cannot debit %s", ErrDebit, config.GasAsset)
	}

	balance, _, err := l.store.Balance(ctx, address, asset)
	if err != nil {
		return err
	}
	if balance < quantity {
		return fmt.Errorf("%w: insufficient funds", ErrDebit)
	}

	updated := balance - quantity
	if updated > config.MaxInt {
		updated = config.MaxInt
	}
	if err := l.store.SetBalance(ctx, address, asset, updated); err != nil {
		return err
	}
	if err := l.store.InsertDebit(ctx, storage.LedgerEventRow{
		BlockIndex: blockIndex,
		Address:    address,
		Asset:      asset,
		Quantity:   quantity,
		Action:     action,
		Event:      event,
	}); err != nil {
		return err
	}

	l.recordMutation(blockIndex, "credit", address, asset, quantity, action, event)
	observability.EngineMetrics().LedgerEvent("debit")
	return nil
}

// Credit increases the address's balance in asset, creating the balance row
// on first contact. The committed figure is clamped to MaxInt.
func (l *Ledger) Credit(ctx context.Context, blockIndex int64, address, asset string, quantity int64, action, event string) error {
	if quantity < 0 {
		return fmt.Errorf("%w: negative quantity", ErrCredit)
	}
	if asset == config.GasAsset {
		return fmt.Errorf("%w: cannot credit %s", ErrCredit, config.GasAsset)
	}

	balance, exists, err := l.store.Balance(ctx, address, asset)
	if err != nil {
		return err
	}
	if !exists {
		if err := l.store.CreateBalance(ctx, address, asset, quantity); err != nil {
			return err
		}
	} else {
		updated := balance + quantity
		if updated < balance || updated > config.MaxInt {
			updated = config.MaxInt
		}
		if err := l.store.SetBalance(ctx, address, asset, updated); err != nil {
			return err
		}
	}

	if err := l.store.InsertCredit(ctx, storage.LedgerEventRow{
		BlockIndex: blockIndex,
		Address:    address,
		Asset:      asset,
		Quantity:   quantity,
		Action:     action,
		Event:      event,
	}); err != nil {
		return err
	}

	l.recordMutation(blockIndex, "debit", address, asset, quantity, action, event)
	observability.EngineMetrics().LedgerEvent("credit")
	return nil
}

// Transfer moves quantity of asset from source to destination. Atomicity
// across a crash boundary is the enclosing block transaction's job; this
// only guarantees the debit happens before the credit.
func (l *Ledger) Transfer(ctx context.Context, blockIndex int64, source, destination, asset string, quantity int64, action, event string) error {
	if err := l.Debit(ctx, blockIndex, source, asset, quantity, action, event); err != nil {
		return err
	}
	return l.Credit(ctx, blockIndex, destination, asset, quantity, action, event)
}

// Balance returns the spendable balance of address in asset.
func (l *Ledger) Balance(ctx context.Context, address, asset string) (int64, error) {
	balance, _, err := l.store.Balance(ctx, address, asset)
	return balance, err
}

func (l *Ledger) recordMutation(blockIndex int64, inverseOp, address, asset string, quantity int64, action, event string) {
	l.fingerprints = append(l.fingerprints,
		fmt.Sprintf("%d%s%s%d", blockIndex, address, asset, quantity))
	l.undo = append(l.undo, storage.UndoOp{
		Op:       inverseOp,
		Address:  address,
		Asset:    asset,
		Quantity: uint64(quantity),
		Action:   action,
		Event:    event,
	})
}

// BlockFingerprints returns the fingerprint tokens appended since the last
// reset, in mutation order.
func (l *Ledger) BlockFingerprints() []string {
	return l.fingerprints
}

// BlockUndoOps returns the inverse of every mutation since the last reset,
// in mutation order.
func (l *Ledger) BlockUndoOps() []storage.UndoOp {
	return l.undo
}

// ResetBlock clears the per-block replay-audit state. It must be called
// between blocks; fingerprints never span a block boundary.
func (l *Ledger) ResetBlock() {
	l.fingerprints = nil
	l.undo = nil
}
