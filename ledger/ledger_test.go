package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"aspchain/config"
	"aspchain/storage"
)

func newTestLedger(t *testing.T) (*Ledger, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store), store
}

func TestCreditAndDebit(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	if err := l.Credit(ctx, 10, "addrA", "MYASSET", 1000, "issuance", "tx1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(ctx, 11, "addrA", "MYASSET", 300, "dividend", "tx2"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got, err := l.Balance(ctx, "addrA", "MYASSET"); err != nil || got != 700 {
		t.Fatalf("balance = %d, err = %v", got, err)
	}

	// The balance always equals total credits minus total debits.
	credits, err := store.Credits(ctx, "addrA")
	if err != nil {
		t.Fatalf("credits: %v", err)
	}
	debits, err := store.Debits(ctx, "addrA")
	if err != nil {
		t.Fatalf("debits: %v", err)
	}
	var sum int64
	for _, c := range credits {
		sum += c.Quantity
	}
	for _, d := range debits {
		sum -= d.Quantity
	}
	if got, _ := l.Balance(ctx, "addrA", "MYASSET"); got != sum {
		t.Fatalf("balance %d != credits-debits %d", got, sum)
	}
}

func TestDebitInvariants(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	if err := l.Credit(ctx, 10, "addrA", "MYASSET", 100, "issuance", "tx1"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if err := l.Debit(ctx, 11, "addrA", "MYASSET", -1, "dividend", "tx2"); !errors.Is(err, ErrDebit) {
		t.Fatalf("err = %v", err)
	}
	if err := l.Debit(ctx, 11, "addrA", config.GasAsset, 1, "dividend", "tx2"); !errors.Is(err, ErrDebit) {
		t.Fatalf("err = %v", err)
	}
	if err := l.Debit(ctx, 11, "addrA", "MYASSET", 101, "dividend", "tx2"); !errors.Is(err, ErrDebit) {
		t.Fatalf("err = %v", err)
	}

	// A failed debit leaves no partial state behind.
	if got, _ := l.Balance(ctx, "addrA", "MYASSET"); got != 100 {
		t.Fatalf("balance = %d", got)
	}
	debits, err := store.Debits(ctx, "addrA")
	if err != nil {
		t.Fatalf("debits: %v", err)
	}
	if len(debits) != 0 {
		t.Fatalf("debits = %+v", debits)
	}
}

func TestCreditInvariants(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if err := l.Credit(ctx, 10, "addrA", "MYASSET", -1, "issuance", "tx1"); !errors.Is(err, ErrCredit) {
		t.Fatalf("err = %v", err)
	}
	if err := l.Credit(ctx, 10, "addrA", config.GasAsset, 1, "issuance", "tx1"); !errors.Is(err, ErrCredit) {
		t.Fatalf("err = %v", err)
	}
}

func TestCreditClampsAtMaxInt(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if err := l.Credit(ctx, 10, "addrA", "MYASSET", config.MaxInt, "issuance", "tx1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit(ctx, 11, "addrA", "MYASSET", 1000, "issuance", "tx2"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got, _ := l.Balance(ctx, "addrA", "MYASSET"); got != config.MaxInt {
		t.Fatalf("balance = %d", got)
	}
}

func TestTransfer(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if err := l.Credit(ctx, 10, "addrA", "MYASSET", 100, "issuance", "tx1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Transfer(ctx, 11, "addrA", "addrB", "MYASSET", 60, "send", "tx2"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got, _ := l.Balance(ctx, "addrA", "MYASSET"); got != 40 {
		t.Fatalf("source balance = %d", got)
	}
	if got, _ := l.Balance(ctx, "addrB", "MYASSET"); got != 60 {
		t.Fatalf("destination balance = %d", got)
	}

	// Insufficient funds abort before the credit side runs.
	if err := l.Transfer(ctx, 12, "addrA", "addrB", "MYASSET", 100, "send", "tx3"); !errors.Is(err, ErrDebit) {
		t.Fatalf("err = %v", err)
	}
	if got, _ := l.Balance(ctx, "addrB", "MYASSET"); got != 60 {
		t.Fatalf("destination balance = %d", got)
	}
}

func TestBlockFingerprintsAndUndo(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	l.ResetBlock()
	if err := l.Credit(ctx, 20, "addrA", "MYASSET", 100, "issuance", "tx1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(ctx, 20, "addrA", "MYASSET", 30, "send", "tx2"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	prints := l.BlockFingerprints()
	want := []string{
		fmt.Sprintf("%d%s%s%d", 20, "addrA", "MYASSET", 100),
		fmt.Sprintf("%d%s%s%d", 20, "addrA", "MYASSET", 30),
	}
	if len(prints) != 2 || prints[0] != want[0] || prints[1] != want[1] {
		t.Fatalf("fingerprints = %v, want %v", prints, want)
	}

	ops := l.BlockUndoOps()
	if len(ops) != 2 {
		t.Fatalf("undo ops = %+v", ops)
	}
	// Inverse operations, in application order.
	if ops[0].Op != "debit" || ops[1].Op != "credit" {
		t.Fatalf("undo ops = %+v", ops)
	}

	l.ResetBlock()
	if len(l.BlockFingerprints()) != 0 || len(l.BlockUndoOps()) != 0 {
		t.Fatal("per-block state not reset")
	}
}
