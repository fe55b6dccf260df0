package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("   ")
	require.ErrorIs(t, err, ErrPathRequired)
}

func TestBalances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Balance(ctx, "addrA", "MYASSET")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.CreateBalance(ctx, "addrA", "MYASSET", 100))
	quantity, ok, err := store.Balance(ctx, "addrA", "MYASSET")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(100), quantity)

	require.NoError(t, store.SetBalance(ctx, "addrA", "MYASSET", 250))
	quantity, _, err = store.Balance(ctx, "addrA", "MYASSET")
	require.NoError(t, err)
	require.Equal(t, int64(250), quantity)

	require.NoError(t, store.CreateBalance(ctx, "addrB", "MYASSET", 50))
	rows, err := store.BalancesForAsset(ctx, "MYASSET")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestLedgerEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertCredit(ctx, LedgerEventRow{
		BlockIndex: 5, Address: "addrA", Asset: "MYASSET",
		Quantity: 100, Action: "issuance", Event: "tx1",
	}))
	require.NoError(t, store.InsertDebit(ctx, LedgerEventRow{
		BlockIndex: 6, Address: "addrA", Asset: "MYASSET",
		Quantity: 40, Action: "dividend", Event: "tx2",
	}))

	credits, err := store.Credits(ctx, "addrA")
	require.NoError(t, err)
	require.Len(t, credits, 1)
	require.Equal(t, int64(100), credits[0].Quantity)

	debits, err := store.Debits(ctx, "addrA")
	require.NoError(t, err)
	require.Len(t, debits, 1)
	require.Equal(t, "dividend", debits[0].Action)
}

func TestNativeAssetsSeeded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, ok, err := store.AssetIDByName(ctx, "GASP")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0), id)

	name, ok, err := store.AssetNameByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ASP", name)
}

func TestAssetRegistry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Ids beyond int64 survive the decimal text column.
	const bigID = uint64(18446744073709551615)
	require.NoError(t, store.RegisterAsset(ctx, bigID, "ASP18446744073709551615", 10, ""))
	id, ok, err := store.AssetIDByName(ctx, "ASP18446744073709551615")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bigID, id)

	require.NoError(t, store.RegisterAsset(ctx, 337135, "TEST", 10, "PARENT.child"))
	name, ok, err := store.AssetNameByLongname(ctx, "PARENT.child")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "TEST", name)

	_, ok, err = store.AssetNameByID(ctx, 999999)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIssuancesAndDestructions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertIssuance(ctx, IssuanceRow{
		TxIndex: 1, TxHash: "iss1", BlockIndex: 5, Asset: "MYASSET",
		Quantity: 1000, Divisible: true, Issuer: "addrA", Status: "valid",
	}))
	require.NoError(t, store.InsertIssuance(ctx, IssuanceRow{
		TxIndex: 2, TxHash: "iss2", BlockIndex: 6, Asset: "MYASSET",
		Quantity: 500, Divisible: true, Issuer: "addrB", Status: "valid",
	}))
	require.NoError(t, store.InsertIssuance(ctx, IssuanceRow{
		TxIndex: 3, TxHash: "iss3", BlockIndex: 7, Asset: "MYASSET",
		Quantity: 9999, Divisible: true, Issuer: "addrC",
		Status: "invalid: insufficient funds (ASP)",
	}))

	rows, err := store.ValidIssuances(ctx, "MYASSET")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Ordered by tx_index: the first row fixes divisibility, the last
	// names the current issuer.
	require.Equal(t, "addrA", rows[0].Issuer)
	require.Equal(t, "addrB", rows[len(rows)-1].Issuer)

	total, err := store.IssuedTotal(ctx, "MYASSET")
	require.NoError(t, err)
	require.Equal(t, int64(1500), total)

	require.NoError(t, store.InsertDestruction(ctx, 4, "des1", 8, "addrA", "MYASSET", 200, "valid"))
	destroyed, err := store.DestroyedTotal(ctx, "MYASSET")
	require.NoError(t, err)
	require.Equal(t, int64(200), destroyed)
}

func TestBroadcastsAndOptions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBroadcast(ctx, BroadcastRow{
		TxIndex: 1, TxHash: "tx1", BlockIndex: 5, Source: "addrA",
		Timestamp: sql.NullInt64{Int64: 1000, Valid: true},
		Value:     sql.NullFloat64{Float64: 99.9, Valid: true},
		Status:    "valid",
	}))
	require.NoError(t, store.InsertBroadcast(ctx, BroadcastRow{
		TxIndex: 2, TxHash: "tx2", BlockIndex: 6, Source: "addrA",
		Timestamp: sql.NullInt64{Int64: 900, Valid: true},
		Status:    "invalid: feed timestamps not monotonically increasing",
	}))

	head, ok, err := store.LastValidBroadcast(ctx, "addrA")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1000), head.Timestamp.Int64)

	_, ok, err = store.LastValidBroadcast(ctx, "addrB")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.UpsertAddressOptions(ctx, "addrA", 1, 5))
	require.NoError(t, store.UpsertAddressOptions(ctx, "addrA", 0, 6))
	options, ok, err := store.AddressOptions(ctx, "addrA")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(0), options)
}

func TestProofOfWorkLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertProofOfWork(ctx, ProofOfWorkRow{
		TxHash: "pow1", BlockIndex: 100, Address: "aspMiner",
		Mined: 5000, Status: "pending",
	}))

	pending, err := store.PendingProofOfWork(ctx, 50)
	require.NoError(t, err)
	require.Empty(t, pending)

	pending, err = store.PendingProofOfWork(ctx, 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.ConfirmProofOfWork(ctx, 100))
	row, ok, err := store.ProofOfWork(ctx, "pow1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "confirmed", row.Status)

	mined, err := store.ConfirmedMinedTotal(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(5000), mined)
}

func TestEscrows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertEscrow(ctx, EscrowRow{
		Address: "addrA", Asset: "MYASSET", Quantity: 100,
		Status: "open", Ref: "order1",
	}))
	require.NoError(t, store.InsertEscrow(ctx, EscrowRow{
		Address: "addrB", Asset: "MYASSET", Quantity: 30,
		Status: "settled", Ref: "order2",
	}))

	open, err := store.OpenEscrows(ctx, "MYASSET")
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "addrA", open[0].Address)
}

func TestUndoJournal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ops := []UndoOp{
		{Op: "debit", Address: "addrA", Asset: "MYASSET", Quantity: 100, Action: "dividend", Event: "tx1"},
		{Op: "credit", Address: "addrB", Asset: "MYASSET", Quantity: 100, Action: "dividend", Event: "tx1"},
	}
	require.NoError(t, store.SaveUndoJournal(ctx, 500, ops, 100))

	loaded, err := store.UndoJournal(ctx, 500)
	require.NoError(t, err)
	require.Equal(t, ops, loaded)

	// Journals beyond the retention window are pruned on save.
	require.NoError(t, store.SaveUndoJournal(ctx, 700, ops, 100))
	old, err := store.UndoJournal(ctx, 500)
	require.NoError(t, err)
	require.Nil(t, old)
}
