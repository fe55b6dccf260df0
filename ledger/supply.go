package ledger

import (
	"context"
	"fmt"

	"aspchain/asset"
	"aspchain/config"
	"aspchain/storage"
)

// Holder is one claim on an asset. Escrow carries the reference of the open
// protocol action holding the funds, or "" for a spendable balance.
type Holder struct {
	Address  string
	Quantity int64
	Escrow   string
}

// Created returns the total quantity of the asset brought into existence:
// confirmed proof-of-work payouts for the protocol token, valid issuances
// for everything else.
func (l *Ledger) Created(ctx context.Context, assetName string) (int64, error) {
	if assetName == config.ProtocolAsset {
		return l.store.ConfirmedMinedTotal(ctx)
	}
	return l.store.IssuedTotal(ctx, assetName)
}

// Destroyed returns the total quantity of the asset taken out of existence.
func (l *Ledger) Destroyed(ctx context.Context, assetName string) (int64, error) {
	return l.store.DestroyedTotal(ctx, assetName)
}

// Supply returns created minus destroyed.
func (l *Ledger) Supply(ctx context.Context, assetName string) (int64, error) {
	created, err := l.Created(ctx, assetName)
	if err != nil {
		return 0, err
	}
	destroyed, err := l.Destroyed(ctx, assetName)
	if err != nil {
		return 0, err
	}
	return created - destroyed, nil
}

// Holders enumerates every claim on the asset: balance rows plus funds
// escrowed in open, not-yet-settled protocol actions. Dividend distribution
// depends on the escrowed claims being included here.
func (l *Ledger) Holders(ctx context.Context, assetName string) ([]Holder, error) {
	balances, err := l.store.BalancesForAsset(ctx, assetName)
	if err != nil {
		return nil, err
	}
	holders := make([]Holder, 0, len(balances))
	for _, row := range balances {
		holders = append(holders, Holder{Address: row.Address, Quantity: row.Quantity})
	}

	escrows, err := l.store.OpenEscrows(ctx, assetName)
	if err != nil {
		return nil, err
	}
	for _, row := range escrows {
		holders = append(holders, Holder{Address: row.Address, Quantity: row.Quantity, Escrow: row.Ref})
	}
	return holders, nil
}

// IsDivisible reports whether the asset carries eight decimal places. Both
// native currencies are divisible; issued assets record the flag on their
// first valid issuance.
func (l *Ledger) IsDivisible(ctx context.Context, assetName string) (bool, error) {
	if assetName == config.GasAsset || assetName == config.ProtocolAsset {
		return true, nil
	}
	issuances, err := l.store.ValidIssuances(ctx, assetName)
	if err != nil {
		return false, err
	}
	if len(issuances) == 0 {
		return false, fmt.Errorf("%w: %s", asset.ErrAsset, assetName)
	}
	return issuances[0].Divisible, nil
}

// Store exposes the backing store to the message handlers that need direct
// relation access alongside ledger mutations.
func (l *Ledger) Store() *storage.Store {
	return l.store
}
