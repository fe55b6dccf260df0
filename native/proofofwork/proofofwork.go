// Package proofofwork implements the mining payout message: matched
// host-chain work records a pending claim on the protocol asset, which
// matures into a credit once enough blocks have passed.
package proofofwork

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"

	"aspchain/config"
	"aspchain/core/events"
	"aspchain/core/types"
	"aspchain/core/wire"
	"aspchain/ledger"
	"aspchain/native/common"
	"aspchain/observability"
	"aspchain/storage"
)

// TypeID is the wire tag for proof-of-work messages.
const TypeID uint32 = 60

const bodyLength = 8

// maturity is the number of blocks a payout stays pending before it is
// confirmed and credited.
const maturity = 100

// Handler validates, composes and parses proof-of-work payouts.
type Handler struct {
	ledger  *ledger.Ledger
	testnet bool
	emitter events.Emitter
}

func NewHandler(l *ledger.Ledger, testnet bool) *Handler {
	return &Handler{ledger: l, testnet: testnet, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used for confirmed payouts.
// Passing nil resets it to a no-op.
func (h *Handler) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	h.emitter = emitter
}

// Validate collects the problems with a payout claim. A negative block
// index marks a claim composed without one.
func (h *Handler) Validate(address string, quantity int64, blockIndex int64) []string {
	var problems []string
	if blockIndex < 0 {
		problems = append(problems, "Must include block_index")
	}
	if !h.testnet && blockIndex > 1 {
		problems = append(problems, "No more ASP after premine on mainnet")
	}
	if quantity < 0 {
		problems = append(problems, "negative quantity")
	}
	return problems
}

// Compose packs a payout claim for signing.
func (h *Handler) Compose(address string, quantity int64, blockIndex int64) ([]byte, error) {
	problems := h.Validate(address, quantity, blockIndex)
	if len(problems) > 0 {
		return nil, &common.ComposeError{Problems: problems}
	}
	body := make([]byte, bodyLength)
	binary.BigEndian.PutUint64(body, uint64(quantity))
	return wire.PackTypeTag(TypeID, body), nil
}

// Parse records a pending payout. Claims that fail validation are
// dropped without a stored record.
func (h *Handler) Parse(ctx context.Context, tx types.TxContext, message []byte) (string, error) {
	if len(message) != bodyLength {
		return common.StatusCouldNotUnpack, nil
	}
	quantity := int64(binary.BigEndian.Uint64(message))

	problems := h.Validate(tx.Source, quantity, tx.BlockIndex)
	if len(problems) > 0 {
		return common.InvalidStatus(problems), nil
	}

	err := h.ledger.Store().InsertProofOfWork(ctx, storage.ProofOfWorkRow{
		TxHash:     tx.TxHash,
		BlockIndex: tx.BlockIndex,
		Address:    tx.Source,
		Mined:      quantity,
		Status:     "pending",
	})
	if err != nil {
		return "", fmt.Errorf("proofofwork: %w", err)
	}
	return common.StatusValid, nil
}

// Confirm matures every pending payout at least maturity blocks old,
// crediting the protocol asset to the claiming address. This is the
// only path that brings the protocol asset into existence.
func (h *Handler) Confirm(ctx context.Context, blockIndex int64) error {
	store := h.ledger.Store()
	pending, err := store.PendingProofOfWork(ctx, blockIndex-maturity)
	if err != nil {
		return fmt.Errorf("proofofwork: %w", err)
	}
	for _, payout := range pending {
		if err := store.ConfirmProofOfWork(ctx, payout.BlockIndex); err != nil {
			return fmt.Errorf("proofofwork: %w", err)
		}
		event := strconv.FormatInt(blockIndex, 10)
		if err := h.ledger.Credit(ctx, blockIndex, payout.Address, config.ProtocolAsset, payout.Mined, "proofofwork", event); err != nil {
			return fmt.Errorf("proofofwork: %w", err)
		}
		observability.EngineMetrics().PayoutConfirmed()
		h.emitter.Emit(events.PayoutConfirmed{
			Address:    payout.Address,
			Quantity:   payout.Mined,
			BlockIndex: blockIndex,
		})
	}
	return nil
}
