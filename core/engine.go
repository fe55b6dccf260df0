// Package core dispatches embedded protocol messages to their
// handlers and brackets per-block state: fingerprints, the undo
// journal, and payout confirmation.
package core

import (
	"context"
	"errors"
	"fmt"

	"aspchain/config"
	"aspchain/core/events"
	"aspchain/core/types"
	"aspchain/core/wire"
	"aspchain/ledger"
	"aspchain/native/broadcast"
	"aspchain/native/dividend"
	"aspchain/native/proofofwork"
	"aspchain/observability"
	"aspchain/protocol"
	"aspchain/storage"
)

// MessageType identifies one of the supported embedded message kinds.
// The set is closed: adding a kind means adding a case to every switch
// over it.
type MessageType uint32

const (
	MessageBroadcast   = MessageType(broadcast.TypeID)
	MessageDividend    = MessageType(dividend.TypeID)
	MessageProofOfWork = MessageType(proofofwork.TypeID)
)

// Kind returns the metric label for the message type.
func (m MessageType) Kind() string {
	switch m {
	case MessageBroadcast:
		return "broadcast"
	case MessageDividend:
		return "dividend"
	case MessageProofOfWork:
		return "proofofwork"
	default:
		return "unknown"
	}
}

var (
	// ErrUnsupportedMessage reports a type tag outside the closed set.
	ErrUnsupportedMessage = errors.New("core: unsupported message type")
	// ErrNoOpenBlock reports a transaction applied outside a
	// BeginBlock/EndBlock bracket.
	ErrNoOpenBlock = errors.New("core: no open block")
)

// Engine applies confirmed transactions to consensus state.
type Engine struct {
	store       *storage.Store
	ledger      *ledger.Ledger
	gate        *protocol.Gate
	broadcast   *broadcast.Handler
	dividend    *dividend.Handler
	proofOfWork *proofofwork.Handler
	emitter     events.Emitter
	height      int64
	open        bool
	blockEvents []*types.Event
}

// engineEmitter forwards handler events to the configured emitter and
// collects their wire payloads on the open block.
type engineEmitter struct {
	engine *Engine
}

func (em engineEmitter) Emit(evt events.Event) {
	em.engine.emitter.Emit(evt)
	if provider, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := provider.Event(); payload != nil {
			em.engine.blockEvents = append(em.engine.blockEvents, payload)
		}
	}
}

// NewEngine wires the handlers against a store. A nil emitter
// discards events.
func NewEngine(store *storage.Store, gate *protocol.Gate, testnet bool, emitter events.Emitter) *Engine {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l := ledger.New(store)
	e := &Engine{
		store:       store,
		ledger:      l,
		gate:        gate,
		broadcast:   broadcast.NewHandler(store, gate),
		dividend:    dividend.NewHandler(l, gate, testnet),
		proofOfWork: proofofwork.NewHandler(l, testnet),
		emitter:     emitter,
	}
	e.proofOfWork.SetEmitter(engineEmitter{engine: e})
	return e
}

// Ledger exposes the engine's ledger for balance and supply queries.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Broadcast exposes the broadcast handler for composing messages.
func (e *Engine) Broadcast() *broadcast.Handler { return e.broadcast }

// Dividend exposes the dividend handler for composing messages.
func (e *Engine) Dividend() *dividend.Handler { return e.dividend }

// ProofOfWork exposes the proof-of-work handler for composing claims.
func (e *Engine) ProofOfWork() *proofofwork.Handler { return e.proofOfWork }

// BlockEvents returns the event payloads collected on the current block,
// in emission order.
func (e *Engine) BlockEvents() []*types.Event { return e.blockEvents }

// BeginBlock opens a block: per-block ledger state is reset and every
// payout that matured as of this height is confirmed.
func (e *Engine) BeginBlock(ctx context.Context, height int64) error {
	e.height = height
	e.open = true
	e.blockEvents = nil
	e.ledger.ResetBlock()
	if err := e.proofOfWork.Confirm(ctx, height); err != nil {
		return fmt.Errorf("core: confirm payouts: %w", err)
	}
	return nil
}

// ParseTransaction decodes the embedded message and applies it. The
// returned status is the one recorded with the message; a rejected
// message is a normal outcome, not an error.
func (e *Engine) ParseTransaction(ctx context.Context, tx types.TxContext) (string, error) {
	if !e.open {
		return "", ErrNoOpenBlock
	}
	tag, body, err := wire.SplitTypeTag(tx.Data)
	if err != nil {
		return "", fmt.Errorf("core: %w", err)
	}

	msgType := MessageType(tag)
	var status string
	switch msgType {
	case MessageBroadcast:
		status, err = e.broadcast.Parse(ctx, tx, body)
	case MessageDividend:
		status, err = e.dividend.Parse(ctx, tx, body)
	case MessageProofOfWork:
		status, err = e.proofOfWork.Parse(ctx, tx, body)
	default:
		return "", fmt.Errorf("%w: %d", ErrUnsupportedMessage, tag)
	}
	if err != nil {
		return "", err
	}

	observability.EngineMetrics().MessageParsed(msgType.Kind(), status)
	engineEmitter{engine: e}.Emit(events.MessageParsed{
		Kind:       msgType.Kind(),
		TxHash:     tx.TxHash,
		BlockIndex: tx.BlockIndex,
		Status:     status,
	})
	return status, nil
}

// EndBlock closes the block: the undo journal is persisted and the
// block's ledger fingerprint sequence is returned for reorg tooling.
func (e *Engine) EndBlock(ctx context.Context) ([]string, error) {
	if !e.open {
		return nil, ErrNoOpenBlock
	}
	e.open = false
	ops := e.ledger.BlockUndoOps()
	if err := e.store.SaveUndoJournal(ctx, e.height, ops, config.UndoLogMaxPastBlocks); err != nil {
		return nil, fmt.Errorf("core: save undo journal: %w", err)
	}
	return e.ledger.BlockFingerprints(), nil
}
