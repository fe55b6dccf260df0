package events

import (
	"strconv"

	"aspchain/core/types"
)

const (
	TypeMessageParsed   = "message.parsed"
	TypePayoutConfirmed = "proofofwork.confirmed"
)

// MessageParsed is emitted once per protocol message after parsing,
// whatever the resulting status.
type MessageParsed struct {
	Kind       string
	TxHash     string
	BlockIndex int64
	Status     string
}

func (MessageParsed) EventType() string { return TypeMessageParsed }

func (e MessageParsed) Event() *types.Event {
	return &types.Event{
		Type: TypeMessageParsed,
		Attributes: map[string]string{
			"kind":       e.Kind,
			"txHash":     e.TxHash,
			"blockIndex": strconv.FormatInt(e.BlockIndex, 10),
			"status":     e.Status,
		},
	}
}

// PayoutConfirmed is emitted when a pending proof-of-work payout
// matures and its quantity is credited.
type PayoutConfirmed struct {
	Address    string
	Quantity   int64
	BlockIndex int64
}

func (PayoutConfirmed) EventType() string { return TypePayoutConfirmed }

func (e PayoutConfirmed) Event() *types.Event {
	return &types.Event{
		Type: TypePayoutConfirmed,
		Attributes: map[string]string{
			"address":    e.Address,
			"quantity":   strconv.FormatInt(e.Quantity, 10),
			"blockIndex": strconv.FormatInt(e.BlockIndex, 10),
		},
	}
}
