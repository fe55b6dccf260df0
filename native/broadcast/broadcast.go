// Package broadcast implements the feed broadcast message. An address
// is a feed of broadcasts; a feed may be locked forever with a
// broadcast whose text equals "lock" (case insensitive).
package broadcast

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"aspchain/config"
	"aspchain/core/types"
	"aspchain/core/wire"
	"aspchain/native/common"
	"aspchain/protocol"
	"aspchain/storage"
)

// TypeID is the wire tag for broadcast messages.
const TypeID uint32 = 30

// headerLength covers timestamp (4), value (8) and fee fraction (4).
const headerLength = 4 + 8 + 4

// pascalTextMax is the longest text encoded Pascal-style in the legacy
// wire form; longer text is packed raw.
const pascalTextMax = 52

// legacyFeeFractionMax bounds the fee fraction before the
// max_fee_fraction change activates.
const legacyFeeFractionMax = 4294967295

// State is the slice of the store the broadcast handler touches.
type State interface {
	LastValidBroadcast(ctx context.Context, source string) (*storage.BroadcastRow, bool, error)
	InsertBroadcast(ctx context.Context, row storage.BroadcastRow) error
	UpsertAddressOptions(ctx context.Context, address string, options int64, blockIndex int64) error
}

// Handler validates, composes and parses broadcast messages.
type Handler struct {
	state State
	gate  *protocol.Gate
}

func NewHandler(state State, gate *protocol.Gate) *Handler {
	return &Handler{state: state, gate: gate}
}

// Validate collects the problems with a broadcast, in a fixed order.
// Problems are expected outcomes, not errors; the error return is for
// store and gate failures only.
func (h *Handler) Validate(ctx context.Context, source string, timestamp int64, value float64, feeFractionInt int64, text string, blockIndex int64) ([]string, error) {
	var problems []string

	if value > float64(config.MaxInt) {
		problems = append(problems, "integer overflow")
	}

	maxFeeFraction, err := h.gate.Enabled(protocol.ChangeMaxFeeFraction, blockIndex)
	if err != nil {
		return nil, err
	}
	if maxFeeFraction {
		if feeFractionInt >= config.Unit {
			problems = append(problems, "fee fraction greater than or equal to 1")
		}
	} else if feeFractionInt > legacyFeeFractionMax {
		problems = append(problems, "fee fraction greater than 42.94967295")
	}

	if timestamp < 0 {
		problems = append(problems, "negative timestamp")
	}
	if source == "" {
		problems = append(problems, "null source address")
	}

	prior, ok, err := h.state.LastValidBroadcast(ctx, source)
	if err != nil {
		return nil, err
	}
	if ok {
		if prior.Locked {
			problems = append(problems, "locked feed")
		} else if timestamp <= prior.Timestamp.Int64 {
			problems = append(problems, "feed timestamps not monotonically increasing")
		}
	}

	optionsRequireMemo, err := h.gate.Enabled(protocol.ChangeOptionsRequireMemo, blockIndex)
	if err != nil {
		return nil, err
	}
	if optionsRequireMemo {
		if n, ok, problem := parseOptions(text); ok && problem != "" {
			problems = append(problems, problem)
		} else if ok && n > config.AddressOptionMaxValue {
			problems = append(problems, "options out of range")
		}
	}
	return problems, nil
}

// parseOptions recognises an "options <n>" text. ok reports whether the
// text has the two-word options shape at all; problem carries the
// validation failure for a malformed or out-of-range integer.
func parseOptions(text string) (n int64, ok bool, problem string) {
	if text == "" || !strings.HasPrefix(strings.ToLower(text), "options") {
		return 0, false, ""
	}
	parts := strings.Split(text, " ")
	if len(parts) != 2 {
		return 0, false, ""
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, true, "integer overflow"
		}
		return 0, true, "options not an integer"
	}
	if n < 0 {
		return 0, true, "integer overflow"
	}
	return n, true, ""
}

// Compose packs a broadcast for signing. The fee fraction is given as
// a float (0.05 means five percent) and stored as an integer.
func (h *Handler) Compose(ctx context.Context, source string, timestamp int64, value float64, feeFraction float64, text string, blockIndex int64) ([]byte, error) {
	feeFractionInt := int64(feeFraction * 1e8)

	problems, err := h.Validate(ctx, source, timestamp, value, feeFractionInt, text, blockIndex)
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	if len(problems) > 0 {
		return nil, &common.ComposeError{Problems: problems}
	}

	var body bytes.Buffer
	var header [headerLength]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(timestamp))
	binary.BigEndian.PutUint64(header[4:12], math.Float64bits(value))
	binary.BigEndian.PutUint32(header[12:16], uint32(feeFractionInt))
	body.Write(header[:])

	packText, err := h.gate.Enabled(protocol.ChangeBroadcastPackText, blockIndex)
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	if packText {
		wire.VarString(&body, text)
	} else if len(text) <= pascalTextMax {
		wire.PascalString(&body, text)
	} else {
		body.WriteString(text)
	}
	return wire.PackTypeTag(TypeID, body.Bytes()), nil
}

// unpack decodes a broadcast body. ok=false means the body could not
// be decoded at all.
func (h *Handler) unpack(message []byte, blockIndex int64) (timestamp int64, value float64, feeFractionInt int64, text string, ok bool, err error) {
	if len(message) < headerLength {
		return 0, 0, 0, "", false, nil
	}
	timestamp = int64(binary.BigEndian.Uint32(message[0:4]))
	value = math.Float64frombits(binary.BigEndian.Uint64(message[4:12]))
	feeFractionInt = int64(binary.BigEndian.Uint32(message[12:16]))
	raw := message[headerLength:]

	packText, err := h.gate.Enabled(protocol.ChangeBroadcastPackText, blockIndex)
	if err != nil {
		return 0, 0, 0, "", false, err
	}
	var textBytes []byte
	if packText {
		textLen, _, verr := wire.VarInt(raw)
		if verr != nil {
			return 0, 0, 0, "", false, nil
		}
		// The text sits at the end of the remaining bytes; anything
		// between the length prefix and the text is ignored.
		candidate := raw
		if textLen > 0 && textLen <= uint64(len(raw)) {
			candidate = raw[uint64(len(raw))-textLen:]
		}
		if uint64(len(candidate)) != textLen {
			return 0, 0, 0, "", false, nil
		}
		textBytes = candidate
	} else if len(raw) <= pascalTextMax {
		// Pascal form: one length byte, then at most len(raw)-1 bytes.
		if len(raw) > 0 {
			n := int(raw[0])
			if n > len(raw)-1 {
				n = len(raw) - 1
			}
			textBytes = raw[1 : 1+n]
		}
	} else {
		textBytes = raw
	}

	if !utf8.Valid(textBytes) {
		return timestamp, value, feeFractionInt, "", true, nil
	}
	return timestamp, value, feeFractionInt, string(textBytes), true, nil
}

// Parse applies a confirmed broadcast to the store. Rejected
// broadcasts are recorded with their status; only rows whose status
// mentions an integer overflow are dropped.
func (h *Handler) Parse(ctx context.Context, tx types.TxContext, message []byte) (string, error) {
	timestamp, value, feeFractionInt, text, ok, err := h.unpack(message, tx.BlockIndex)
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}

	status := common.StatusValid
	if !ok {
		timestamp, value, feeFractionInt, text = 0, 0, 0, ""
		status = common.StatusCouldNotUnpack
	}

	if status == common.StatusValid {
		if value > float64(config.MaxInt) {
			value = float64(config.MaxInt)
		}
		problems, verr := h.Validate(ctx, tx.Source, timestamp, value, feeFractionInt, text, tx.BlockIndex)
		if verr != nil {
			return "", fmt.Errorf("broadcast: %w", verr)
		}
		if len(problems) > 0 {
			status = common.InvalidStatus(problems)
		}
	}

	locked := ok && text != "" && strings.EqualFold(text, "lock")

	row := storage.BroadcastRow{
		TxIndex:    tx.TxIndex,
		TxHash:     tx.TxHash,
		BlockIndex: tx.BlockIndex,
		Source:     tx.Source,
		Locked:     locked,
		Status:     status,
	}
	if locked {
		row.Timestamp = sql.NullInt64{Int64: 0, Valid: true}
		text = ""
	} else if ok {
		row.Timestamp = sql.NullInt64{Int64: timestamp, Valid: true}
		row.Value = sql.NullFloat64{Float64: value, Valid: true}
		row.FeeFractionInt = sql.NullInt64{Int64: feeFractionInt, Valid: true}
		row.Text = sql.NullString{String: text, Valid: true}
	} else {
		row.Timestamp = sql.NullInt64{Int64: 0, Valid: true}
		row.FeeFractionInt = sql.NullInt64{Int64: 0, Valid: true}
	}

	if strings.Contains(status, "integer overflow") {
		slog.Warn("not storing broadcast", "txHash", tx.TxHash, "status", status)
	} else if err := h.state.InsertBroadcast(ctx, row); err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}

	invalidCheck, err := h.gate.Enabled(protocol.ChangeBroadcastInvalidCheck, tx.BlockIndex)
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}
	if invalidCheck && status != common.StatusValid {
		return status, nil
	}

	optionsRequireMemo, err := h.gate.Enabled(protocol.ChangeOptionsRequireMemo, tx.BlockIndex)
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}
	if optionsRequireMemo {
		if n, ok, problem := parseOptions(text); ok && problem == "" {
			if err := h.state.UpsertAddressOptions(ctx, tx.Source, n, tx.BlockIndex); err != nil {
				return "", fmt.Errorf("broadcast: %w", err)
			}
		}
	}
	return status, nil
}
