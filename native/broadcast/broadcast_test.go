package broadcast

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"aspchain/core/types"
	"aspchain/core/wire"
	"aspchain/native/common"
	"aspchain/protocol"
	"aspchain/storage"
)

type fakeState struct {
	lastValid *storage.BroadcastRow
	inserted  []storage.BroadcastRow
	options   map[string]int64
}

func newFakeState() *fakeState {
	return &fakeState{options: make(map[string]int64)}
}

func (s *fakeState) LastValidBroadcast(ctx context.Context, source string) (*storage.BroadcastRow, bool, error) {
	if s.lastValid == nil || s.lastValid.Source != source {
		return nil, false, nil
	}
	return s.lastValid, true, nil
}

func (s *fakeState) InsertBroadcast(ctx context.Context, row storage.BroadcastRow) error {
	s.inserted = append(s.inserted, row)
	if row.Status == common.StatusValid {
		copied := row
		s.lastValid = &copied
	}
	return nil
}

func (s *fakeState) UpsertAddressOptions(ctx context.Context, address string, options int64, blockIndex int64) error {
	s.options[address] = options
	return nil
}

const farFuture = int64(1) << 40

func currentGate() *protocol.Gate {
	return protocol.NewGate(nil, false)
}

func legacyGate() *protocol.Gate {
	table := protocol.Table{}
	for _, name := range []string{
		protocol.ChangeIssuanceNameFix,
		protocol.ChangeHotfixNumericAssets,
		protocol.ChangeSubassets,
		protocol.ChangeMaxFeeFraction,
		protocol.ChangeOptionsRequireMemo,
		protocol.ChangeBroadcastInvalidCheck,
		protocol.ChangeBroadcastPackText,
	} {
		table[name] = protocol.Change{MainnetHeight: farFuture, TestnetHeight: farFuture}
	}
	return protocol.NewGate(table, false)
}

func txAt(index int64, hash, source string) types.TxContext {
	return types.TxContext{TxIndex: index, TxHash: hash, BlockIndex: 100, Source: source}
}

func TestComposeParseRoundTrip(t *testing.T) {
	state := newFakeState()
	h := NewHandler(state, currentGate())
	ctx := context.Background()

	data, err := h.Compose(ctx, "addrA", 1000, 99.9, 0.05, "unit price feed", 100)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	tag, body, err := wire.SplitTypeTag(data)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if tag != TypeID {
		t.Fatalf("tag = %d, want %d", tag, TypeID)
	}

	status, err := h.Parse(ctx, txAt(1, "tx1", "addrA"), body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if status != common.StatusValid {
		t.Fatalf("status = %q", status)
	}
	if len(state.inserted) != 1 {
		t.Fatalf("inserted %d rows", len(state.inserted))
	}
	row := state.inserted[0]
	if row.Timestamp.Int64 != 1000 || row.Value.Float64 != 99.9 || row.FeeFractionInt.Int64 != 5000000 {
		t.Fatalf("row = %+v", row)
	}
	if row.Text.String != "unit price feed" || row.Locked {
		t.Fatalf("row = %+v", row)
	}
}

func TestTimestampsMustIncrease(t *testing.T) {
	state := newFakeState()
	h := NewHandler(state, currentGate())
	ctx := context.Background()

	data, err := h.Compose(ctx, "addrA", 1000, 1.0, 0.0, "first", 100)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if _, err := h.Parse(ctx, txAt(1, "tx1", "addrA"), data[wire.TypeTagSize:]); err != nil {
		t.Fatalf("parse: %v", err)
	}

	problems, err := h.Validate(ctx, "addrA", 999, 1.0, 0, "second", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) != 1 || problems[0] != "feed timestamps not monotonically increasing" {
		t.Fatalf("problems = %v", problems)
	}

	// An equal timestamp is rejected too.
	problems, err = h.Validate(ctx, "addrA", 1000, 1.0, 0, "second", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) != 1 {
		t.Fatalf("problems = %v", problems)
	}
}

func TestLockedFeedRejectsBroadcasts(t *testing.T) {
	state := newFakeState()
	h := NewHandler(state, currentGate())
	ctx := context.Background()

	data, err := h.Compose(ctx, "addrA", 2000, 0, 0, "LoCk", 100)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	status, err := h.Parse(ctx, txAt(1, "tx1", "addrA"), data[wire.TypeTagSize:])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if status != common.StatusValid {
		t.Fatalf("status = %q", status)
	}
	row := state.inserted[0]
	if !row.Locked {
		t.Fatal("row not locked")
	}
	if row.Value.Valid || row.FeeFractionInt.Valid || row.Text.Valid {
		t.Fatalf("lock row should null value/fee/text: %+v", row)
	}
	if !row.Timestamp.Valid || row.Timestamp.Int64 != 0 {
		t.Fatalf("lock row timestamp = %+v", row.Timestamp)
	}

	problems, err := h.Validate(ctx, "addrA", 3000, 1.0, 0, "after lock", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) != 1 || problems[0] != "locked feed" {
		t.Fatalf("problems = %v", problems)
	}
}

func TestFeeFractionBounds(t *testing.T) {
	ctx := context.Background()

	h := NewHandler(newFakeState(), currentGate())
	problems, err := h.Validate(ctx, "addrA", 1, 0, 100000000, "", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) != 1 || problems[0] != "fee fraction greater than or equal to 1" {
		t.Fatalf("problems = %v", problems)
	}

	legacy := NewHandler(newFakeState(), legacyGate())
	problems, err = legacy.Validate(ctx, "addrA", 1, 0, 4294967295, "", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("problems = %v", problems)
	}
	problems, err = legacy.Validate(ctx, "addrA", 1, 0, 4294967296, "", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) != 1 || problems[0] != "fee fraction greater than 42.94967295" {
		t.Fatalf("problems = %v", problems)
	}
}

func TestComposeRejectsProblems(t *testing.T) {
	h := NewHandler(newFakeState(), currentGate())
	_, err := h.Compose(context.Background(), "", -5, 0, 0, "x", 100)
	var composeErr *common.ComposeError
	if !errors.As(err, &composeErr) {
		t.Fatalf("err = %v", err)
	}
	joined := strings.Join(composeErr.Problems, "; ")
	if !strings.Contains(joined, "negative timestamp") || !strings.Contains(joined, "null source address") {
		t.Fatalf("problems = %v", composeErr.Problems)
	}
}

func TestLegacyPascalTextRoundTrip(t *testing.T) {
	state := newFakeState()
	h := NewHandler(state, legacyGate())
	ctx := context.Background()

	data, err := h.Compose(ctx, "addrA", 1000, 1.5, 0.01, "short text", 100)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if _, err := h.Parse(ctx, txAt(1, "tx1", "addrA"), data[wire.TypeTagSize:]); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := state.inserted[0].Text.String; got != "short text" {
		t.Fatalf("text = %q", got)
	}

	long := strings.Repeat("y", 80)
	data, err = h.Compose(ctx, "addrA", 2000, 1.5, 0.01, long, 100)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if _, err := h.Parse(ctx, txAt(2, "tx2", "addrA"), data[wire.TypeTagSize:]); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := state.inserted[1].Text.String; got != long {
		t.Fatalf("text = %q", got)
	}
}

func TestOptionsBroadcast(t *testing.T) {
	state := newFakeState()
	h := NewHandler(state, currentGate())
	ctx := context.Background()

	data, err := h.Compose(ctx, "addrA", 1000, 0, 0, "options 1", 100)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if _, err := h.Parse(ctx, txAt(1, "tx1", "addrA"), data[wire.TypeTagSize:]); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if state.options["addrA"] != 1 {
		t.Fatalf("options = %v", state.options)
	}

	problems, err := h.Validate(ctx, "addrB", 1000, 0, 0, "options 2", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) != 1 || problems[0] != "options out of range" {
		t.Fatalf("problems = %v", problems)
	}

	problems, err = h.Validate(ctx, "addrB", 1000, 0, 0, "options soon", 100)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) != 1 || problems[0] != "options not an integer" {
		t.Fatalf("problems = %v", problems)
	}
}

func TestOverflowRowsNotStored(t *testing.T) {
	state := newFakeState()
	h := NewHandler(state, currentGate())

	// Too many digits for a 64-bit integer.
	data := packBody(1000, 0, 0, "options 99999999999999999999")

	status, err := h.Parse(context.Background(), txAt(1, "tx1", "addrA"), data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(status, "integer overflow") {
		t.Fatalf("status = %q", status)
	}
	if len(state.inserted) != 0 {
		t.Fatalf("overflow row stored: %+v", state.inserted)
	}
}

func TestCouldNotUnpack(t *testing.T) {
	state := newFakeState()
	h := NewHandler(state, currentGate())

	status, err := h.Parse(context.Background(), txAt(1, "tx1", "addrA"), []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if status != common.StatusCouldNotUnpack {
		t.Fatalf("status = %q", status)
	}
	if len(state.inserted) != 1 {
		t.Fatalf("inserted %d rows", len(state.inserted))
	}
	row := state.inserted[0]
	if row.Status != common.StatusCouldNotUnpack || row.Value.Valid || row.Text.Valid {
		t.Fatalf("row = %+v", row)
	}
	if row.Timestamp != (sql.NullInt64{Int64: 0, Valid: true}) {
		t.Fatalf("timestamp = %+v", row.Timestamp)
	}
}

// packBody builds a broadcast body directly, bypassing Compose's
// validation.
func packBody(timestamp uint32, value float64, feeFractionInt uint32, text string) []byte {
	var buf bytes.Buffer
	var header [headerLength]byte
	binary.BigEndian.PutUint32(header[0:4], timestamp)
	binary.BigEndian.PutUint64(header[4:12], math.Float64bits(value))
	binary.BigEndian.PutUint32(header[12:16], feeFractionInt)
	buf.Write(header[:])
	wire.VarString(&buf, text)
	return buf.Bytes()
}
