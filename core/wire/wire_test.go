package wire

import (
	"bytes"
	"testing"
)

func TestTypeTagRoundTrip(t *testing.T) {
	body := []byte{0xde, 0xad, 0xbe, 0xef}
	packed := PackTypeTag(30, body)
	if len(packed) != TypeTagSize+len(body) {
		t.Fatalf("packed length = %d", len(packed))
	}
	tag, rest, err := SplitTypeTag(packed)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if tag != 30 {
		t.Fatalf("tag = %d, want 30", tag)
	}
	if !bytes.Equal(rest, body) {
		t.Fatalf("body = %x, want %x", rest, body)
	}
}

func TestSplitTypeTagShort(t *testing.T) {
	if _, _, err := SplitTypeTag([]byte{0x00, 0x00}); err == nil {
		t.Fatal("expected error for short data")
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000, 1<<63 + 5}
	for _, v := range values {
		var buf bytes.Buffer
		PutVarInt(&buf, v)
		got, n, err := VarInt(buf.Bytes())
		if err != nil {
			t.Fatalf("value %d: %v", v, err)
		}
		if got != v || n != buf.Len() {
			t.Fatalf("value %d: decoded %d with %d bytes (buffer %d)", v, got, n, buf.Len())
		}
	}
}

func TestVarIntTruncated(t *testing.T) {
	for _, data := range [][]byte{nil, {0xfd, 0x01}, {0xfe, 0x01, 0x02}, {0xff}} {
		if _, _, err := VarInt(data); err == nil {
			t.Fatalf("expected error for %x", data)
		}
	}
}

func TestVarString(t *testing.T) {
	var buf bytes.Buffer
	VarString(&buf, "hello")
	want := append([]byte{5}, []byte("hello")...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded %x, want %x", buf.Bytes(), want)
	}
}

func TestPascalString(t *testing.T) {
	var buf bytes.Buffer
	PascalString(&buf, "feed")
	want := append([]byte{4}, []byte("feed")...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded %x, want %x", buf.Bytes(), want)
	}
}
