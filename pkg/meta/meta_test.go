package meta

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	m := Metadata{
		Filename: "roundtrip.bin",
		MIME:     "application/octet-stream",
		FileSize: 450,
		K:        3,
		Mode:     ModeRaptorLite,
	}
	for i := range m.Digest {
		m.Digest[i] = byte(i)
	}
	buf := Encode(m)
	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got != m {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestTruncationAtEncode(t *testing.T) {
	long := strings.Repeat("a", 300)
	m := Metadata{Filename: long, MIME: "text/plain"}
	buf := Encode(m)
	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(got.Filename) != 255 {
		t.Fatalf("expected truncated filename of 255 bytes, got %d", len(got.Filename))
	}
}

func TestModeDefaultsWhenAbsent(t *testing.T) {
	m := Metadata{Filename: "f", MIME: "m", FileSize: 1, K: 1}
	buf := Encode(m)
	// Strip the trailing mode byte to simulate a v0 encoder.
	buf = buf[:len(buf)-1]
	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got.Mode != ModeRaptorLite {
		t.Fatalf("expected default mode, got %v", got.Mode)
	}
}

func TestTrailingZeroPaddingIgnored(t *testing.T) {
	m := Metadata{Filename: "f", MIME: "m", FileSize: 1, K: 1, Mode: ModeRaptorLite}
	buf := Encode(m)
	padded := append(buf, make([]byte, 100)...)
	got, err := Parse(padded)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got != m {
		t.Fatalf("padded parse mismatch: got %+v, want %+v", got, m)
	}
}

func TestOverflowingLengthRejected(t *testing.T) {
	buf := []byte{10, 'a', 'b'} // declares 10 bytes of filename but only has 2
	if _, err := Parse(buf); err != ErrParse {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestEmptyBuffer(t *testing.T) {
	if _, err := Parse(nil); err != ErrParse {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}
