package channel

import (
	"io"
	"os"
	"testing"
)

func TestFileChannelRoundTrip(t *testing.T) {
	path := t.TempDir() + "/packets.bin"

	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	want := [][]byte{
		[]byte("first packet"),
		{},
		[]byte("a third, longer packet with more bytes"),
	}
	for _, pkt := range want {
		if err := w.Send(pkt); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	r, err := NewFileReader(path)
	if err != nil {
		t.Fatalf("NewFileReader: %v", err)
	}
	defer r.Close()

	for i, wantPkt := range want {
		got, err := r.Receive()
		if err != nil {
			t.Fatalf("Receive %d: %v", i, err)
		}
		if string(got) != string(wantPkt) {
			t.Fatalf("packet %d: got %q want %q", i, got, wantPkt)
		}
	}
	if _, err := r.Receive(); err != io.EOF {
		t.Fatalf("expected io.EOF after exhausting records, got %v", err)
	}
}

func TestFileReaderRejectsSend(t *testing.T) {
	path := t.TempDir() + "/packets.bin"
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := NewFileReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.Send([]byte("nope")); err == nil {
		t.Fatalf("expected error sending on a reader-mode channel")
	}
}

func TestFileChannelSendAfterCloseFails(t *testing.T) {
	path := t.TempDir() + "/packets.bin"
	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	w.Close()
	if err := w.Send([]byte("x")); err != ErrClosed {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}
