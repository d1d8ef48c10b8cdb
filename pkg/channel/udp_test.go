package channel

import (
	"net"
	"testing"
	"time"
)

func TestUDPChannelRoundTrip(t *testing.T) {
	recv, err := NewUDPReceiver("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("NewUDPReceiver: %v", err)
	}
	defer recv.Close()

	localAddr := recv.conn.LocalAddr().(*net.UDPAddr)

	sender, err := NewUDPSender("", "127.0.0.1", uint16(localAddr.Port))
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	defer sender.Close()

	want := []byte("hello over udp")
	if err := sender.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	type result struct {
		buf []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf, err := recv.Receive()
		done <- result{buf, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Receive: %v", r.err)
		}
		if string(r.buf) != string(want) {
			t.Fatalf("got %q, want %q", r.buf, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestUDPSenderRejectsReceive(t *testing.T) {
	sender, err := NewUDPSender("", "127.0.0.1", 19999)
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	defer sender.Close()

	if _, err := sender.Receive(); err == nil {
		t.Fatalf("expected error calling Receive on a sender-mode channel")
	}
}

func TestUDPChannelSendAfterCloseFails(t *testing.T) {
	sender, err := NewUDPSender("", "127.0.0.1", 19999)
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	sender.Close()
	if err := sender.Send([]byte("x")); err != ErrClosed {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}
