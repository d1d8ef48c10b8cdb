// Package channel defines the Channel abstraction the CLIs drive the
// core with, plus two concrete carriers: a UDP transport for a real
// network test path, and a file-backed transport for deterministic
// offline tests. Neither is part of the core codec; both exist only to
// demonstrate it end-to-end without a real visual channel.
package channel

import "io"

// Channel is any carrier satisfying the external contract the visual
// channel would also satisfy: opaque packets, arbitrary loss, no
// ordering, no acknowledgement. Send and Receive both treat each packet
// as an indivisible blob.
type Channel interface {
	Send(packet []byte) error
	// Receive blocks for the next packet. It returns io.EOF once the
	// channel is closed and has no more buffered packets.
	Receive() ([]byte, error)
	Close() error
}

// ErrClosed is returned by Send on a channel that has already been closed.
var ErrClosed = io.ErrClosedPipe
