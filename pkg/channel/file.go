package channel

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// FileChannel stores packets length-prefixed in a plain file: each
// record is a 4-byte big-endian length followed by that many payload
// bytes. It exists to drive the core deterministically in tests and to
// "burn frames to a file the visual layer would render" offline.
type FileChannel struct {
	f      *os.File
	writer bool
	closed bool
}

// NewFileWriter truncates (or creates) path and returns a Channel whose
// Send appends one length-prefixed record per call.
func NewFileWriter(path string) (*FileChannel, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileChannel{f: f, writer: true}, nil
}

// NewFileReader opens path for sequential reading, returning a Channel
// whose Receive replays the records written by a FileWriter in order.
func NewFileReader(path string) (*FileChannel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileChannel{f: f}, nil
}

func (c *FileChannel) Send(packet []byte) error {
	if c.closed {
		return ErrClosed
	}
	if !c.writer {
		return errors.New("channel: Send called on a reader-mode FileChannel")
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(packet)))
	if _, err := c.f.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := c.f.Write(packet)
	return err
}

// Receive reads the next record, returning io.EOF once the file is
// exhausted or the channel has been closed.
func (c *FileChannel) Receive() ([]byte, error) {
	if c.closed {
		return nil, io.EOF
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.f, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	packet := make([]byte, n)
	if _, err := io.ReadFull(c.f, packet); err != nil {
		return nil, err
	}
	return packet, nil
}

func (c *FileChannel) Close() error {
	c.closed = true
	return c.f.Close()
}
