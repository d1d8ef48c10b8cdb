// Package frame serialises and parses the 16-byte packet header carried
// by every coded symbol, plus the channel-mode hint the core stores and
// forwards but never dispatches on.
package frame

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed wire size of Header, in bytes.
const HeaderSize = 16

// ProtocolVersion is the only version this implementation emits or
// accepts.
const ProtocolVersion uint8 = 0x01

// ErrTruncated is returned when a buffer shorter than HeaderSize is
// parsed.
var ErrTruncated = errors.New("frame: truncated packet")

// ErrInvalidProtocol is returned when the header's version byte does not
// match ProtocolVersion.
var ErrInvalidProtocol = errors.New("frame: invalid protocol version")

// ChannelHint is an opaque hint about the visual channel's symbol
// carrier, carried in the header and forwarded by the core but never
// acted on by it.
type ChannelHint uint8

const (
	ChannelHintNone     ChannelHint = iota // no hint
	ChannelHintQR                          // carrier is a QR-family code
	ChannelHintColor                       // carrier uses color-channel demuxing
	ChannelHintReserved                    // reserved
)

const (
	flagMetadata    = 1 << 0
	flagHintShift   = 1
	flagHintMask    = 0x3 << flagHintShift
	flagReservedBit = 1 << 3
)

// Header is the 16-byte packet header described in the wire format.
type Header struct {
	Version     uint8
	SessionID   uint32
	K           uint32 // K', the intermediate-block count advertised by the encoder
	SymbolID    uint32
	BlockSize   uint16
	IsMetadata  bool
	ChannelHint ChannelHint
}

// Packet is a parsed header paired with its payload.
type Packet struct {
	Header  Header
	Payload []byte
}

// Bytes serialises the packet back to wire format.
func (p Packet) Bytes() []byte {
	return Encode(p.Header, p.Payload)
}

// Encode serialises h followed by payload into a single buffer. payload
// is written as given, whatever its length; the caller (encoder) is
// responsible for zero-padding short payloads such as the metadata
// symbol's to int(h.BlockSize) bytes.
func Encode(h Header, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = h.Version
	binary.BigEndian.PutUint32(buf[1:5], h.SessionID)
	binary.BigEndian.PutUint32(buf[5:9], h.K)
	binary.BigEndian.PutUint32(buf[9:13], h.SymbolID)
	binary.BigEndian.PutUint16(buf[13:15], h.BlockSize)

	var flags uint8
	if h.IsMetadata {
		flags |= flagMetadata
	}
	flags |= uint8(h.ChannelHint&0x3) << flagHintShift
	buf[15] = flags

	copy(buf[HeaderSize:], payload)
	return buf
}

// Parse extracts a Header and its payload from buf. It fails with
// ErrTruncated if buf is shorter than HeaderSize, and ErrInvalidProtocol
// if the version byte doesn't match ProtocolVersion. Any other byte
// pattern parses.
func Parse(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, ErrTruncated
	}
	version := buf[0]
	if version != ProtocolVersion {
		return Packet{}, ErrInvalidProtocol
	}

	flags := buf[15]
	h := Header{
		Version:     version,
		SessionID:   binary.BigEndian.Uint32(buf[1:5]),
		K:           binary.BigEndian.Uint32(buf[5:9]),
		SymbolID:    binary.BigEndian.Uint32(buf[9:13]),
		BlockSize:   binary.BigEndian.Uint16(buf[13:15]),
		IsMetadata:  flags&flagMetadata != 0,
		ChannelHint: ChannelHint((flags & flagHintMask) >> flagHintShift),
	}

	payload := buf[HeaderSize:]
	return Packet{Header: h, Payload: payload}, nil
}
