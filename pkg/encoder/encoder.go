// Package encoder implements the fountain encoder: given a staged file it
// emits an unbounded stream of coded symbols, a metadata symbol plus
// systematic and fountain-coded data symbols, driven one emit() call per
// host tick.
package encoder

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math"

	"github.com/cyberian-hacksy/beammeup/pkg/frame"
	"github.com/cyberian-hacksy/beammeup/pkg/meta"
	"github.com/cyberian-hacksy/beammeup/pkg/precode"
	"github.com/cyberian-hacksy/beammeup/pkg/symbol"
)

// MinBlockSize and MaxBlockSize bound the configurable block size B.
const (
	MinBlockSize = 16
	MaxBlockSize = 65535
)

// DefaultMetadataInterval is how often, in emitted symbols, the driver
// loop should interleave a metadata packet.
const DefaultMetadataInterval = 10

var (
	ErrBlockSizeOutOfRange = errors.New("encoder: block size out of range")
	ErrEmptyFile           = errors.New("encoder: file must be at least 1 byte")
	ErrFileTooLarge        = errors.New("encoder: file exceeds representable size")
	ErrNotLoaded           = errors.New("encoder: no file loaded")
	ErrMetadataTooLarge    = errors.New("encoder: metadata payload exceeds block size")
)

// State is the encoder's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StateStreaming
)

// EventKind enumerates the events an Encoder pushes to its Subscribers.
type EventKind int

const (
	EventEmitted EventKind = iota
)

// Event is a single encoder notification.
type Event struct {
	Kind     EventKind
	SymbolID uint32
}

// Subscriber receives encoder events. Registering a Subscriber is purely
// additive instrumentation; it never affects encode semantics.
type Subscriber interface {
	OnEncoderEvent(Event)
}

// Encoder holds all state needed to emit coded symbols for one staged
// file. It is owned exclusively by the caller; nothing about it is
// shared across instances.
type Encoder struct {
	state State

	sessionID uint32
	b         uint16
	k         uint32
	kPrime    uint32

	blocks          [][]byte
	metadataPayload []byte

	subscribers []Subscriber
}

// New constructs an empty, Idle encoder.
func New() *Encoder {
	return &Encoder{state: StateIdle}
}

// Subscribe registers s to receive future events.
func (e *Encoder) Subscribe(s Subscriber) {
	e.subscribers = append(e.subscribers, s)
}

func (e *Encoder) dispatch(evt Event) {
	for _, s := range e.subscribers {
		s.OnEncoderEvent(evt)
	}
}

// Load stages fileBytes for transfer, computing the source and parity
// blocks and the metadata payload. digest is supplied by the caller
// (SHA-256 of fileBytes) — the core never hashes the file itself. Load
// chooses a fresh, uniformly random session id, transitioning the
// encoder to Loaded. The metadata payload is zero-padded to blockSize;
// when the serialized metadata is longer than blockSize, the metadata
// packet carries it whole, without padding.
func (e *Encoder) Load(fileBytes []byte, filename, mime string, digest [meta.DigestSize]byte, blockSize uint16) error {
	if blockSize < MinBlockSize || blockSize > MaxBlockSize {
		return ErrBlockSizeOutOfRange
	}
	if len(fileBytes) == 0 {
		return ErrEmptyFile
	}
	if uint64(len(fileBytes)) > math.MaxUint32 {
		return ErrFileTooLarge
	}

	k := uint32((len(fileBytes) + int(blockSize) - 1) / int(blockSize))
	source := sliceIntoBlocks(fileBytes, k, blockSize)

	parityMap := precode.Build(k)
	parity := precode.Compute(parityMap, source)

	blocks := make([][]byte, 0, int(k)+len(parity))
	blocks = append(blocks, source...)
	blocks = append(blocks, parity...)

	sessionID, err := randomUint32()
	if err != nil {
		return err
	}

	m := meta.Metadata{
		Filename: filename,
		MIME:     mime,
		FileSize: uint32(len(fileBytes)),
		Digest:   digest,
		K:        k,
		Mode:     meta.ModeRaptorLite,
	}
	payload := meta.Encode(m)
	padded := make([]byte, blockSize)
	if len(payload) > int(blockSize) {
		padded = make([]byte, len(payload))
	}
	copy(padded, payload)

	e.sessionID = sessionID
	e.b = blockSize
	e.k = k
	e.kPrime = uint32(len(blocks))
	e.blocks = blocks
	e.metadataPayload = padded
	e.state = StateLoaded
	return nil
}

// Start transitions a Loaded or already-Streaming encoder to Streaming.
func (e *Encoder) Start() error {
	if e.state == StateIdle {
		return ErrNotLoaded
	}
	e.state = StateStreaming
	return nil
}

// Pause returns a Streaming encoder to Loaded without discarding any
// staged data.
func (e *Encoder) Pause() {
	if e.state == StateStreaming {
		e.state = StateLoaded
	}
}

// Stop returns the encoder to Idle. The staged blocks and metadata are
// not freed, but an Idle encoder does not use them: Start and Emit
// return ErrNotLoaded until Load is called again. Callers that want to
// fully release memory should discard the Encoder and construct a new
// one.
func (e *Encoder) Stop() {
	e.state = StateIdle
}

// Emit produces the packet for the given symbol id. id == 0 always
// returns the metadata packet; otherwise the payload is the XOR of the
// intermediate blocks named by symbol.Neighbors. Emit cannot fail once
// the encoder is Loaded or Streaming.
func (e *Encoder) Emit(id uint32) (frame.Packet, error) {
	if e.state == StateIdle {
		return frame.Packet{}, ErrNotLoaded
	}

	h := frame.Header{
		Version:   frame.ProtocolVersion,
		SessionID: e.sessionID,
		K:         e.kPrime,
		SymbolID:  id,
		BlockSize: e.b,
	}

	var payload []byte
	if symbol.IsMetadata(id) {
		h.IsMetadata = true
		payload = append([]byte(nil), e.metadataPayload...)
	} else {
		neighbors := symbol.Neighbors(e.sessionID, id, e.kPrime)
		payload = make([]byte, e.b)
		for _, idx := range neighbors {
			xorInto(payload, e.blocks[idx])
		}
	}

	pkt := frame.Packet{Header: h, Payload: payload}

	e.dispatch(Event{Kind: EventEmitted, SymbolID: id})
	return pkt, nil
}

// K returns the number of source blocks.
func (e *Encoder) K() uint32 { return e.k }

// KPrime returns the number of intermediate (source + parity) blocks.
func (e *Encoder) KPrime() uint32 { return e.kPrime }

// SessionID returns the session id chosen at Load time.
func (e *Encoder) SessionID() uint32 { return e.sessionID }

// State returns the encoder's current lifecycle state.
func (e *Encoder) State() State { return e.state }

func sliceIntoBlocks(data []byte, k uint32, blockSize uint16) [][]byte {
	blocks := make([][]byte, k)
	for i := uint32(0); i < k; i++ {
		block := make([]byte, blockSize)
		start := int(i) * int(blockSize)
		end := start + int(blockSize)
		if end > len(data) {
			end = len(data)
		}
		if start < len(data) {
			copy(block, data[start:end])
		}
		blocks[i] = block
	}
	return blocks
}

func xorInto(dst, src []byte) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] ^= src[i]
	}
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// Sequencer drives emit() ids the way an external host scheduler would:
// a monotonically increasing counter over 1..K', wrapping after K', with
// metadata interleaved every interval ticks.
type Sequencer struct {
	kPrime   uint32
	interval uint32
	tick     uint32
	counter  uint32
}

// NewSequencer constructs a Sequencer for the given K', interleaving
// metadata every interval ticks (DefaultMetadataInterval if interval is 0).
func NewSequencer(kPrime uint32, interval uint32) *Sequencer {
	if interval == 0 {
		interval = DefaultMetadataInterval
	}
	return &Sequencer{kPrime: kPrime, interval: interval, counter: 1}
}

// Next returns the next symbol id to emit.
func (s *Sequencer) Next() uint32 {
	s.tick++
	if s.tick%s.interval == 0 {
		return 0
	}
	id := s.counter
	s.counter++
	if s.counter > s.kPrime {
		s.counter = 1
	}
	return id
}
