// Package decoder implements the two-phase decode pipeline: belief
// propagation over the sparse XOR constraints carried by incoming
// symbols, parity-aided recovery of the source prefix once the parity
// map is known, and the session controller that exposes progress and
// verifies the reconstructed file against its digest.
package decoder

import (
	"crypto/sha256"
	"errors"

	"github.com/cyberian-hacksy/beammeup/pkg/frame"
	"github.com/cyberian-hacksy/beammeup/pkg/meta"
	"github.com/cyberian-hacksy/beammeup/pkg/precode"
	"github.com/cyberian-hacksy/beammeup/pkg/symbol"
)

// Outcome is the result of feeding one packet to Receive.
type Outcome int

const (
	// Accepted covers every in-band outcome that advances decoder state
	// without signalling anything unusual to the host: a fresh data or
	// metadata symbol, or a metadata symbol received when metadata was
	// already known.
	Accepted Outcome = iota
	// Duplicate means this symbol id was already seen; no state changed.
	Duplicate
	// NewSession means the packet's session id does not match the
	// currently bound session. The host must call Reset and re-feed the
	// triggering packet.
	NewSession
	// Rejected means the packet failed to parse (truncated or wrong
	// protocol version).
	Rejected
)

// ErrNoMetadata is returned by Reconstruct before a metadata symbol has
// been accepted.
var ErrNoMetadata = errors.New("decoder: metadata not yet known")

// ErrIncomplete is returned by Reconstruct when metadata is known but at
// least one source block is still undecoded.
var ErrIncomplete = errors.New("decoder: source blocks not all decoded")

// EventKind enumerates the events a Decoder pushes to its Subscribers.
type EventKind int

const (
	EventAccepted EventKind = iota
	EventDuplicate
	EventNewSession
	EventRejected
	EventMetadata
	EventComplete
)

// Event is a single decoder notification.
type Event struct {
	Kind     EventKind
	SymbolID uint32
}

// Subscriber receives decoder events. Registering one is purely additive
// instrumentation and never changes decode semantics.
type Subscriber interface {
	OnDecoderEvent(Event)
}

type constraint struct {
	indices []uint32
	payload []byte
}

// Decoder holds all state for decoding one session. It starts empty;
// the first successfully parsed packet binds (sessionID, K', B).
type Decoder struct {
	bound     bool
	sessionID uint32
	b         uint16
	kPrime    uint32

	k         uint32
	parityMap precode.Map
	metadata  *meta.Metadata

	blocks       [][]byte
	solvedSource int
	solvedTotal  int

	seenIDs map[uint32]struct{}
	pending []*constraint

	subscribers []Subscriber
}

// New returns an empty decoder, bound to no session.
func New() *Decoder {
	return &Decoder{}
}

// Subscribe registers s to receive future events.
func (d *Decoder) Subscribe(s Subscriber) {
	d.subscribers = append(d.subscribers, s)
}

func (d *Decoder) dispatch(evt Event) {
	for _, s := range d.subscribers {
		s.OnDecoderEvent(evt)
	}
}

// Receive feeds one packet to the decoder, advancing its state.
func (d *Decoder) Receive(buf []byte) Outcome {
	pkt, err := frame.Parse(buf)
	if err != nil {
		d.dispatch(Event{Kind: EventRejected})
		return Rejected
	}
	h := pkt.Header

	if d.bound && h.SessionID != d.sessionID {
		d.dispatch(Event{Kind: EventNewSession, SymbolID: h.SymbolID})
		return NewSession
	}

	if !d.bound {
		d.bind(h)
	}

	if _, seen := d.seenIDs[h.SymbolID]; seen {
		d.dispatch(Event{Kind: EventDuplicate, SymbolID: h.SymbolID})
		return Duplicate
	}
	d.seenIDs[h.SymbolID] = struct{}{}

	if h.IsMetadata {
		d.receiveMetadata(pkt.Payload)
		d.dispatch(Event{Kind: EventAccepted, SymbolID: h.SymbolID})
		return Accepted
	}

	indices := symbol.Neighbors(d.sessionID, h.SymbolID, d.kPrime)
	payload := append([]byte(nil), pkt.Payload...)
	d.pending = append(d.pending, &constraint{indices: indices, payload: payload})

	d.reduceWithParity()

	d.dispatch(Event{Kind: EventAccepted, SymbolID: h.SymbolID})
	if d.IsComplete() {
		d.dispatch(Event{Kind: EventComplete})
	}
	return Accepted
}

func (d *Decoder) bind(h frame.Header) {
	d.bound = true
	d.sessionID = h.SessionID
	d.b = h.BlockSize
	d.kPrime = h.K
	d.blocks = make([][]byte, d.kPrime)
	d.seenIDs = make(map[uint32]struct{})
}

func (d *Decoder) receiveMetadata(payload []byte) {
	if d.metadata != nil {
		return
	}
	m, err := meta.Parse(payload)
	if err != nil {
		return
	}

	parityMap := precode.Build(m.K)
	newKPrime := m.K + uint32(len(parityMap))
	if newKPrime != d.kPrime || d.blocks == nil {
		newBlocks := make([][]byte, newKPrime)
		copy(newBlocks, d.blocks)
		d.blocks = newBlocks
		d.kPrime = newKPrime
	}

	d.k = m.K
	d.parityMap = parityMap
	d.metadata = &m
	d.recountSolved()

	d.dispatch(Event{Kind: EventMetadata})

	d.reduceWithParity()
}

func (d *Decoder) recountSolved() {
	d.solvedSource = 0
	d.solvedTotal = 0
	for i, b := range d.blocks {
		if b == nil {
			continue
		}
		d.solvedTotal++
		if uint32(i) < d.k {
			d.solvedSource++
		}
	}
}

// reduceWithParity runs belief-propagation reduction to a fixpoint, then
// (if the parity map is known) parity recovery; any parity peel re-enters
// reduction, repeating until neither phase makes progress.
func (d *Decoder) reduceWithParity() {
	for {
		d.reduce()
		if !d.recoverParity() {
			return
		}
	}
}

// reduce implements the belief-propagation inner loop of §4.7: repeatedly
// scan pending constraints, cancelling known blocks out of each one,
// peeling any constraint that reduces to a single unknown, and discarding
// any that reduces to none.
func (d *Decoder) reduce() {
	for {
		progressed := false
		kept := d.pending[:0:0]
		for _, c := range d.pending {
			remaining, payload := d.reduceConstraint(c)
			switch len(remaining) {
			case 0:
				progressed = true
			case 1:
				j := remaining[0]
				if d.blocks[j] == nil {
					d.setBlock(j, payload)
					progressed = true
				}
			default:
				if len(remaining) != len(c.indices) {
					progressed = true
				}
				kept = append(kept, &constraint{indices: remaining, payload: payload})
			}
		}
		d.pending = kept
		if !progressed {
			return
		}
	}
}

func (d *Decoder) reduceConstraint(c *constraint) ([]uint32, []byte) {
	payload := append([]byte(nil), c.payload...)
	var remaining []uint32
	for _, idx := range c.indices {
		if known := d.blocks[idx]; known != nil {
			xorInto(payload, known)
		} else {
			remaining = append(remaining, idx)
		}
	}
	return remaining, payload
}

// recoverParity runs §4.8's guided Gaussian elimination: for each parity
// row whose own block is known, if exactly one of its source indices is
// still unknown, solve for it. Repeats until a full pass over all rows
// recovers nothing new. Returns true if it recovered at least one block.
func (d *Decoder) recoverParity() bool {
	if d.parityMap == nil {
		return false
	}
	anyRecovered := false
	for {
		progressed := false
		for p, group := range d.parityMap {
			parityIdx := d.k + uint32(p)
			parityBlock := d.blocks[parityIdx]
			if parityBlock == nil {
				continue
			}
			var unknown uint32
			unknownCount := 0
			for _, idx := range group {
				if d.blocks[idx] == nil {
					unknown = idx
					unknownCount++
					if unknownCount > 1 {
						break
					}
				}
			}
			if unknownCount != 1 {
				continue
			}
			recovered := append([]byte(nil), parityBlock...)
			for _, idx := range group {
				if idx == unknown {
					continue
				}
				xorInto(recovered, d.blocks[idx])
			}
			d.setBlock(unknown, recovered)
			progressed = true
			anyRecovered = true
		}
		if !progressed {
			return anyRecovered
		}
	}
}

func (d *Decoder) setBlock(idx uint32, payload []byte) {
	d.blocks[idx] = payload
	d.solvedTotal++
	if idx < d.k {
		d.solvedSource++
	}
}

// Reset clears all decoder state except registered Subscribers (the
// host's error-display side-channel), per §4.9.
func (d *Decoder) Reset() {
	subs := d.subscribers
	*d = Decoder{}
	d.subscribers = subs
}

// IsComplete reports whether every source block has been decoded. Parity
// slots are a means, not an end: only the first K source slots matter.
func (d *Decoder) IsComplete() bool {
	return d.metadata != nil && d.solvedSource == int(d.k)
}

// Progress returns solvedSource/K, or 0 if K is not yet known.
func (d *Decoder) Progress() float64 {
	if d.k == 0 {
		return 0
	}
	return float64(d.solvedSource) / float64(d.k)
}

// Metadata returns the decoded metadata, or nil if none has been
// accepted yet.
func (d *Decoder) Metadata() *meta.Metadata {
	return d.metadata
}

// UniqueSymbolCount returns the number of distinct symbol ids received so far.
func (d *Decoder) UniqueSymbolCount() int {
	return len(d.seenIDs)
}

// Reconstruct concatenates the K source blocks and truncates to the
// file's declared size.
func (d *Decoder) Reconstruct() ([]byte, error) {
	if d.metadata == nil {
		return nil, ErrNoMetadata
	}
	out := make([]byte, 0, int(d.k)*int(d.b))
	for i := uint32(0); i < d.k; i++ {
		b := d.blocks[i]
		if b == nil {
			return nil, ErrIncomplete
		}
		out = append(out, b...)
	}
	if uint32(len(out)) > d.metadata.FileSize {
		out = out[:d.metadata.FileSize]
	}
	return out, nil
}

// Verify recomputes SHA-256 over Reconstruct's output and compares it
// against the digest carried in the metadata.
func (d *Decoder) Verify() bool {
	data, err := d.Reconstruct()
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	return sum == d.metadata.Digest
}

func xorInto(dst, src []byte) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] ^= src[i]
	}
}
