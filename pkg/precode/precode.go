// Package precode builds the deterministic parity map described in the
// block model: given K source blocks, it derives the groups of source
// indices whose XOR becomes a parity block. Construction is pure and has
// no dependence on session or symbol identifiers.
package precode

import "math"

// Group is a set of source-block indices whose XOR forms one parity block.
type Group []uint32

// Map is the ordered list of parity groups for a given K. len(Map) == M,
// the number of parity blocks; parity block K+i is the XOR of Map[i].
type Map []Group

// GroupSize returns G = ceil(sqrt(K)), the base group size used by all
// three layers.
func GroupSize(k uint32) uint32 {
	if k == 0 {
		return 0
	}
	return uint32(math.Ceil(math.Sqrt(float64(k))))
}

// Build constructs the parity map for k source blocks, concatenating the
// consecutive, offset, and strided layers in that order.
func Build(k uint32) Map {
	if k == 0 {
		return nil
	}
	g := GroupSize(k)
	var m Map
	m = append(m, consecutiveLayer(k, g)...)
	m = append(m, offsetLayer(k, g)...)
	m = append(m, stridedLayer(k, g)...)
	return m
}

func consecutiveLayer(k, g uint32) Map {
	var groups Map
	for i := uint32(0); i*g < k; i++ {
		start := i * g
		end := (i + 1) * g
		if end > k {
			end = k
		}
		groups = append(groups, rangeGroup(start, end))
	}
	return groups
}

func offsetLayer(k, g uint32) Map {
	var groups Map
	for i := uint32(0); ; i++ {
		start := i*g + g/2
		if start >= k {
			break
		}
		end := start + g
		if end > k {
			end = k
		}
		if end-start < 2 {
			continue
		}
		groups = append(groups, rangeGroup(start, end))
	}
	return groups
}

func stridedLayer(k, g uint32) Map {
	var groups Map
	limit := g
	if k < limit {
		limit = k
	}
	for r := uint32(0); r < limit; r++ {
		var group Group
		for idx := r; idx < k; idx += g {
			group = append(group, idx)
		}
		if len(group) < 2 {
			continue
		}
		groups = append(groups, group)
	}
	return groups
}

func rangeGroup(start, end uint32) Group {
	g := make(Group, 0, end-start)
	for i := start; i < end; i++ {
		g = append(g, i)
	}
	return g
}

// Compute derives the M parity blocks from the K source blocks, each
// parity block being the byte-wise XOR of the source blocks named by its
// group.
func Compute(m Map, source [][]byte) [][]byte {
	out := make([][]byte, len(m))
	for i, group := range m {
		if len(group) == 0 {
			out[i] = nil
			continue
		}
		blockLen := len(source[group[0]])
		parity := make([]byte, blockLen)
		for _, idx := range group {
			xorInto(parity, source[idx])
		}
		out[i] = parity
	}
	return out
}

func xorInto(dst, src []byte) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] ^= src[i]
	}
}
