package quic

import "sort"

// gapRange is [Begin, End) of offsets not yet received.
type gapRange struct {
	Begin, End uint64
}

// gaptr tracks the set of unreceived byte ranges over [0, +inf), mirroring
// ngtcp2_gaptr's singly linked gap list (spec.md §4.5, original_source
// ngtcp2_gaptr.h) as a sorted Go slice instead of a linked list.
type gaptr struct {
	gaps []gapRange
}

func newGaptr() *gaptr {
	return &gaptr{gaps: []gapRange{{Begin: 0, End: ^uint64(0)}}}
}

// push records that [offset, offset+length) has been received, merging
// with adjacent/overlapping gaps. Duplicate bytes are implicitly
// discarded because only the gap complement is tracked.
func (g *gaptr) push(offset, length uint64) {
	if length == 0 {
		return
	}
	begin, end := offset, offset+length

	var out []gapRange
	for _, r := range g.gaps {
		switch {
		case end <= r.Begin || begin >= r.End:
			out = append(out, r)
		default:
			if r.Begin < begin {
				out = append(out, gapRange{Begin: r.Begin, End: begin})
			}
			if r.End > end {
				out = append(out, gapRange{Begin: end, End: r.End})
			}
		}
	}
	g.gaps = out
}

// firstGapOffset returns the offset of the first unreceived byte. If
// there is no gap it returns ^uint64(0) (i.e. all data ever sent has been
// received, matching ngtcp2_gaptr_first_gap_offset's UINT64_MAX sentinel).
func (g *gaptr) firstGapOffset() uint64 {
	if len(g.gaps) == 0 {
		return ^uint64(0)
	}
	return g.gaps[0].Begin
}

// contiguousPrefix returns the length of data received since offset 0
// with no gaps (spec.md §4.5).
func (g *gaptr) contiguousPrefix() uint64 {
	return g.firstGapOffset()
}

// sortGaps orders the gap list by Begin. Nothing in the package calls it;
// push keeps the list ordered on its own.
func (g *gaptr) sortGaps() {
	sort.Slice(g.gaps, func(i, j int) bool { return g.gaps[i].Begin < g.gaps[j].Begin })
}
