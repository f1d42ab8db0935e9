package quic

import (
	"sort"
	"time"
)

// sentPacket is the retransmission record of spec.md §3 "Retransmission
// record": header info, frames, send timestamp, length, in-flight flag.
type sentPacket struct {
	pn        uint64
	frames    []Frame
	sentAt    time.Time
	size      int
	inFlight  bool
}

// ReliabilityBuffer is the reliability buffer of spec.md §4.4 (C4): one
// per packet-number space. It tracks sent packets in a map keyed by
// packet number, so the table itself keeps no order: OnAckFrame looks
// each acked number up directly and DetectLosses sorts the keys each time
// it runs (record shape after original_source ngtcp2_rtb.h).
type ReliabilityBuffer struct {
	space Space
	byPN  map[uint64]*sentPacket

	bytesInFlight int

	smoothedRTT time.Duration
	latestRTT   time.Duration
	rttVar      time.Duration
	minRTT      time.Duration
	hasRTT      bool

	lastAckedPN int64
	largestSent int64

	// ReorderingThreshold is the packet-number distance behind the
	// largest acked at which a packet is declared lost (spec.md §4.4
	// default 3).
	ReorderingThreshold uint64
	// TimeThresholdNumerator/Denominator encode the 9/8 multiplier on
	// max(smoothed_rtt, latest_rtt) from spec.md §4.4.
	TimeThresholdNumerator   int64
	TimeThresholdDenominator int64
}

func NewReliabilityBuffer(space Space) *ReliabilityBuffer {
	return &ReliabilityBuffer{
		space:                    space,
		byPN:                     make(map[uint64]*sentPacket),
		lastAckedPN:              -1,
		largestSent:              -1,
		ReorderingThreshold:      3,
		TimeThresholdNumerator:   9,
		TimeThresholdDenominator: 8,
	}
}

// OnPacketSent records a newly sent packet. inFlight packets contribute
// to bytesInFlight exactly once (spec.md §3 invariant).
func (r *ReliabilityBuffer) OnPacketSent(pn uint64, frames []Frame, size int, inFlight bool, now time.Time) {
	r.byPN[pn] = &sentPacket{pn: pn, frames: frames, sentAt: now, size: size, inFlight: inFlight}
	if inFlight {
		r.bytesInFlight += size
	}
	if int64(pn) > r.largestSent {
		r.largestSent = int64(pn)
	}
}

func (r *ReliabilityBuffer) BytesInFlight() int { return r.bytesInFlight }

// AckedRange is a callback payload describing one acked stream-data or
// crypto-data range, used by the connection to advance stream/crypto
// acked offsets (spec.md §4.4 step 2).
type AckedRange struct {
	StreamID uint64
	IsCrypto bool
	Offset   uint64
	Length   uint64
}

// OnAckFrame removes acked packets from the in-flight table and reports
// the stream/crypto ranges they acknowledged, plus the packet numbers it
// removed. The RTT estimators are updated when the largest sent packet is
// among them (spec.md §4.4 steps 1-3).
func (r *ReliabilityBuffer) OnAckFrame(ack ACKFrame, now time.Time) (acked []AckedRange, newlyAckedPNs []uint64) {
	ranges := ackRangesOf(ack)
	for _, rg := range ranges {
		for pn := rg.hi; ; pn-- {
			if sp, ok := r.byPN[pn]; ok {
				if sp.inFlight {
					r.bytesInFlight -= sp.size
				}
				for _, f := range sp.frames {
					switch fr := f.(type) {
					case StreamFrame:
						acked = append(acked, AckedRange{StreamID: fr.StreamID, Offset: fr.Offset, Length: uint64(len(fr.Data))})
					case CryptoFrame:
						acked = append(acked, AckedRange{IsCrypto: true, Offset: fr.Offset, Length: uint64(len(fr.Data))})
					}
				}
				if pn == uint64(r.largestSent) {
					r.updateRTT(now.Sub(sp.sentAt), time.Duration(ack.Delay)*time.Microsecond)
				}
				newlyAckedPNs = append(newlyAckedPNs, pn)
				delete(r.byPN, pn)
			}
			if pn == rg.lo {
				break
			}
		}
	}
	if int64(ack.LargestAcked) > r.lastAckedPN {
		r.lastAckedPN = int64(ack.LargestAcked)
	}
	return acked, newlyAckedPNs
}

type pnRange struct{ lo, hi uint64 }

func ackRangesOf(ack ACKFrame) []pnRange {
	hi := ack.LargestAcked
	lo := hi - ack.FirstBlock
	ranges := []pnRange{{lo: lo, hi: hi}}
	for _, r := range ack.Ranges {
		hi = lo - r.Gap - 2
		lo = hi - r.BlockLen
		ranges = append(ranges, pnRange{lo: lo, hi: hi})
	}
	return ranges
}

func (r *ReliabilityBuffer) updateRTT(sample, ackDelay time.Duration) {
	r.latestRTT = sample
	if !r.hasRTT {
		r.hasRTT = true
		r.minRTT = sample
		r.smoothedRTT = sample
		r.rttVar = sample / 2
		return
	}
	if sample < r.minRTT {
		r.minRTT = sample
	}
	adjusted := sample
	if adjusted > r.minRTT && adjusted-r.minRTT > ackDelay {
		adjusted -= ackDelay
	}
	diff := r.smoothedRTT - adjusted
	if diff < 0 {
		diff = -diff
	}
	r.rttVar = (3*r.rttVar + diff) / 4
	r.smoothedRTT = (7*r.smoothedRTT + adjusted) / 8
}

func (r *ReliabilityBuffer) SmoothedRTT() time.Duration { return r.smoothedRTT }
func (r *ReliabilityBuffer) RTTVar() time.Duration      { return r.rttVar }

// PTO returns the probe-timeout duration: smoothed RTT + 4*rttvar, or a
// fixed 999ms in the pre-handshake case with no RTT samples yet.
func (r *ReliabilityBuffer) PTO() time.Duration {
	if !r.hasRTT {
		return 999 * time.Millisecond
	}
	return r.smoothedRTT + 4*r.rttVar
}

// LostPacket is a packet declared lost: its frames must be requeued by
// the connection under a fresh packet number (spec.md §4.4).
type LostPacket struct {
	PN     uint64
	Frames []Frame
}

// DetectLosses runs the loss-detection algorithm of spec.md §4.4 against
// the largest acked packet number, unlinking lost packets from in-flight.
func (r *ReliabilityBuffer) DetectLosses(now time.Time) []LostPacket {
	if r.lastAckedPN < 0 {
		return nil
	}
	largestAcked := uint64(r.lastAckedPN)
	threshold := time.Duration(r.TimeThresholdNumerator) * maxDuration(r.smoothedRTT, r.latestRTT) / time.Duration(r.TimeThresholdDenominator)

	var pns []uint64
	for pn := range r.byPN {
		pns = append(pns, pn)
	}
	sort.Slice(pns, func(i, j int) bool { return pns[i] < pns[j] })

	var lost []LostPacket
	for _, pn := range pns {
		if pn >= largestAcked {
			continue
		}
		sp := r.byPN[pn]
		byTime := r.hasRTT && now.Sub(sp.sentAt) > threshold
		byPackets := largestAcked-pn >= r.ReorderingThreshold
		if byTime || byPackets {
			lost = append(lost, r.declareLost(pn, sp))
		}
	}
	return lost
}

// declareLost unlinks sp from in-flight accounting and strips the frames
// that never needed retransmission in the first place (ACK and PADDING
// carry no state the peer is missing).
func (r *ReliabilityBuffer) declareLost(pn uint64, sp *sentPacket) LostPacket {
	if sp.inFlight {
		r.bytesInFlight -= sp.size
	}
	var retransmittable []Frame
	for _, f := range sp.frames {
		if f.Type() != FrameACK && f.Type() != FramePadding {
			retransmittable = append(retransmittable, f)
		}
	}
	delete(r.byPN, pn)
	return LostPacket{PN: pn, Frames: retransmittable}
}

// ProbeTimeout implements the PTO backstop of spec.md §8 scenario 4: once
// PTO has elapsed since the oldest in-flight packet was sent, declare it
// lost regardless of whether any ACK has ever arrived in this space.
// DetectLosses alone can never fire before the first ACK (it needs a
// largest-acked to measure against), so without this a connection that
// never receives an ACK would retransmit nothing, forever
// (original_source's NGTCP2_RTB_FLAG_PROBE covers the same case via
// ngtcp2_rtb_mark_pkt_lost).
func (r *ReliabilityBuffer) ProbeTimeout(now time.Time) (LostPacket, bool) {
	var oldestPN uint64
	var oldestAt time.Time
	found := false
	for pn, sp := range r.byPN {
		if !sp.inFlight {
			continue
		}
		if !found || sp.sentAt.Before(oldestAt) {
			oldestPN, oldestAt = pn, sp.sentAt
			found = true
		}
	}
	if !found || now.Sub(oldestAt) <= r.PTO() {
		return LostPacket{}, false
	}
	return r.declareLost(oldestPN, r.byPN[oldestPN]), true
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
