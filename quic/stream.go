package quic

import "fmt"

// Initiator and Directionality decode the two low bits of a stream id
// (spec.md §3).
type Initiator int

const (
	InitiatorClient Initiator = iota
	InitiatorServer
)

type Directionality int

const (
	DirectionalityBidi Directionality = iota
	DirectionalityUni
)

func StreamInitiator(id uint64) Initiator {
	if id&0x01 != 0 {
		return InitiatorServer
	}
	return InitiatorClient
}

func StreamDirectionality(id uint64) Directionality {
	if id&0x02 != 0 {
		return DirectionalityUni
	}
	return DirectionalityBidi
}

// StreamState flags (spec.md §3).
type StreamState struct {
	ShutRD  bool
	ShutWR  bool
	SentRST bool
	RecvRST bool
}

// sendChunk is one application-supplied buffer awaiting transmission. The
// stream advances a read cursor across chunks and tracks the acked
// prefix as a single monotonic offset, per §9's "ring-of-chunks with a
// monotonic acked-up-to offset" design note.
type sendChunk struct {
	offset int // byte offset of chunk start within the stream
	data   []byte
}

// Stream is the per-stream object of spec.md §4.5/§3. It owns its send
// and receive buffers and both flow-control windows; the connection
// drives it via the methods below rather than touching buffers directly.
type Stream struct {
	ID uint64

	// send side
	chunks       []sendChunk
	txOffset     uint64 // next byte offset to hand out for transmission
	ackedOffset  uint64 // prefix acked and reclaimable
	sentOffset   uint64 // high-water mark of bytes handed to frames
	finQueued    bool
	finalSendLen uint64
	finAcked     bool

	// receive side
	recv             *gaptr
	recvBuf          map[uint64][]byte // offset -> data, pruned as delivered
	lastRxOffset     uint64            // bytes delivered to the application
	finalRecvOffset  uint64
	hasFinalRecv     bool

	// flow control
	maxTxOffset uint64 // credit granted by peer
	maxRxOffset uint64 // credit we grant

	State       StreamState
	AppErrCode  uint16
}

// NewStream constructs a stream with the given initial flow-control
// windows (spec.md §4.5 lifecycle: "created on first observation").
func NewStream(id uint64, initialMaxTx, initialMaxRx uint64) *Stream {
	return &Stream{
		ID:          id,
		recv:        newGaptr(),
		recvBuf:     make(map[uint64][]byte),
		maxTxOffset: initialMaxTx,
		maxRxOffset: initialMaxRx,
	}
}

// Write appends application bytes to the send buffer. Returns
// ErrStreamDataBlocked if the write would need more credit than
// maxTxOffset currently allows; the caller should retry after a
// MAX_STREAM_DATA arrives.
var ErrStreamDataBlocked = fmt.Errorf("quic: stream-data-blocked")
var ErrStreamClosedForWrite = fmt.Errorf("quic: stream shut for write")

func (s *Stream) Write(p []byte) (int, error) {
	if s.State.ShutWR || s.State.SentRST {
		return 0, ErrStreamClosedForWrite
	}
	pending := s.txOffset + uint64(len(p))
	if pending > s.maxTxOffset {
		return 0, ErrStreamDataBlocked
	}
	s.chunks = append(s.chunks, sendChunk{offset: int(s.txOffset), data: append([]byte(nil), p...)})
	s.txOffset += uint64(len(p))
	return len(p), nil
}

// ShutdownWrite queues a FIN at the current tx offset. Resetting the send
// side instead is ResetSend's job.
func (s *Stream) ShutdownWrite() {
	if s.State.ShutWR {
		return
	}
	s.State.ShutWR = true
	s.finQueued = true
	s.finalSendLen = s.txOffset
}

// ResetSend queues an RST_STREAM with the supplied application error and
// the current tx offset as final offset (spec.md §4.5 "shutdown_write").
// Once RST_STREAM has been sent, ExtendMaxRxOffset no longer produces
// MAX_STREAM_DATA frames for the stream.
func (s *Stream) ResetSend(appErrCode uint16) RstStreamFrame {
	s.State.ShutWR = true
	s.State.SentRST = true
	s.AppErrCode = appErrCode
	s.chunks = nil
	return RstStreamFrame{StreamID: s.ID, AppErrCode: appErrCode, FinalOffset: s.txOffset}
}

// OnStopSending handles an incoming STOP_SENDING: queue RST_STREAM with
// the STOPPING application code at the current tx offset (spec.md §4.5).
const AppErrStopping uint16 = 0x000 // placeholder app code for peer-requested stop

func (s *Stream) OnStopSending() RstStreamFrame {
	return s.ResetSend(AppErrStopping)
}

// PendingSendRange returns up to maxLen unsent bytes starting at the
// current send cursor, along with their stream offset, for packaging
// into a STREAM frame. ok is false if there is nothing new to send.
func (s *Stream) PendingSendRange(maxLen int) (offset uint64, data []byte, fin bool, ok bool) {
	start := s.sentOffset
	var out []byte
	for _, c := range s.chunks {
		cStart := uint64(c.offset)
		cEnd := cStart + uint64(len(c.data))
		if cEnd <= start {
			continue
		}
		skip := uint64(0)
		if cStart < start {
			skip = start - cStart
		}
		avail := c.data[skip:]
		need := maxLen - len(out)
		if need <= 0 {
			break
		}
		if len(avail) > need {
			avail = avail[:need]
		}
		out = append(out, avail...)
		if len(avail) < len(c.data)-int(skip) {
			break
		}
	}
	if len(out) == 0 {
		if s.finQueued && !s.finAcked && s.sentOffset >= s.finalSendLen && start == s.sentOffset {
			// FIN-only frame at end of stream.
			return start, nil, true, true
		}
		return 0, nil, false, false
	}
	s.sentOffset += uint64(len(out))
	finHere := s.finQueued && s.sentOffset >= s.finalSendLen
	return start, out, finHere, true
}

// OnAcked advances the acked prefix and reclaims fully-acked chunks
// (spec.md §4.4 step 2, §4.5). It is idempotent: acking an
// already-reclaimed range is a no-op (duplicate ACKs / retransmitted
// ranges, per §8's ACK round-trip property).
func (s *Stream) OnAcked(offset uint64, length uint64) {
	end := offset + length
	if end > s.ackedOffset {
		// Only safe to bump the contiguous acked offset if there is no
		// gap between what we've already reclaimed and this range; out
		// of order acks leave ackedOffset where it is. After a loss the
		// connection rewinds the send cursor to the lost frame's offset,
		// so bytes past it can be sent again even if already acked.
		if offset <= s.ackedOffset {
			s.ackedOffset = end
		}
	}
	if s.finQueued && offset+length >= s.finalSendLen {
		s.finAcked = true
	}
	s.reclaim()
}

func (s *Stream) reclaim() {
	out := s.chunks[:0]
	for _, c := range s.chunks {
		if uint64(c.offset)+uint64(len(c.data)) <= s.ackedOffset {
			continue
		}
		out = append(out, c)
	}
	s.chunks = out
}

// InFlightEmpty reports whether all outgoing data (and FIN, if queued)
// has been acknowledged (spec.md §8 scenario 1).
func (s *Stream) InFlightEmpty() bool {
	return s.ackedOffset >= s.txOffset && (!s.finQueued || s.finAcked)
}

// ErrFlowControl and ErrFinalOffset are the two stream-level protocol
// violations from spec.md §4.5/§7.
var ErrFlowControl = fmt.Errorf("quic: flow-control error")
var ErrFinalOffset = fmt.Errorf("quic: final-offset error")

// Receive processes one arriving STREAM frame's payload: reassembly,
// flow-control, and final-offset checks (spec.md §4.5). It returns the
// newly-contiguous bytes (possibly empty) ready for delivery to the
// application, and whether FIN has now been delivered.
func (s *Stream) Receive(offset uint64, data []byte, fin bool) ([]byte, bool, error) {
	end := offset + uint64(len(data))
	if end > s.maxRxOffset {
		return nil, false, ErrFlowControl
	}
	if s.hasFinalRecv {
		if (fin && end != s.finalRecvOffset) || end > s.finalRecvOffset {
			return nil, false, ErrFinalOffset
		}
	}
	if fin {
		s.hasFinalRecv = true
		s.finalRecvOffset = end
	}

	if s.State.RecvRST {
		return nil, false, nil
	}

	if len(data) > 0 {
		s.recvBuf[offset] = append([]byte(nil), data...)
		s.recv.push(offset, uint64(len(data)))
	}

	prefix := s.recv.contiguousPrefix()
	if prefix <= s.lastRxOffset {
		delivered := s.hasFinalRecv && s.lastRxOffset >= s.finalRecvOffset
		return nil, delivered, nil
	}

	out := s.assembleRange(s.lastRxOffset, prefix)
	s.lastRxOffset = prefix
	s.pruneDelivered()

	finDelivered := s.hasFinalRecv && s.lastRxOffset >= s.finalRecvOffset
	return out, finDelivered, nil
}

// assembleRange stitches together the stored chunks covering [start,end).
func (s *Stream) assembleRange(start, end uint64) []byte {
	type piece struct {
		off  uint64
		data []byte
	}
	var pieces []piece
	for off, d := range s.recvBuf {
		if off+uint64(len(d)) <= start || off >= end {
			continue
		}
		pieces = append(pieces, piece{off: off, data: d})
	}
	out := make([]byte, 0, end-start)
	cur := start
	for cur < end {
		advanced := false
		for _, p := range pieces {
			if p.off > cur {
				continue
			}
			pEnd := p.off + uint64(len(p.data))
			if pEnd <= cur {
				continue
			}
			skip := cur - p.off
			take := p.data[skip:]
			if uint64(len(take)) > end-cur {
				take = take[:end-cur]
			}
			out = append(out, take...)
			cur += uint64(len(take))
			advanced = true
			break
		}
		if !advanced {
			break
		}
	}
	return out
}

func (s *Stream) pruneDelivered() {
	for off, d := range s.recvBuf {
		if off+uint64(len(d)) <= s.lastRxOffset {
			delete(s.recvBuf, off)
		}
	}
}

// OnRstStream handles an incoming RST_STREAM (spec.md §4.5): sets
// SHUT_RD/RECV_RST, and validates the final offset against any prior FIN
// (§8 scenario 5).
func (s *Stream) OnRstStream(finalOffset uint64) error {
	if s.hasFinalRecv && finalOffset != s.finalRecvOffset {
		return ErrFinalOffset
	}
	s.State.ShutRD = true
	s.State.RecvRST = true
	s.hasFinalRecv = true
	s.finalRecvOffset = finalOffset
	return nil
}

// ExtendMaxRxOffset grants additional receive credit, returning the
// MAX_STREAM_DATA frame to send, or ok=false if RST suppresses it
// (spec.md §4.5 "Reset interactions").
func (s *Stream) ExtendMaxRxOffset(newMax uint64) (MaxStreamDataFrame, bool) {
	if s.State.RecvRST || s.State.SentRST || newMax <= s.maxRxOffset {
		return MaxStreamDataFrame{}, false
	}
	s.maxRxOffset = newMax
	return MaxStreamDataFrame{StreamID: s.ID, Max: newMax}, true
}

// ExtendMaxTxOffset installs new send credit from a peer MAX_STREAM_DATA.
func (s *Stream) ExtendMaxTxOffset(newMax uint64) {
	if newMax > s.maxTxOffset {
		s.maxTxOffset = newMax
	}
}

// Closed reports whether the stream can be released: both halves closed
// and all outgoing data acked (spec.md §3 lifecycle).
func (s *Stream) Closed() bool {
	rdDone := s.State.ShutRD || (s.hasFinalRecv && s.lastRxOffset >= s.finalRecvOffset)
	wrDone := s.State.ShutWR && s.InFlightEmpty()
	return rdDone && wrDone
}
