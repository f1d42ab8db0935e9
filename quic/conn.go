package quic

import (
	"fmt"
	"time"
)

// ConnState is one of the states in spec.md §4.6.
type ConnState int

const (
	StateInitial ConnState = iota
	StateHandshake
	StatePostHandshake
	StateClosing
	StateDraining
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateHandshake:
		return "handshake"
	case StatePostHandshake:
		return "post_handshake"
	case StateClosing:
		return "closing"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Role distinguishes client and server, which affects stream-id parity
// and CID length (spec.md §3).
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// ackState tracks received-but-unacked packet numbers in one space, for
// the ACK generation policy of spec.md §4.6.
type ackState struct {
	received      map[uint64]struct{}
	largestSeen   int64
	ackElicited   bool
	ackTimerArmed bool
	ackDelayAt    time.Time
}

func newAckState() *ackState {
	return &ackState{received: make(map[uint64]struct{}), largestSeen: -1}
}

// spaceState bundles everything per packet-number space (spec.md §3, §4.6
// "Packet-number spaces are strictly isolated").
type spaceState struct {
	space       Space
	nextPN      uint64
	keys        *DirectionalKeys
	rtb         *ReliabilityBuffer
	ack         *ackState
	cryptoTx    uint64 // next crypto send offset
	cryptoRxBuf map[uint64][]byte
	cryptoGap   *gaptr
	discarded   bool
}

func newSpaceState(space Space) *spaceState {
	return &spaceState{
		space:       space,
		rtb:         NewReliabilityBuffer(space),
		ack:         newAckState(),
		cryptoRxBuf: make(map[uint64][]byte),
		cryptoGap:   newGaptr(),
	}
}

// Config bundles connection-construction parameters.
type Config struct {
	Role               Role
	LocalTransportParams  TransportParameters
	IdleTimeout        time.Duration
	AckDelay           time.Duration // default 25ms in Application space (spec.md §4.6)
	MaxData            uint64
	InitialMaxStreamData uint64
	InitialMaxStreamIDBidi uint64
	InitialMaxStreamIDUni  uint64
}

// Connection is the state machine of spec.md §4.6 (C6), the hub every
// other component is driven through. It holds no global mutable state
// (spec.md §9): everything lives on this struct, constructed once per
// connection (spec.md §9 "Global mutable state" design note).
type Connection struct {
	cfg  Config
	role Role

	localCID  []byte
	peerCID   []byte
	peerResetToken [16]byte
	haveResetToken bool

	state ConnState

	spaces [numSpaces]*spaceState

	tls        QuicToTls
	tlsCb      *connTlsCallback
	handshakeDone bool

	streams map[uint64]*Stream
	dispatch *Dispatcher

	nextLocalStreamIDBidi uint64
	nextLocalStreamIDUni  uint64
	maxLocalStreamIDBidi  uint64
	maxLocalStreamIDUni   uint64
	maxRemoteStreamIDBidi uint64
	maxRemoteStreamIDUni  uint64

	connMaxTxOffset uint64 // peer-granted connection send credit
	connMaxRxOffset uint64 // credit we grant
	connRxUsed      uint64 // sum of last_rx_offset across streams

	peerTransportParams *TransportParameters

	lastActivity time.Time

	closeErr       *closeInfo
	closeDeadline  time.Time

	zeroRTTPNs []uint64 // packet numbers sent as 0-RTT, for the reject sweep
}

type closeInfo struct {
	AppLevel bool
	Code     uint16
	Reason   string
	sentOnce bool
}

// connTlsCallback adapts the TlsToQuic calls back onto the Connection.
type connTlsCallback struct{ c *Connection }

func (cb *connTlsCallback) OnNewKey(dir KeyDirection, space Space, secret []byte, suite AEADSuite) {
	k := DeriveKeys(secret, suite)
	ss := cb.c.spaces[space]
	if ss.keys == nil {
		ss.keys = &DirectionalKeys{}
	}
	if dir == KeyDirectionRead {
		ss.keys.Read = k
	} else {
		ss.keys.Write = k
	}
}

func (cb *connTlsCallback) OnHandshakeDone() {
	cb.c.handshakeDone = true
	if cb.c.state == StateHandshake || cb.c.state == StateInitial {
		cb.c.state = StatePostHandshake
	}
}

// NewConnection constructs a connection for role, with the given local
// and peer connection IDs. peerCID is the destination CID of every
// outgoing packet; the connection keeps it as given and does not replace
// it from incoming packets.
func NewConnection(cfg Config, role Role, localCID, peerCID []byte, tlsFactory func(cb TlsToQuic) QuicToTls) *Connection {
	if cfg.AckDelay == 0 {
		cfg.AckDelay = 25 * time.Millisecond
	}
	c := &Connection{
		cfg:      cfg,
		role:     role,
		localCID: localCID,
		peerCID:  peerCID,
		state:    StateInitial,
		streams:  make(map[uint64]*Stream),
		connMaxRxOffset: cfg.MaxData,
		lastActivity:    time.Now(),
	}
	for i := range c.spaces {
		c.spaces[i] = newSpaceState(Space(i))
	}
	c.tlsCb = &connTlsCallback{c: c}
	c.tls = tlsFactory(c.tlsCb)

	if role == RoleClient {
		c.nextLocalStreamIDBidi = 0x00
		c.nextLocalStreamIDUni = 0x02
	} else {
		c.nextLocalStreamIDBidi = 0x01
		c.nextLocalStreamIDUni = 0x03
	}
	c.maxRemoteStreamIDBidi = cfg.InitialMaxStreamIDBidi
	c.maxRemoteStreamIDUni = cfg.InitialMaxStreamIDUni
	c.maxLocalStreamIDBidi = cfg.InitialMaxStreamIDBidi
	c.maxLocalStreamIDUni = cfg.InitialMaxStreamIDUni
	return c
}

func (c *Connection) State() ConnState { return c.state }

// SetDispatcher binds the multiplex dispatcher (C7) used to route stream
// data and tag newly opened streams.
func (c *Connection) SetDispatcher(d *Dispatcher) { c.dispatch = d }

// --- Stream lifecycle -------------------------------------------------

// OpenStream allocates a new locally-initiated bidirectional stream
// tagged for tag (spec.md §4.7), gated by the peer-advertised stream-id
// limit (spec.md §4.5 "Stream-ID gating").
func (c *Connection) OpenStream(tag ProtoTag) (*Stream, error) {
	resolved, err := c.dispatch.TagForNewStream(tag)
	if err != nil {
		return nil, err
	}
	base := c.nextLocalStreamIDBidi
	id := ApplyTag(base, resolved)
	if base > c.maxRemoteStreamIDBidi {
		return nil, fmt.Errorf("quic: stream-id-blocked")
	}
	// Step by 8, not 4: bits 0-1 are initiator/directionality and bit 2
	// is the tag bit ApplyTag sets above, so the counter must skip over
	// all three to keep base's low 3 bits at zero going into ApplyTag.
	// Stepping by 4 would let the counter itself toggle bit 2, which
	// collapses alternating same-tag calls onto the same id once
	// ApplyTag forces that bit — the exact collision spec.md §4.7/§9
	// calls out.
	c.nextLocalStreamIDBidi += 8
	s := NewStream(id, c.cfg.InitialMaxStreamData, c.cfg.InitialMaxStreamData)
	if c.peerTransportParams != nil {
		s.maxTxOffset = c.peerTransportParams.InitialMaxStreamData
	}
	c.streams[id] = s
	return s, nil
}

// getOrCreateRemoteStream implements "created on first observation" for
// peer-initiated streams (spec.md §3 lifecycle), validating the id is
// within our advertised limit.
func (c *Connection) getOrCreateRemoteStream(id uint64) (*Stream, error) {
	if s, ok := c.streams[id]; ok {
		return s, nil
	}
	initiator := StreamInitiator(id)
	localInitiator := InitiatorClient
	if c.role == RoleServer {
		localInitiator = InitiatorServer
	}
	if initiator == localInitiator {
		// id claims to be ours but we've never opened it: still fine if
		// below our own counter (e.g. reordered frame for a stream we
		// opened), otherwise it's a peer violation.
		return nil, fmt.Errorf("quic: stream-id violation: unknown local stream %d", id)
	}
	limit := c.maxLocalStreamIDBidi
	if StreamDirectionality(id) == DirectionalityUni {
		limit = c.maxLocalStreamIDUni
	}
	if id > limit {
		return nil, fmt.Errorf("quic: stream-id violation: %d exceeds limit %d", id, limit)
	}
	s := NewStream(id, c.cfg.InitialMaxStreamData, c.cfg.InitialMaxStreamData)
	c.streams[id] = s
	return s, nil
}

// releaseIfDone frees a stream object once both halves are closed and all
// outgoing data is acked (spec.md §3 lifecycle, §5 "Resources").
func (c *Connection) releaseIfDone(s *Stream) {
	if s.Closed() {
		delete(c.streams, s.ID)
	}
}

// --- Sending ------------------------------------------------------------

// BuildPacket assembles one protected packet for the given space from
// whatever frames are pending (ACKs, stream data, control frames), or
// returns ok=false if there is nothing to send. now is used for
// timestamping the retransmission record.
func (c *Connection) BuildPacket(space Space, maxSize int, now time.Time) (datagram []byte, ok bool, err error) {
	ss := c.spaces[space]
	if ss.keys == nil || ss.keys.Write == nil {
		return nil, false, nil
	}

	var frames []Frame
	headerReserve := 64 // long-header worst case; short header uses far less
	budget := maxSize - headerReserve - ss.keys.Write.TagSize()

	if ss.ack.ackElicited {
		frames = append(frames, c.buildAckFrame(ss))
		ss.ack.ackElicited = false
		ss.ack.ackTimerArmed = false
	}

	if space == SpaceInitial || space == SpaceHandshake || space == SpaceApplication {
		if b, ok2 := c.nextCryptoFrame(ss, budget); ok2 {
			frames = append(frames, b)
			budget -= len(b.Data) + 8
		}
	}

	if space == SpaceApplication {
		frames = append(frames, c.nextStreamFrames(budget)...)
	}

	if len(frames) == 0 {
		return nil, false, nil
	}

	pn := ss.nextPN
	ss.nextPN++

	h := &Header{
		DestCID: c.peerCID,
		SrcCID:  c.localCID,
		PacketNumber: pn,
	}
	switch space {
	case SpaceInitial:
		h.Long = true
		h.Type = PacketInitial
	case SpaceHandshake:
		h.Long = true
		h.Type = PacketHandshake
	case SpaceApplication:
		h.Long = false
	}

	pkt, err := Build(h, frames, ss.keys.Write, ss.rtb.lastAckedPN)
	if err != nil {
		return nil, false, err
	}

	inFlight := frameSetIsAckEliciting(frames)
	ss.rtb.OnPacketSent(pn, frames, len(pkt), inFlight, now)
	return pkt, true, nil
}

func (r *ReliabilityBuffer) largestSentOrMinusOne() int64 { return r.largestSent }

func frameSetIsAckEliciting(frames []Frame) bool {
	for _, f := range frames {
		if f.AckEliciting() {
			return true
		}
	}
	return false
}

func (c *Connection) buildAckFrame(ss *spaceState) Frame {
	var pns []uint64
	for pn := range ss.ack.received {
		pns = append(pns, pn)
	}
	// simple insertion sort descending; ack ranges are typically small
	for i := 1; i < len(pns); i++ {
		for j := i; j > 0 && pns[j] > pns[j-1]; j-- {
			pns[j], pns[j-1] = pns[j-1], pns[j]
		}
	}
	if len(pns) == 0 {
		return ACKFrame{LargestAcked: uint64(ss.ack.largestSeen)}
	}
	largest := pns[0]
	first := pns[0]
	cur := pns[0]
	var ranges []AckRange
	blockStart := cur
	for i := 1; i < len(pns); i++ {
		if pns[i] == cur-1 {
			cur = pns[i]
			continue
		}
		gap := cur - pns[i] - 2
		if blockStart == largest {
			first = blockStart - cur
		} else {
			ranges[len(ranges)-1].BlockLen = blockStart - cur
		}
		ranges = append(ranges, AckRange{Gap: gap})
		blockStart = pns[i]
		cur = pns[i]
	}
	if blockStart == largest {
		first = blockStart - cur
	} else {
		ranges[len(ranges)-1].BlockLen = blockStart - cur
	}
	return ACKFrame{LargestAcked: largest, FirstBlock: first, Ranges: ranges}
}

func (c *Connection) nextCryptoFrame(ss *spaceState, budget int) (CryptoFrame, bool) {
	sp, data, ok := c.tls.PullHandshakeBytes()
	if !ok || sp != ss.space {
		return CryptoFrame{}, false
	}
	if len(data) > budget && budget > 0 {
		data = data[:budget]
	}
	off := ss.cryptoTx
	ss.cryptoTx += uint64(len(data))
	return CryptoFrame{Offset: off, Data: data}, true
}

func (c *Connection) nextStreamFrames(budget int) []Frame {
	var frames []Frame
	for _, s := range c.streams {
		if budget <= 0 {
			break
		}
		off, data, fin, ok := s.PendingSendRange(budget)
		if !ok {
			continue
		}
		frames = append(frames, StreamFrame{StreamID: s.ID, Offset: off, Data: data, Fin: fin})
		budget -= len(data) + 16
	}
	return frames
}

// --- Receiving ------------------------------------------------------------

// HandleDatagram processes one incoming UDP datagram, which may coalesce
// multiple QUIC packets (spec.md §6 "UDP wire"). It decodes left to right
// until exhausted or a short-header packet is seen.
func (c *Connection) HandleDatagram(buf []byte, now time.Time) error {
	c.lastActivity = now
	for len(buf) > 0 {
		long, typ, err := decodeHeaderForm(buf)
		if err != nil {
			return nil // malformed leading byte: drop datagram, not fatal
		}

		space := SpaceApplication
		if long {
			space = SpaceForPacketType(typ)
		}

		ss := c.spaces[space]
		if ss.keys == nil || ss.keys.Read == nil {
			return nil // no keys yet for this space; drop rest of datagram
		}

		dcidLen := len(c.localCID)
		res, err := Parse(buf, dcidLen, ss.keys.Read, ss.ack.largestSeen)
		if err == ErrDecryptFailed {
			if c.haveResetToken && IsStatelessReset(buf, c.peerResetToken) {
				c.state = StateDraining
				c.closeDeadline = now.Add(3 * c.currentPTO())
				return nil
			}
			return nil // routine decrypt failure, not fatal (spec.md §4.3, §7)
		}
		if err != nil {
			c.closeWithError(false, 0x0001, "frame-encoding-error", now)
			return err
		}

		if err := c.handlePacket(space, res, now); err != nil {
			c.closeWithError(false, 0x0002, err.Error(), now)
			return err
		}

		if !long {
			break // a short-header packet must be last in a coalesced datagram
		}
		buf = buf[res.Consumed:]
	}
	return nil
}

func (c *Connection) handlePacket(space Space, res *ParseResult, now time.Time) error {
	ss := c.spaces[space]
	if int64(res.Header.PacketNumber) > ss.ack.largestSeen {
		ss.ack.largestSeen = int64(res.Header.PacketNumber)
	}
	ss.ack.received[res.Header.PacketNumber] = struct{}{}

	buf := res.Payload
	for len(buf) > 0 {
		f, n, err := decodeFrame(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
		if f.AckEliciting() {
			ss.ack.ackElicited = true
			if !ss.ack.ackTimerArmed {
				ss.ack.ackTimerArmed = true
				delay := c.cfg.AckDelay
				if space != SpaceApplication {
					delay = 0
				}
				ss.ack.ackDelayAt = now.Add(delay)
			}
		}
		if err := c.handleFrame(space, f, now); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) handleFrame(space Space, f Frame, now time.Time) error {
	switch fr := f.(type) {
	case PaddingFrame, PingFrame:
		return nil
	case ACKFrame:
		ss := c.spaces[space]
		acked, _ := ss.rtb.OnAckFrame(fr, now)
		for _, a := range acked {
			if a.IsCrypto {
				continue
			}
			if s, ok := c.streams[a.StreamID]; ok {
				s.OnAcked(a.Offset, a.Length)
				c.releaseIfDone(s)
			}
		}
		return nil
	case CryptoFrame:
		return c.handleCrypto(space, fr)
	case StreamFrame:
		return c.handleStream(fr)
	case RstStreamFrame:
		s, err := c.getOrCreateRemoteStream(fr.StreamID)
		if err != nil {
			return err
		}
		if err := s.OnRstStream(fr.FinalOffset); err != nil {
			return err
		}
		c.releaseIfDone(s)
		return nil
	case StopSendingFrame:
		s, ok := c.streams[fr.StreamID]
		if !ok {
			return nil
		}
		_ = s.OnStopSending()
		return nil
	case MaxDataFrame:
		if fr.Max > c.connMaxTxOffset {
			c.connMaxTxOffset = fr.Max
		}
		return nil
	case MaxStreamDataFrame:
		if s, ok := c.streams[fr.StreamID]; ok {
			s.ExtendMaxTxOffset(fr.Max)
		}
		return nil
	case MaxStreamIDFrame:
		// Applies to whichever directionality the id range belongs to;
		// this connection only issues bidi ids locally so route there.
		if fr.Max > c.maxRemoteStreamIDBidi {
			c.maxRemoteStreamIDBidi = fr.Max
		}
		return nil
	case NewConnectionIDFrame:
		c.peerResetToken = fr.ResetToken
		c.haveResetToken = true
		return nil
	case ConnectionCloseFrame:
		return c.onPeerClose(false, fr.ErrCode, fr.Reason, now)
	case ApplicationCloseFrame:
		return c.onPeerClose(true, fr.ErrCode, fr.Reason, now)
	default:
		return nil
	}
}

func (c *Connection) handleCrypto(space Space, fr CryptoFrame) error {
	ss := c.spaces[space]
	ss.cryptoRxBuf[fr.Offset] = fr.Data
	ss.cryptoGap.push(fr.Offset, uint64(len(fr.Data)))
	// deliver any newly contiguous prefix to TLS in order
	prefix := ss.cryptoGap.contiguousPrefix()
	// naive reassembly: for the modest handshake sizes here, just hand
	// TLS every contiguous byte range once available
	ordered := assembleCryptoRange(ss.cryptoRxBuf, 0, prefix)
	if len(ordered) > 0 {
		if err := c.tls.PushHandshakeBytes(space, ordered); err != nil {
			return fmt.Errorf("quic: crypto-error: %w", err)
		}
	}
	return nil
}

func assembleCryptoRange(buf map[uint64][]byte, start, end uint64) []byte {
	if end <= start {
		return nil
	}
	out := make([]byte, 0, end-start)
	cur := start
	for cur < end {
		d, ok := buf[cur]
		if !ok {
			break
		}
		out = append(out, d...)
		cur += uint64(len(d))
	}
	return out
}

func (c *Connection) handleStream(fr StreamFrame) error {
	s, err := c.getOrCreateRemoteStream(fr.StreamID)
	if err != nil {
		return err
	}
	before := s.lastRxOffset
	out, _, err := s.Receive(fr.Offset, fr.Data, fr.Fin)
	if err != nil {
		return err
	}
	c.connRxUsed += s.lastRxOffset - before
	if c.connRxUsed > c.connMaxRxOffset {
		return ErrFlowControl
	}
	if len(out) > 0 && c.dispatch != nil {
		if err := c.dispatch.Route(fr.StreamID, out); err != nil {
			return nil // sink errors are not protocol violations
		}
	}
	c.releaseIfDone(s)
	return nil
}

// --- Close / idle ---------------------------------------------------------

func (c *Connection) currentPTO() time.Duration {
	pto := c.spaces[SpaceApplication].rtb.PTO()
	for _, ss := range c.spaces {
		if p := ss.rtb.PTO(); p > pto {
			pto = p
		}
	}
	return pto
}

// Close sends CONNECTION_CLOSE or APPLICATION_CLOSE and transitions to
// CLOSING (spec.md §4.6). Idempotent: calling it again while already
// closing/draining/closed is a no-op (spec.md §8 "Idempotent close",
// §9 "the rewrite must make close idempotent").
func (c *Connection) Close(appLevel bool, code uint16, reason string, now time.Time) {
	if c.state == StateClosing || c.state == StateDraining || c.state == StateClosed {
		return
	}
	c.state = StateClosing
	c.closeErr = &closeInfo{AppLevel: appLevel, Code: code, Reason: reason}
	c.closeDeadline = now.Add(3 * c.currentPTO())
}

func (c *Connection) closeWithError(appLevel bool, code uint16, reason string, now time.Time) {
	c.Close(appLevel, code, reason, now)
}

// onPeerClose handles receiving CONNECTION_CLOSE/APPLICATION_CLOSE. Per
// spec.md §8 "Idempotent close": receiving a close while already CLOSING
// moves to DRAINING without sending further packets; receiving it again
// while already DRAINING is a no-op.
func (c *Connection) onPeerClose(appLevel bool, code uint16, reason string, now time.Time) error {
	switch c.state {
	case StateDraining, StateClosed:
		return nil
	default:
		c.state = StateDraining
		c.closeDeadline = now.Add(3 * c.currentPTO())
		return nil
	}
}

// CloseFrameToResend returns the close frame to re-emit in CLOSING state
// in response to any arriving packet (spec.md §4.6 "Close"), or ok=false
// if not in CLOSING.
func (c *Connection) CloseFrameToResend() (Frame, bool) {
	if c.state != StateClosing || c.closeErr == nil {
		return nil, false
	}
	if c.closeErr.AppLevel {
		return ApplicationCloseFrame{ErrCode: c.closeErr.Code, Reason: c.closeErr.Reason}, true
	}
	return ConnectionCloseFrame{ErrCode: c.closeErr.Code, Reason: c.closeErr.Reason}, true
}

// CheckIdle transitions to CLOSING if the negotiated idle timeout has
// elapsed since the last activity (spec.md §4.6 "Idle timeout").
func (c *Connection) CheckIdle(now time.Time) {
	if c.state == StateClosed || c.state == StateDraining || c.state == StateClosing {
		return
	}
	if c.cfg.IdleTimeout > 0 && now.Sub(c.lastActivity) > c.cfg.IdleTimeout {
		c.Close(false, 0x0000, "idle timeout", now)
	}
}

// CheckCloseExpiry finalizes CLOSING/DRAINING into CLOSED once the 3*PTO
// window has elapsed (spec.md §4.6).
func (c *Connection) CheckCloseExpiry(now time.Time) {
	if (c.state == StateClosing || c.state == StateDraining) && now.After(c.closeDeadline) {
		c.state = StateClosed
	}
}

// RunLossDetection drives §4.4 loss detection for every space and
// requeues lost frames for rebuilding under fresh packet numbers
// (spec.md §4.4 "Lost packets are ... queued for rebuild").
func (c *Connection) RunLossDetection(now time.Time) {
	for _, ss := range c.spaces {
		for _, lost := range ss.rtb.DetectLosses(now) {
			c.requeue(lost.Frames)
		}
		// ProbeTimeout covers the case DetectLosses can't: zero ACKs
		// ever received in this space (spec.md §8 scenario 4).
		if lost, ok := ss.rtb.ProbeTimeout(now); ok {
			c.requeue(lost.Frames)
		}
	}
}

func (c *Connection) requeue(frames []Frame) {
	for _, f := range frames {
		switch fr := f.(type) {
		case StreamFrame:
			if s, ok := c.streams[fr.StreamID]; ok {
				s.sentOffset = fr.Offset // roll back so PendingSendRange resends this range
			}
		case CryptoFrame:
			ss := c.spaces[SpaceApplication]
			if fr.Offset < ss.cryptoTx {
				ss.cryptoTx = fr.Offset
			}
		}
	}
}

// DiscardInitialKeys and DiscardHandshakeKeys drop keying material once
// the handshake has progressed past needing them (spec.md §4.6: "may
// discard Initial and Handshake keying material").
func (c *Connection) DiscardInitialKeys()   { c.spaces[SpaceInitial].discarded = true; c.spaces[SpaceInitial].keys = nil }
func (c *Connection) DiscardHandshakeKeys() { c.spaces[SpaceHandshake].discarded = true; c.spaces[SpaceHandshake].keys = nil }

// RejectZeroRTT declares every 0-RTT packet lost in one sweep, re-entering
// their frames under 1-RTT keys (spec.md §4.6 "0-RTT").
func (c *Connection) RejectZeroRTT() {
	ss := c.spaces[SpaceApplication]
	var frames []Frame
	for _, pn := range c.zeroRTTPNs {
		if sp, ok := ss.rtb.byPN[pn]; ok {
			frames = append(frames, sp.frames...)
			if sp.inFlight {
				ss.rtb.bytesInFlight -= sp.size
			}
			delete(ss.rtb.byPN, pn)
		}
	}
	c.zeroRTTPNs = nil
	c.requeue(frames)
}
