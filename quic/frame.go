package quic

import "fmt"

// FrameType identifies a QUIC frame on the wire (spec.md §3).
type FrameType byte

const (
	FramePadding          FrameType = 0x00
	FramePing             FrameType = 0x01
	FrameACK              FrameType = 0x02
	FrameRstStream        FrameType = 0x04
	FrameStopSending      FrameType = 0x05
	FrameCrypto           FrameType = 0x06
	FrameNewConnectionID  FrameType = 0x0b
	FrameConnectionClose  FrameType = 0x0c
	FrameApplicationClose FrameType = 0x0d
	FrameMaxData          FrameType = 0x10
	FrameMaxStreamData    FrameType = 0x11
	FrameMaxStreamID      FrameType = 0x12
	FrameBlocked          FrameType = 0x14
	FrameStreamBlocked    FrameType = 0x15
	FrameStreamIDBlocked  FrameType = 0x16
	FramePathChallenge    FrameType = 0x18
	FramePathResponse     FrameType = 0x19
	// Stream frames occupy the low range 0x20-0x27: bit0=FIN, bit1=LEN
	// present, bit2=OFFSET present (spec.md §3 invariant).
	FrameStreamBase FrameType = 0x20
	FrameStreamMask FrameType = 0x27
)

// Frame is the tagged-union interface every decoded frame satisfies. The
// decoder always returns a concrete value, never a heap-allocated
// interface hierarchy (spec.md §9 "Variant frames").
type Frame interface {
	Type() FrameType
	AckEliciting() bool
	encode(buf []byte) []byte
}

type PaddingFrame struct{ N int }

func (f PaddingFrame) Type() FrameType      { return FramePadding }
func (f PaddingFrame) AckEliciting() bool   { return false }
func (f PaddingFrame) encode(b []byte) []byte {
	for i := 0; i < f.N; i++ {
		b = append(b, 0)
	}
	return b
}

type PingFrame struct{}

func (f PingFrame) Type() FrameType    { return FramePing }
func (f PingFrame) AckEliciting() bool { return true }
func (f PingFrame) encode(b []byte) []byte {
	return append(b, byte(FramePing))
}

// AckRange is one {gap, blocklen} entry below the first block.
type AckRange struct {
	Gap      uint64
	BlockLen uint64
}

type ACKFrame struct {
	LargestAcked uint64
	Delay        uint64
	FirstBlock   uint64
	Ranges       []AckRange
}

func (f ACKFrame) Type() FrameType    { return FrameACK }
func (f ACKFrame) AckEliciting() bool { return false }
func (f ACKFrame) encode(b []byte) []byte {
	b = append(b, byte(FrameACK))
	b = appendVarInt(b, f.LargestAcked)
	b = appendVarInt(b, f.Delay)
	b = appendVarInt(b, uint64(len(f.Ranges)))
	b = appendVarInt(b, f.FirstBlock)
	for _, r := range f.Ranges {
		b = appendVarInt(b, r.Gap)
		b = appendVarInt(b, r.BlockLen)
	}
	return b
}

// Covers reports whether packet number pn is acknowledged by this frame.
func (f ACKFrame) Covers(pn uint64) bool {
	hi := f.LargestAcked
	lo := hi - f.FirstBlock
	if pn <= hi && pn >= lo {
		return true
	}
	for _, r := range f.Ranges {
		hi = lo - r.Gap - 2
		lo = hi - r.BlockLen
		if pn <= hi && pn >= lo {
			return true
		}
	}
	return false
}

type RstStreamFrame struct {
	StreamID    uint64
	AppErrCode  uint16
	FinalOffset uint64
}

func (f RstStreamFrame) Type() FrameType    { return FrameRstStream }
func (f RstStreamFrame) AckEliciting() bool { return true }
func (f RstStreamFrame) encode(b []byte) []byte {
	b = append(b, byte(FrameRstStream))
	b = appendVarInt(b, f.StreamID)
	b = append(b, byte(f.AppErrCode>>8), byte(f.AppErrCode))
	b = appendVarInt(b, f.FinalOffset)
	return b
}

type StopSendingFrame struct {
	StreamID   uint64
	AppErrCode uint16
}

func (f StopSendingFrame) Type() FrameType    { return FrameStopSending }
func (f StopSendingFrame) AckEliciting() bool { return true }
func (f StopSendingFrame) encode(b []byte) []byte {
	b = append(b, byte(FrameStopSending))
	b = appendVarInt(b, f.StreamID)
	b = append(b, byte(f.AppErrCode>>8), byte(f.AppErrCode))
	return b
}

type CryptoFrame struct {
	Offset uint64
	Data   []byte
}

func (f CryptoFrame) Type() FrameType    { return FrameCrypto }
func (f CryptoFrame) AckEliciting() bool { return true }
func (f CryptoFrame) encode(b []byte) []byte {
	b = append(b, byte(FrameCrypto))
	b = appendVarInt(b, f.Offset)
	b = appendVarInt(b, uint64(len(f.Data)))
	return append(b, f.Data...)
}

type NewConnectionIDFrame struct {
	Seq        uint64
	CID        []byte
	ResetToken [16]byte
}

func (f NewConnectionIDFrame) Type() FrameType    { return FrameNewConnectionID }
func (f NewConnectionIDFrame) AckEliciting() bool { return true }
func (f NewConnectionIDFrame) encode(b []byte) []byte {
	b = append(b, byte(FrameNewConnectionID))
	b = appendVarInt(b, f.Seq)
	b = append(b, byte(len(f.CID)))
	b = append(b, f.CID...)
	return append(b, f.ResetToken[:]...)
}

type MaxDataFrame struct{ Max uint64 }

func (f MaxDataFrame) Type() FrameType    { return FrameMaxData }
func (f MaxDataFrame) AckEliciting() bool { return true }
func (f MaxDataFrame) encode(b []byte) []byte {
	return appendVarInt(append(b, byte(FrameMaxData)), f.Max)
}

type MaxStreamDataFrame struct {
	StreamID uint64
	Max      uint64
}

func (f MaxStreamDataFrame) Type() FrameType    { return FrameMaxStreamData }
func (f MaxStreamDataFrame) AckEliciting() bool { return true }
func (f MaxStreamDataFrame) encode(b []byte) []byte {
	b = appendVarInt(append(b, byte(FrameMaxStreamData)), f.StreamID)
	return appendVarInt(b, f.Max)
}

type MaxStreamIDFrame struct{ Max uint64 }

func (f MaxStreamIDFrame) Type() FrameType    { return FrameMaxStreamID }
func (f MaxStreamIDFrame) AckEliciting() bool { return true }
func (f MaxStreamIDFrame) encode(b []byte) []byte {
	return appendVarInt(append(b, byte(FrameMaxStreamID)), f.Max)
}

type BlockedFrame struct{ Offset uint64 }

func (f BlockedFrame) Type() FrameType    { return FrameBlocked }
func (f BlockedFrame) AckEliciting() bool { return true }
func (f BlockedFrame) encode(b []byte) []byte {
	return appendVarInt(append(b, byte(FrameBlocked)), f.Offset)
}

type StreamBlockedFrame struct {
	StreamID uint64
	Offset   uint64
}

func (f StreamBlockedFrame) Type() FrameType    { return FrameStreamBlocked }
func (f StreamBlockedFrame) AckEliciting() bool { return true }
func (f StreamBlockedFrame) encode(b []byte) []byte {
	b = appendVarInt(append(b, byte(FrameStreamBlocked)), f.StreamID)
	return appendVarInt(b, f.Offset)
}

type StreamIDBlockedFrame struct{ StreamID uint64 }

func (f StreamIDBlockedFrame) Type() FrameType    { return FrameStreamIDBlocked }
func (f StreamIDBlockedFrame) AckEliciting() bool { return true }
func (f StreamIDBlockedFrame) encode(b []byte) []byte {
	return appendVarInt(append(b, byte(FrameStreamIDBlocked)), f.StreamID)
}

type PathChallengeFrame struct{ Data [8]byte }

func (f PathChallengeFrame) Type() FrameType    { return FramePathChallenge }
func (f PathChallengeFrame) AckEliciting() bool { return true }
func (f PathChallengeFrame) encode(b []byte) []byte {
	return append(append(b, byte(FramePathChallenge)), f.Data[:]...)
}

type PathResponseFrame struct{ Data [8]byte }

func (f PathResponseFrame) Type() FrameType    { return FramePathResponse }
func (f PathResponseFrame) AckEliciting() bool { return true }
func (f PathResponseFrame) encode(b []byte) []byte {
	return append(append(b, byte(FramePathResponse)), f.Data[:]...)
}

type ConnectionCloseFrame struct {
	ErrCode uint16
	Reason  string
}

func (f ConnectionCloseFrame) Type() FrameType    { return FrameConnectionClose }
func (f ConnectionCloseFrame) AckEliciting() bool { return false }
func (f ConnectionCloseFrame) encode(b []byte) []byte {
	b = append(b, byte(FrameConnectionClose))
	b = append(b, byte(f.ErrCode>>8), byte(f.ErrCode))
	b = appendVarInt(b, uint64(len(f.Reason)))
	return append(b, f.Reason...)
}

type ApplicationCloseFrame struct {
	ErrCode uint16
	Reason  string
}

func (f ApplicationCloseFrame) Type() FrameType    { return FrameApplicationClose }
func (f ApplicationCloseFrame) AckEliciting() bool { return false }
func (f ApplicationCloseFrame) encode(b []byte) []byte {
	b = append(b, byte(FrameApplicationClose))
	b = append(b, byte(f.ErrCode>>8), byte(f.ErrCode))
	b = appendVarInt(b, uint64(len(f.Reason)))
	return append(b, f.Reason...)
}

type StreamFrame struct {
	StreamID uint64
	Offset   uint64
	Data     []byte
	Fin      bool
}

func (f StreamFrame) Type() FrameType    { return FrameStreamBase }
func (f StreamFrame) AckEliciting() bool { return true }
func (f StreamFrame) encode(b []byte) []byte {
	typ := byte(FrameStreamBase)
	if f.Fin {
		typ |= 0x01
	}
	typ |= 0x02 // always carry an explicit length
	if f.Offset != 0 {
		typ |= 0x04
	}
	b = append(b, typ)
	b = appendVarInt(b, f.StreamID)
	if f.Offset != 0 {
		b = appendVarInt(b, f.Offset)
	}
	b = appendVarInt(b, uint64(len(f.Data)))
	return append(b, f.Data...)
}

// decodeFrame decodes one frame from the front of buf, returning the
// frame, the number of bytes consumed, and any error. Decoders are
// strict: underrunning the buffer or trailing malformed data is reported
// rather than silently tolerated (spec.md §4.1).
func decodeFrame(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrBufferTooShort
	}
	typ := buf[0]
	switch {
	case typ == byte(FramePadding):
		n := 1
		for n < len(buf) && buf[n] == 0 {
			n++
		}
		return PaddingFrame{N: n}, n, nil
	case typ == byte(FramePing):
		return PingFrame{}, 1, nil
	case typ == byte(FrameACK):
		return decodeACKFrame(buf)
	case typ == byte(FrameRstStream):
		return decodeRstStreamFrame(buf)
	case typ == byte(FrameStopSending):
		return decodeStopSendingFrame(buf)
	case typ == byte(FrameCrypto):
		return decodeCryptoFrame(buf)
	case typ == byte(FrameNewConnectionID):
		return decodeNewConnectionIDFrame(buf)
	case typ == byte(FrameConnectionClose):
		return decodeCloseFrame(buf, false)
	case typ == byte(FrameApplicationClose):
		return decodeCloseFrame(buf, true)
	case typ == byte(FrameMaxData):
		return decodeVarIntFrame(buf, func(v uint64) Frame { return MaxDataFrame{Max: v} })
	case typ == byte(FrameMaxStreamData):
		return decodeTwoVarIntFrame(buf, func(id, v uint64) Frame { return MaxStreamDataFrame{StreamID: id, Max: v} })
	case typ == byte(FrameMaxStreamID):
		return decodeVarIntFrame(buf, func(v uint64) Frame { return MaxStreamIDFrame{Max: v} })
	case typ == byte(FrameBlocked):
		return decodeVarIntFrame(buf, func(v uint64) Frame { return BlockedFrame{Offset: v} })
	case typ == byte(FrameStreamBlocked):
		return decodeTwoVarIntFrame(buf, func(id, v uint64) Frame { return StreamBlockedFrame{StreamID: id, Offset: v} })
	case typ == byte(FrameStreamIDBlocked):
		return decodeVarIntFrame(buf, func(v uint64) Frame { return StreamIDBlockedFrame{StreamID: v} })
	case typ == byte(FramePathChallenge):
		return decodeEightByteFrame(buf, func(d [8]byte) Frame { return PathChallengeFrame{Data: d} })
	case typ == byte(FramePathResponse):
		return decodeEightByteFrame(buf, func(d [8]byte) Frame { return PathResponseFrame{Data: d} })
	case typ >= byte(FrameStreamBase) && typ <= byte(FrameStreamMask):
		return decodeStreamFrame(buf, typ)
	default:
		return nil, 0, fmt.Errorf("quic: frame-encoding-error: unknown frame type 0x%02x", typ)
	}
}

func decodeACKFrame(buf []byte) (Frame, int, error) {
	off := 1
	largest, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	delay, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	numRanges, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	firstBlock, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	ranges := make([]AckRange, 0, numRanges)
	for i := uint64(0); i < numRanges; i++ {
		gap, n, err := consumeVarInt(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		blockLen, n, err := consumeVarInt(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		ranges = append(ranges, AckRange{Gap: gap, BlockLen: blockLen})
	}
	return ACKFrame{LargestAcked: largest, Delay: delay, FirstBlock: firstBlock, Ranges: ranges}, off, nil
}

func decodeRstStreamFrame(buf []byte) (Frame, int, error) {
	off := 1
	id, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	if len(buf) < off+2 {
		return nil, 0, ErrBufferTooShort
	}
	code := uint16(buf[off])<<8 | uint16(buf[off+1])
	off += 2
	final, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	return RstStreamFrame{StreamID: id, AppErrCode: code, FinalOffset: final}, off, nil
}

func decodeStopSendingFrame(buf []byte) (Frame, int, error) {
	off := 1
	id, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	if len(buf) < off+2 {
		return nil, 0, ErrBufferTooShort
	}
	code := uint16(buf[off])<<8 | uint16(buf[off+1])
	off += 2
	return StopSendingFrame{StreamID: id, AppErrCode: code}, off, nil
}

func decodeCryptoFrame(buf []byte) (Frame, int, error) {
	off := 1
	offset, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	length, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	if uint64(len(buf)-off) < length {
		return nil, 0, fmt.Errorf("quic: frame-encoding-error: crypto frame underruns buffer")
	}
	data := make([]byte, length)
	copy(data, buf[off:off+int(length)])
	off += int(length)
	return CryptoFrame{Offset: offset, Data: data}, off, nil
}

func decodeNewConnectionIDFrame(buf []byte) (Frame, int, error) {
	off := 1
	seq, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	if len(buf) < off+1 {
		return nil, 0, ErrBufferTooShort
	}
	cidLen := int(buf[off])
	off++
	if len(buf) < off+cidLen+16 {
		return nil, 0, ErrBufferTooShort
	}
	cid := make([]byte, cidLen)
	copy(cid, buf[off:off+cidLen])
	off += cidLen
	var token [16]byte
	copy(token[:], buf[off:off+16])
	off += 16
	return NewConnectionIDFrame{Seq: seq, CID: cid, ResetToken: token}, off, nil
}

func decodeCloseFrame(buf []byte, app bool) (Frame, int, error) {
	off := 1
	if len(buf) < off+2 {
		return nil, 0, ErrBufferTooShort
	}
	code := uint16(buf[off])<<8 | uint16(buf[off+1])
	off += 2
	rlen, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	if uint64(len(buf)-off) < rlen {
		return nil, 0, fmt.Errorf("quic: frame-encoding-error: close reason underruns buffer")
	}
	reason := string(buf[off : off+int(rlen)])
	off += int(rlen)
	if app {
		return ApplicationCloseFrame{ErrCode: code, Reason: reason}, off, nil
	}
	return ConnectionCloseFrame{ErrCode: code, Reason: reason}, off, nil
}

func decodeVarIntFrame(buf []byte, make_ func(uint64) Frame) (Frame, int, error) {
	v, n, err := consumeVarInt(buf[1:])
	if err != nil {
		return nil, 0, err
	}
	return make_(v), 1 + n, nil
}

func decodeTwoVarIntFrame(buf []byte, make_ func(uint64, uint64) Frame) (Frame, int, error) {
	off := 1
	a, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	b, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	return make_(a, b), off, nil
}

func decodeEightByteFrame(buf []byte, make_ func([8]byte) Frame) (Frame, int, error) {
	if len(buf) < 9 {
		return nil, 0, ErrBufferTooShort
	}
	var d [8]byte
	copy(d[:], buf[1:9])
	return make_(d), 9, nil
}

func decodeStreamFrame(buf []byte, typ byte) (Frame, int, error) {
	fin := typ&0x01 != 0
	hasLen := typ&0x02 != 0
	hasOffset := typ&0x04 != 0
	off := 1
	id, n, err := consumeVarInt(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	var offset uint64
	if hasOffset {
		offset, n, err = consumeVarInt(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
	}
	var length uint64
	if hasLen {
		length, n, err = consumeVarInt(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
	} else {
		length = uint64(len(buf) - off)
	}
	if uint64(len(buf)-off) < length {
		return nil, 0, fmt.Errorf("quic: frame-encoding-error: stream frame underruns buffer")
	}
	data := make([]byte, length)
	copy(data, buf[off:off+int(length)])
	off += int(length)
	return StreamFrame{StreamID: id, Offset: offset, Data: data, Fin: fin}, off, nil
}
