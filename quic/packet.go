package quic

import "fmt"

// PacketType distinguishes long-header packet types (spec.md §3).
type PacketType byte

const (
	PacketInitial           PacketType = 0x7f
	PacketZeroRTT           PacketType = 0x7e
	PacketHandshake         PacketType = 0x7d
	PacketRetry             PacketType = 0x7c
	PacketVersionNegotiation PacketType = 0x7b
	PacketShortHeader       PacketType = 0x01 // synthetic marker, not on wire
)

const longHeaderForm = 0x80

// longHeaderTypeBits maps a PacketType to its 2-bit wire code within the
// long-header first byte (bits 4-5, see encodeLongHeaderPrefix).
func longHeaderTypeBits(t PacketType) byte {
	switch t {
	case PacketInitial:
		return 0x00
	case PacketZeroRTT:
		return 0x01
	case PacketHandshake:
		return 0x02
	case PacketRetry:
		return 0x03
	default:
		return 0x00
	}
}

// packetTypeFromBits is the inverse of longHeaderTypeBits.
func packetTypeFromBits(bits byte) PacketType {
	switch bits {
	case 0x00:
		return PacketInitial
	case 0x01:
		return PacketZeroRTT
	case 0x02:
		return PacketHandshake
	default:
		return PacketRetry
	}
}

// Space identifies a packet-number space (spec.md §3, GLOSSARY).
type Space int

const (
	SpaceInitial Space = iota
	SpaceHandshake
	SpaceApplication
	numSpaces
)

func (s Space) String() string {
	switch s {
	case SpaceInitial:
		return "initial"
	case SpaceHandshake:
		return "handshake"
	case SpaceApplication:
		return "application"
	default:
		return "unknown"
	}
}

// SpaceForPacketType maps a long-header packet type (or short header) to
// its packet-number space. 0-RTT and 1-RTT share the Application space
// (spec.md §3).
func SpaceForPacketType(t PacketType) Space {
	switch t {
	case PacketInitial:
		return SpaceInitial
	case PacketHandshake:
		return SpaceHandshake
	default:
		return SpaceApplication
	}
}

// Header is the decoded, unprotected view of a packet header. Long and
// short headers share this struct; Long is false for short headers.
type Header struct {
	Long     bool
	Type     PacketType
	Version  uint32
	DestCID  []byte
	SrcCID   []byte
	KeyPhase bool

	// PacketNumber and PNLength are only meaningful after header
	// protection has been removed (quic/protect.go).
	PacketNumber uint64
	PNLength     int

	// PayloadLen is the long-header varint payload length (packet-number
	// field + AEAD tag included; Build writes it as a 4-byte varint),
	// unused on short headers.
	PayloadLen uint64
}

// encodeLongHeaderPrefix writes everything up to (not including) the
// packet-number field. The type occupies bits 4-5, which header
// protection never touches; bits 0-1 (PN length) are left zero here and
// patched in by protect.go once the PN length is known, before the mask
// is applied over the low nibble.
func encodeLongHeaderPrefix(h *Header) []byte {
	first := byte(longHeaderForm) | 0x40 | (longHeaderTypeBits(h.Type) << 4)
	buf := []byte{first}
	buf = append(buf, byte(h.Version>>24), byte(h.Version>>16), byte(h.Version>>8), byte(h.Version))
	buf = append(buf, byte(len(h.DestCID)))
	buf = append(buf, h.DestCID...)
	buf = append(buf, byte(len(h.SrcCID)))
	buf = append(buf, h.SrcCID...)
	return buf
}

// encodeShortHeaderPrefix leaves the PN-length bits (0-1) zero; protect.go
// patches them in once PN length is known, same as the long header.
func encodeShortHeaderPrefix(h *Header) []byte {
	first := byte(0x40)
	if h.KeyPhase {
		first |= 0x04
	}
	buf := []byte{first}
	return append(buf, h.DestCID...)
}

// decodeHeaderForm peeks the first byte to tell long vs short header and,
// for long headers, the packet type. It does not consume the buffer.
func decodeHeaderForm(buf []byte) (long bool, typ PacketType, err error) {
	if len(buf) == 0 {
		return false, 0, ErrBufferTooShort
	}
	if buf[0]&longHeaderForm == 0 {
		return false, PacketShortHeader, nil
	}
	return true, packetTypeFromBits((buf[0] >> 4) & 0x03), nil
}

// decodeLongHeader decodes the unprotected portion of a long header
// (everything up to, but not including, the PN field and payload).
// Returns the header and the number of bytes consumed.
func decodeLongHeader(buf []byte) (*Header, int, error) {
	if len(buf) < 6 {
		return nil, 0, ErrBufferTooShort
	}
	typeBits := (buf[0] >> 4) & 0x03
	off := 1
	version := uint32(buf[off])<<24 | uint32(buf[off+1])<<16 | uint32(buf[off+2])<<8 | uint32(buf[off+3])
	off += 4
	if len(buf) < off+1 {
		return nil, 0, ErrBufferTooShort
	}
	dcidLen := int(buf[off])
	off++
	if len(buf) < off+dcidLen+1 {
		return nil, 0, ErrBufferTooShort
	}
	dcid := append([]byte(nil), buf[off:off+dcidLen]...)
	off += dcidLen
	scidLen := int(buf[off])
	off++
	if len(buf) < off+scidLen {
		return nil, 0, ErrBufferTooShort
	}
	scid := append([]byte(nil), buf[off:off+scidLen]...)
	off += scidLen

	return &Header{
		Long:    true,
		Type:    packetTypeFromBits(typeBits),
		Version: version,
		DestCID: dcid,
		SrcCID:  scid,
	}, off, nil
}

// decodeShortHeader decodes a short header given the expected destination
// CID length (negotiated out of band / from the local CID length).
func decodeShortHeader(buf []byte, dcidLen int) (*Header, int, error) {
	if len(buf) < 1+dcidLen {
		return nil, 0, ErrBufferTooShort
	}
	keyPhase := buf[0]&0x04 != 0
	dcid := append([]byte(nil), buf[1:1+dcidLen]...)
	return &Header{
		Long:     false,
		Type:     PacketShortHeader,
		DestCID:  dcid,
		KeyPhase: keyPhase,
	}, 1 + dcidLen, nil
}

func validateCIDLen(cid []byte) error {
	if len(cid) != 0 && (len(cid) < 4 || len(cid) > 18) {
		return fmt.Errorf("quic: invalid connection id length %d", len(cid))
	}
	return nil
}
