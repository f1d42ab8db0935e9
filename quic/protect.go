package quic

import (
	"crypto/subtle"
	"fmt"
)

// Build serializes header and frames into one protected packet: header,
// AEAD-sealed payload, header protection applied (spec.md §4.3).
func Build(h *Header, frames []Frame, keys *Keys, largestAckedInSpace int64) ([]byte, error) {
	pnLen := encodePacketNumberLen(h.PacketNumber, uint64(max64(largestAckedInSpace, 0)))
	h.PNLength = pnLen

	var head []byte
	if h.Long {
		head = encodeLongHeaderPrefix(h)
	} else {
		head = encodeShortHeaderPrefix(h)
	}
	head[0] |= byte(pnLen - 1)

	var payload []byte
	for _, f := range frames {
		payload = f.encode(payload)
	}

	if h.Long {
		// Long-header layout places the 4-byte-varint payload length
		// (PN length + payload + AEAD tag) immediately before the PN
		// field (spec.md §4.1).
		head = append(head, forceFourByteVarint(uint64(pnLen+len(payload)+keys.TagSize()))...)
	}
	pnOffset := len(head)
	head = appendPacketNumber(head, h.PacketNumber, pnLen)

	ad := append([]byte(nil), head...)
	sealed, err := keys.Seal(nil, ad, payload, h.PacketNumber)
	if err != nil {
		return nil, err
	}

	packet := append(head, sealed...)
	if err := applyHeaderProtection(packet, pnOffset, pnLen, h.Long, keys); err != nil {
		return nil, err
	}
	return packet, nil
}

// forceFourByteVarint encodes v as a 4-byte varint regardless of its
// natural minimal length (so v may use up to 30 bits). Build writes the
// long-header payload-length field at this fixed width.
func forceFourByteVarint(v uint64) []byte {
	return []byte{byte(v>>24) | 0x80, byte(v >> 16), byte(v >> 8), byte(v)}
}

// applyHeaderProtection XORs the header-protection mask into the low
// header bits and the packet-number field in place (spec.md §4.2).
func applyHeaderProtection(packet []byte, pnOffset, pnLen int, long bool, keys *Keys) error {
	sampleOffset := pnOffset + 4
	if sampleOffset+16 > len(packet) {
		return fmt.Errorf("quic: packet too short to sample for header protection")
	}
	mask, err := keys.headerProtectionMask(packet[sampleOffset : sampleOffset+16])
	if err != nil {
		return err
	}
	if long {
		packet[0] ^= mask[0] & 0x0f
	} else {
		packet[0] ^= mask[0] & 0x1f
	}
	for i := 0; i < pnLen; i++ {
		packet[pnOffset+i] ^= mask[1+i]
	}
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// ParseResult is the outcome of successfully unprotecting one packet.
type ParseResult struct {
	Header  *Header
	Payload []byte
	Consumed int
}

// Parse removes header protection, reconstructs the truncated packet
// number against largestSeen, and opens the AEAD payload. A decryption
// failure is reported via ErrDecryptFailed and is not fatal to the
// connection (spec.md §4.3, §7); the caller discards the datagram.
var ErrDecryptFailed = fmt.Errorf("quic: decrypt error")

// Parse handles one coalesced packet starting at the front of buf. For
// long headers, Parse bounds the packet by its declared payload length
// and reports the packet's size in Consumed, so the caller can step to the
// next coalesced packet; short headers consume the remainder of buf (the
// payload ending in the AEAD tag).
func Parse(buf []byte, dcidLen int, keys *Keys, largestSeen int64) (*ParseResult, error) {
	long, _, err := decodeHeaderForm(buf)
	if err != nil {
		return nil, err
	}

	var h *Header
	var headLen int
	if long {
		h, headLen, err = decodeLongHeader(buf)
		if err != nil {
			return nil, err
		}
		length, n, err := consumeVarInt(buf[headLen:])
		if err != nil {
			return nil, err
		}
		h.PayloadLen = length
		headLen += n
	} else {
		h, headLen, err = decodeShortHeader(buf, dcidLen)
		if err != nil {
			return nil, err
		}
	}

	// Sample offset assumes the max 4-byte PN field; true pnLen is only
	// known after the mask reveals the unprotected first byte below.
	sampleOffset := headLen + 4
	var packetEnd int
	if long {
		packetEnd = headLen + int(h.PayloadLen)
	} else {
		packetEnd = len(buf)
	}
	if packetEnd > len(buf) || sampleOffset+16 > len(buf) {
		return nil, ErrBufferTooShort
	}

	mask, err := keys.headerProtectionMask(buf[sampleOffset : sampleOffset+16])
	if err != nil {
		return nil, err
	}

	protectedFirst := buf[0]
	var firstByte byte
	if long {
		firstByte = protectedFirst ^ (mask[0] & 0x0f)
	} else {
		firstByte = protectedFirst ^ (mask[0] & 0x1f)
	}
	pnLen := int(firstByte&0x03) + 1
	h.KeyPhase = !long && firstByte&0x04 != 0

	if headLen+pnLen > len(buf) {
		return nil, ErrBufferTooShort
	}
	pnBytes := append([]byte(nil), buf[headLen:headLen+pnLen]...)
	for i := 0; i < pnLen; i++ {
		pnBytes[i] ^= mask[1+i]
	}
	var truncated uint64
	for i := 0; i < pnLen; i++ {
		truncated = (truncated << 8) | uint64(pnBytes[i])
	}
	pn := decodePacketNumber(largestSeen, truncated, pnLen)
	h.PacketNumber = pn
	h.PNLength = pnLen

	// Rebuild the unprotected header bytes (used as AEAD associated data)
	// and locate the ciphertext.
	ad := append([]byte(nil), buf[:headLen]...)
	ad[0] = firstByte
	ad = append(ad, pnBytes...)

	ciphertext := buf[headLen+pnLen : packetEnd]
	plaintext, err := keys.Open(nil, ad, ciphertext, pn)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	return &ParseResult{Header: h, Payload: plaintext, Consumed: packetEnd}, nil
}

// IsStatelessReset reports whether datagram's trailing 16 bytes match the
// peer's stateless-reset token (spec.md §4.3, §8 scenario 6).
func IsStatelessReset(datagram []byte, token [16]byte) bool {
	if len(datagram) < 16 {
		return false
	}
	return subtle.ConstantTimeCompare(datagram[len(datagram)-16:], token[:]) == 1
}
