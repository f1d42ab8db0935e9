package quic

import "fmt"

// Transport-parameter tags (spec.md §4.1). Only the subset this endpoint
// negotiates is implemented; unknown tags are ignored on decode.
const (
	tpInitialMaxStreamData  uint64 = 0x0005
	tpInitialMaxData        uint64 = 0x0004
	tpIdleTimeout           uint64 = 0x0001
	tpMaxStreamIDBidi       uint64 = 0x0002
	tpMaxStreamIDUni        uint64 = 0x0008
	tpStatelessResetToken   uint64 = 0x0006
	tpPreferredAddress      uint64 = 0x0003
)

// TransportParameters is the TLS-extension payload exchanged during the
// handshake (spec.md §4.1, §6 export/import_transport_params).
type TransportParameters struct {
	InitialMaxStreamData uint64
	InitialMaxData       uint64
	IdleTimeoutSeconds   uint64
	MaxStreamIDBidi      uint64
	MaxStreamIDUni       uint64

	// StatelessResetToken and PreferredAddress are only valid on the
	// server->client direction (spec.md §4.1).
	HasStatelessResetToken bool
	StatelessResetToken    [16]byte
	HasPreferredAddress    bool
	PreferredAddress       []byte

	isServer bool
}

// EncodeTransportParameters serializes p as a tag-length-value sequence.
func EncodeTransportParameters(p *TransportParameters) []byte {
	var buf []byte
	buf = appendTP(buf, tpInitialMaxStreamData, varintBytes(p.InitialMaxStreamData))
	buf = appendTP(buf, tpInitialMaxData, varintBytes(p.InitialMaxData))
	buf = appendTP(buf, tpIdleTimeout, varintBytes(p.IdleTimeoutSeconds))
	buf = appendTP(buf, tpMaxStreamIDBidi, varintBytes(p.MaxStreamIDBidi))
	buf = appendTP(buf, tpMaxStreamIDUni, varintBytes(p.MaxStreamIDUni))
	if p.isServer && p.HasStatelessResetToken {
		buf = appendTP(buf, tpStatelessResetToken, p.StatelessResetToken[:])
	}
	if p.isServer && p.HasPreferredAddress {
		buf = appendTP(buf, tpPreferredAddress, p.PreferredAddress)
	}
	return buf
}

func appendTP(buf []byte, tag uint64, value []byte) []byte {
	buf = appendVarInt(buf, tag)
	buf = appendVarInt(buf, uint64(len(value)))
	return append(buf, value...)
}

func varintBytes(v uint64) []byte {
	return appendVarInt(nil, v)
}

// DecodeTransportParameters parses a TLV blob produced by
// EncodeTransportParameters. Required parameters (initial_max_stream_data,
// initial_max_data, idle_timeout) must be present; unknown tags are
// ignored (spec.md §4.1). fromServer controls whether server-only fields
// are accepted.
func DecodeTransportParameters(buf []byte, fromServer bool) (*TransportParameters, error) {
	p := &TransportParameters{isServer: fromServer}
	var sawMaxStreamData, sawMaxData, sawIdle bool

	for len(buf) > 0 {
		tag, n, err := consumeVarInt(buf)
		if err != nil {
			return nil, fmt.Errorf("quic: malformed-transport-param: tag: %w", err)
		}
		buf = buf[n:]
		length, n, err := consumeVarInt(buf)
		if err != nil {
			return nil, fmt.Errorf("quic: malformed-transport-param: length: %w", err)
		}
		buf = buf[n:]
		if uint64(len(buf)) < length {
			return nil, fmt.Errorf("quic: malformed-transport-param: value underruns buffer")
		}
		value := buf[:length]
		buf = buf[length:]

		switch tag {
		case tpInitialMaxStreamData:
			v, _, err := consumeVarInt(value)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamData = v
			sawMaxStreamData = true
		case tpInitialMaxData:
			v, _, err := consumeVarInt(value)
			if err != nil {
				return nil, err
			}
			p.InitialMaxData = v
			sawMaxData = true
		case tpIdleTimeout:
			v, _, err := consumeVarInt(value)
			if err != nil {
				return nil, err
			}
			p.IdleTimeoutSeconds = v
			sawIdle = true
		case tpMaxStreamIDBidi:
			v, _, err := consumeVarInt(value)
			if err != nil {
				return nil, err
			}
			p.MaxStreamIDBidi = v
		case tpMaxStreamIDUni:
			v, _, err := consumeVarInt(value)
			if err != nil {
				return nil, err
			}
			p.MaxStreamIDUni = v
		case tpStatelessResetToken:
			if !fromServer {
				return nil, fmt.Errorf("quic: malformed-transport-param: stateless_reset_token on client->server")
			}
			if len(value) != 16 {
				return nil, fmt.Errorf("quic: malformed-transport-param: stateless_reset_token length")
			}
			copy(p.StatelessResetToken[:], value)
			p.HasStatelessResetToken = true
		case tpPreferredAddress:
			if !fromServer {
				return nil, fmt.Errorf("quic: malformed-transport-param: preferred_address on client->server")
			}
			p.PreferredAddress = append([]byte(nil), value...)
			p.HasPreferredAddress = true
		default:
			// unknown tags are ignored
		}
	}

	if !sawMaxStreamData || !sawMaxData || !sawIdle {
		return nil, fmt.Errorf("quic: malformed-transport-param: missing required parameter")
	}
	return p, nil
}
