package quic

import (
	"context"
	"crypto/tls"
	"fmt"
)

// QuicToTls is the half of the five-call interface (spec.md §6) the
// connection uses to drive the TLS collaborator forward.
type QuicToTls interface {
	// PushHandshakeBytes hands incoming CRYPTO data for the given space to
	// TLS.
	PushHandshakeBytes(space Space, data []byte) error
	// PullHandshakeBytes drains bytes TLS wants sent, paired with the
	// space they belong to.
	PullHandshakeBytes() (space Space, data []byte, ok bool)
	// ExportTransportParams / ImportTransportParams exchange the TLS
	// extension payload produced by quic/transportparams.go.
	ExportTransportParams(params []byte)
	ImportTransportParams() ([]byte, bool)
	// Close tears down the TLS side.
	Close() error
}

// TlsToQuic is the half of the interface the TLS collaborator calls back
// into the connection on (spec.md §6: on_new_key, on_handshake_done).
type TlsToQuic interface {
	OnNewKey(direction KeyDirection, level Space, secret []byte, suite AEADSuite)
	OnHandshakeDone()
}

type KeyDirection int

const (
	KeyDirectionRead KeyDirection = iota
	KeyDirectionWrite
)

// StdlibTLS adapts crypto/tls's QUIC support (tls.QUICConn) to QuicToTls.
// The core never implements TLS 1.3 record-layer crypto itself (spec.md
// §1 non-goal); this is the "TLS library... consumed as a collaborator".
type StdlibTLS struct {
	conn     *tls.QUICConn
	callback TlsToQuic
	outbox   []pendingHandshakeBytes
	peerTP   []byte
	haveTP   bool
}

type pendingHandshakeBytes struct {
	space Space
	data  []byte
}

// NewClientTLS and NewServerTLS construct the collaborator for each role.
// ourTransportParams is the encoded blob from quic/transportparams.go.
func NewClientTLS(cfg *tls.Config, ourTransportParams []byte, cb TlsToQuic) *StdlibTLS {
	qc := tls.QUICClient(&tls.QUICConfig{TLSConfig: cfg})
	s := &StdlibTLS{conn: qc, callback: cb}
	qc.SetTransportParameters(ourTransportParams)
	return s
}

func NewServerTLS(cfg *tls.Config, ourTransportParams []byte, cb TlsToQuic) *StdlibTLS {
	qc := tls.QUICServer(&tls.QUICConfig{TLSConfig: cfg})
	s := &StdlibTLS{conn: qc, callback: cb}
	qc.SetTransportParameters(ourTransportParams)
	return s
}

// Start kicks off the handshake (client: produces Initial CRYPTO data;
// server: waits for the client's first flight).
func (s *StdlibTLS) Start(ctx context.Context) error {
	if err := s.conn.Start(ctx); err != nil {
		return err
	}
	return s.drain()
}

func spaceFromLevel(l tls.QUICEncryptionLevel) Space {
	switch l {
	case tls.QUICEncryptionLevelInitial:
		return SpaceInitial
	case tls.QUICEncryptionLevelHandshake:
		return SpaceHandshake
	default:
		return SpaceApplication
	}
}

func suiteFromID(id uint16) AEADSuite {
	// TLS_CHACHA20_POLY1305_SHA256 = 0x1303; everything else this
	// endpoint negotiates is an AES-GCM suite.
	if id == 0x1303 {
		return SuiteChaCha20Poly1305
	}
	return SuiteAES128GCM
}

// drain pumps QUICConn's event queue until it is empty, translating each
// event into a call on the callback interface or into buffered outbound
// CRYPTO bytes (spec.md §6).
func (s *StdlibTLS) drain() error {
	for {
		ev := s.conn.NextEvent()
		switch ev.Kind {
		case tls.QUICNoEvent:
			return nil
		case tls.QUICSetReadSecret:
			s.callback.OnNewKey(KeyDirectionRead, spaceFromLevel(ev.Level), ev.Data, suiteFromID(ev.Suite))
		case tls.QUICSetWriteSecret:
			s.callback.OnNewKey(KeyDirectionWrite, spaceFromLevel(ev.Level), ev.Data, suiteFromID(ev.Suite))
		case tls.QUICWriteData:
			s.outbox = append(s.outbox, pendingHandshakeBytes{space: spaceFromLevel(ev.Level), data: append([]byte(nil), ev.Data...)})
		case tls.QUICTransportParameters:
			s.peerTP = append([]byte(nil), ev.Data...)
			s.haveTP = true
		case tls.QUICHandshakeDone:
			s.callback.OnHandshakeDone()
		case tls.QUICTransportParametersRequired:
			// already supplied at construction time via SetTransportParameters
		default:
			// QUICRejectedEarlyData, session ticket events, etc. are
			// dropped here and never reach the connection; nothing on
			// this path calls RejectZeroRTT.
		}
	}
}

func (s *StdlibTLS) PushHandshakeBytes(space Space, data []byte) error {
	var level tls.QUICEncryptionLevel
	switch space {
	case SpaceInitial:
		level = tls.QUICEncryptionLevelInitial
	case SpaceHandshake:
		level = tls.QUICEncryptionLevelHandshake
	case SpaceApplication:
		level = tls.QUICEncryptionLevelApplication
	default:
		return fmt.Errorf("quic: unknown space %v", space)
	}
	if err := s.conn.HandleData(level, data); err != nil {
		return err
	}
	return s.drain()
}

func (s *StdlibTLS) PullHandshakeBytes() (Space, []byte, bool) {
	if len(s.outbox) == 0 {
		return 0, nil, false
	}
	next := s.outbox[0]
	s.outbox = s.outbox[1:]
	return next.space, next.data, true
}

func (s *StdlibTLS) ExportTransportParams(params []byte) {
	s.conn.SetTransportParameters(params)
}

func (s *StdlibTLS) ImportTransportParams() ([]byte, bool) {
	return s.peerTP, s.haveTP
}

func (s *StdlibTLS) Close() error {
	return s.conn.Close()
}
