package tunnel

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/cppla/quicsdn/quic"
)

// OVSDBSink is the local OVSDB collaborator of spec.md §6: "TCP socket
// accepted from a bound listener; bytes flow in both directions and are
// non-blocking." It plays the same narrow "accept, forward" role as
// QSDN/client/ovs/lib/stream-fd.c's stream-fd wrapper, reproduced here as
// a small net.Conn-backed type rather than a generic stream abstraction
// (spec.md §1: thin plumbing, not core).
type OVSDBSink struct {
	ln net.Listener

	mu   sync.Mutex
	conn net.Conn

	toStream func([]byte) error
}

// NewOVSDBSink listens on localAddr for the single OVSDB management
// connection this tunnel carries.
func NewOVSDBSink(localAddr string) (*OVSDBSink, error) {
	ln, err := net.Listen("tcp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("tunnel: ovsdb listen: %w", err)
	}
	return &OVSDBSink{ln: ln}, nil
}

func (s *OVSDBSink) BindUpstream(toStream func([]byte) error) {
	s.toStream = toStream
}

// Deliver implements quic.StreamSink: bytes reassembled from the OVSDB
// stream are written to the accepted local connection.
func (s *OVSDBSink) Deliver(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("tunnel: ovsdb sink has no accepted connection yet")
	}
	_, err := conn.Write(data)
	return err
}

// AcceptLoop accepts the OVSDB management connection and pumps bytes
// upstream into the QUIC stream as they arrive, mirroring the io.Copy
// pump shape of cppla-moto/controller/normal.go.
func (s *OVSDBSink) AcceptLoop() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		buf := make([]byte, 32*1024)
		for {
			n, err := conn.Read(buf)
			if n > 0 && s.toStream != nil {
				if werr := s.toStream(append([]byte(nil), buf[:n]...)); werr != nil {
					break
				}
			}
			if err != nil {
				if err != io.EOF {
					break
				}
				break
			}
		}
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}
}

func (s *OVSDBSink) Close() error { return s.ln.Close() }

var _ quic.StreamSink = (*OVSDBSink)(nil)
