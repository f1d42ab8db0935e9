package tunnel

import (
	"fmt"
	"net"
	"sync"

	"github.com/cppla/quicsdn/quic"
)

// OpenFlowSink is the local OpenFlow collaborator of spec.md §6: "UDP
// socket bound to a well-known port; packets delivered from OVSDB/
// OpenFlow streams are injected via sendto to the address learned from
// the first received datagram." It implements quic.StreamSink so the
// multiplex dispatcher (C7) can route reassembled bytes to it directly.
type OpenFlowSink struct {
	conn net.PacketConn

	mu        sync.Mutex
	peer      net.Addr
	toStream  func([]byte) error // set by the caller to forward local reads into a QUIC stream
}

// NewOpenFlowSink binds a UDP socket at localAddr.
func NewOpenFlowSink(localAddr string) (*OpenFlowSink, error) {
	conn, err := net.ListenPacket("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("tunnel: openflow listen: %w", err)
	}
	return &OpenFlowSink{conn: conn}, nil
}

// BindUpstream sets the function called with bytes read from the local
// OpenFlow controller/switch socket, for writing into the QUIC stream
// tagged ProtoOFL.
func (s *OpenFlowSink) BindUpstream(toStream func([]byte) error) {
	s.toStream = toStream
}

// Deliver implements quic.StreamSink: data reassembled from the OFL
// stream is sent to the learned peer address via sendto.
func (s *OpenFlowSink) Deliver(data []byte) error {
	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return fmt.Errorf("tunnel: openflow sink has no learned peer address yet")
	}
	_, err := s.conn.WriteTo(data, peer)
	return err
}

// ReadLoop runs the recvfrom side: each datagram's sender becomes the
// learned peer address (spec.md §6), and every datagram, the first one
// included, is forwarded upstream into the QUIC stream. It returns when
// the socket is closed.
func (s *OpenFlowSink) ReadLoop() error {
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.peer = addr
		s.mu.Unlock()
		if s.toStream != nil {
			if err := s.toStream(append([]byte(nil), buf[:n]...)); err != nil {
				return err
			}
		}
	}
}

func (s *OpenFlowSink) Close() error { return s.conn.Close() }

var _ quic.StreamSink = (*OpenFlowSink)(nil)
