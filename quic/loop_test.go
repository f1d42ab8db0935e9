package quic

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newLoopbackPump(t *testing.T, conn *Connection) (*EventPump, net.Addr) {
	t.Helper()
	sock, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { sock.Close() })
	return NewEventPump(conn, sock, nil), sock.LocalAddr()
}

// TestEventPumpDeliversStreamData drives two real pumps over loopback UDP
// far enough to confirm a client-opened stream's bytes reach the server's
// dispatcher sink end to end (spec.md §4.8 suspension-point model).
func TestEventPumpDeliversStreamData(t *testing.T) {
	client, server := newTestConnPair(t)

	sink := &fakeSink{}
	d := NewDispatcher(ProtoOFL)
	d.Bind(ProtoOFL, sink)
	server.SetDispatcher(d)
	client.SetDispatcher(NewDispatcher(ProtoOFL))

	clientPump, clientAddr := newLoopbackPump(t, client)
	serverPump, serverAddr := newLoopbackPump(t, server)
	clientPump.SetPeer(serverAddr)
	serverPump.SetPeer(clientAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go serverPump.Run(ctx)

	stream, err := client.OpenStream(ProtoOFL)
	require.NoError(t, err)
	_, err = stream.Write([]byte("hello over real loopback udp"))
	require.NoError(t, err)

	clientPump.flushOutbound()

	require.Eventually(t, func() bool {
		return len(sink.got) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "hello over real loopback udp", string(sink.got[0]))
}
