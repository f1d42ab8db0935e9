package tunnel

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenFlowSinkDeliverBeforeLearnedPeerErrors(t *testing.T) {
	sink, err := NewOpenFlowSink("127.0.0.1:0")
	require.NoError(t, err)
	defer sink.Close()

	err = sink.Deliver([]byte("packet-in"))
	require.Error(t, err)
}

func TestOpenFlowSinkLearnsPeerAndDelivers(t *testing.T) {
	sink, err := NewOpenFlowSink("127.0.0.1:0")
	require.NoError(t, err)
	defer sink.Close()

	var upstream [][]byte
	sink.BindUpstream(func(b []byte) error {
		upstream = append(upstream, append([]byte(nil), b...))
		return nil
	})
	go sink.ReadLoop()

	controller, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer controller.Close()

	_, err = controller.WriteTo([]byte("hello controller"), sink.conn.LocalAddr())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(upstream) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "hello controller", string(upstream[0]))

	require.NoError(t, sink.Deliver([]byte("flow-mod")))
	buf := make([]byte, 1024)
	controller.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := controller.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "flow-mod", string(buf[:n]))
}
