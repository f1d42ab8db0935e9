package quic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	got [][]byte
}

func (f *fakeSink) Deliver(data []byte) error {
	f.got = append(f.got, append([]byte(nil), data...))
	return nil
}

func TestApplyTagAndRecoverRoundTrip(t *testing.T) {
	for _, id := range []uint64{0, 1, 2, 3, 4, 400, 401} {
		ofl := ApplyTag(id, ProtoOFL)
		require.Equal(t, ProtoOFL, TagForStream(ofl))
		ovsdb := ApplyTag(id, ProtoOVSDB)
		require.Equal(t, ProtoOVSDB, TagForStream(ovsdb))
	}
}

func TestApplyTagPreservesInitiatorAndDirectionality(t *testing.T) {
	id := uint64(3) // server-initiated, uni
	tagged := ApplyTag(id, ProtoOVSDB)
	require.Equal(t, InitiatorServer, StreamInitiator(tagged))
	require.Equal(t, DirectionalityUni, StreamDirectionality(tagged))
}

func TestDispatcherRoutesByRecoveredTag(t *testing.T) {
	d := NewDispatcher(ProtoMix)
	ofl := &fakeSink{}
	ovsdb := &fakeSink{}
	d.Bind(ProtoOFL, ofl)
	d.Bind(ProtoOVSDB, ovsdb)

	oflID := ApplyTag(4, ProtoOFL)
	ovsdbID := ApplyTag(8, ProtoOVSDB)

	require.NoError(t, d.Route(oflID, []byte("a")))
	require.NoError(t, d.Route(ovsdbID, []byte("b")))
	require.Equal(t, [][]byte{[]byte("a")}, ofl.got)
	require.Equal(t, [][]byte{[]byte("b")}, ovsdb.got)
}

func TestDispatcherRouteUnboundSink(t *testing.T) {
	d := NewDispatcher(ProtoOFL)
	err := d.Route(ApplyTag(4, ProtoOFL), []byte("a"))
	require.Error(t, err)
}

func TestDispatcherTagForNewStreamEnforcesMode(t *testing.T) {
	d := NewDispatcher(ProtoOFL)
	_, err := d.TagForNewStream(ProtoOVSDB)
	require.Error(t, err)

	tag, err := d.TagForNewStream(ProtoOFL)
	require.NoError(t, err)
	require.Equal(t, ProtoOFL, tag)

	mixed := NewDispatcher(ProtoMix)
	_, err = mixed.TagForNewStream(ProtoMix)
	require.Error(t, err)
}
