package subway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeartbeats(t *testing.T) {
	pings := make(chan Ping, 64)
	mux := NewMux()
	mux.HandlePing(func(ctx context.Context, ping Ping) {
		select {
		case pings <- ping:
		default:
		}
	})

	a := newTestBus(t, "a", nil)
	b := newTestBus(t, "b", mux.Serve, WithMeta(Meta{"role": "worker"}))
	c := newTestBus(t, "c", mux.Serve)
	require.NoError(t, Connect(a, b))
	require.NoError(t, Connect(a, c))

	filter := func(p *Peer) bool {
		return p.Meta()["role"] == "worker"
	}
	stop := a.SetHeartbeats(filter, 20*time.Millisecond)

	select {
	case ping := <-pings:
		require.Equal(t, "a", ping.PeerID)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat received")
	}

	stop()
	stop()

	// drain what was in flight, then nothing more must come.
	time.Sleep(50 * time.Millisecond)
	for len(pings) > 0 {
		<-pings
	}
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, pings)
}

func TestHeartbeatsStopWithBus(t *testing.T) {
	a, err := New("a", nil, WithLog(testLogHandler("a")), WithMetricSink(nil))
	require.NoError(t, err)
	stop := a.SetHeartbeats(nil, 10*time.Millisecond)
	require.NoError(t, a.Close())
	stop()

	stop = a.SetHeartbeats(nil, 10*time.Millisecond)
	stop()
}
