package subway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultHeartbeatInterval is used when `SetHeartbeats` gets no interval.
const DefaultHeartbeatInterval = 5 * time.Second

// SetHeartbeats pings, every `interval`, the neighbours `filter` accepts
// (all of them when nil). Each ping is bounded by the interval; failures
// are logged and counted, never retried.
//
// The returned function stops the heartbeats and waits for the current
// round to finish.
func (b *Bus) SetHeartbeats(filter func(*Peer) bool, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	b.lk.Lock()
	if b.shutdown {
		b.lk.Unlock()
		return func() {}
	}
	ctx, cancel := context.WithCancel(b.ctx)
	done := make(chan struct{})
	b.wg.Add(1)
	b.lk.Unlock()

	go func() {
		defer b.wg.Done()
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.beat(ctx, filter, interval)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// beat pings every selected peer concurrently and waits for all of them.
func (b *Bus) beat(ctx context.Context, filter func(*Peer) bool, timeout time.Duration) {
	body, err := json.Marshal(Ping{PeerID: b.id})
	if err != nil {
		b.logger.Error("failed to marshal ping", LabelError.L(err))
		return
	}

	var g errgroup.Group
	for _, p := range b.Peers() {
		if filter != nil && !filter(p) {
			continue
		}
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			_, err := b.Fetch(pctx, &Request{
				Host:     p.id,
				Method:   MethodPost,
				Pathname: PathPing,
				Body:     body,
			}, RouteOptions{})
			if err != nil && ctx.Err() == nil {
				b.incr(MetricHeartbeatError, LabelPeer.M(p.id))
				b.logger.Warn("heartbeat failed", LabelPeer.L(p.id), LabelError.L(err))
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		b.logger.Debug("heartbeat round completed with failures", LabelError.L(err))
	}
}
