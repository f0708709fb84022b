package subway

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/armon/go-radix"
	"github.com/hashicorp/go-metrics"
	lru "github.com/hashicorp/golang-lru"
)

// Meta is opaque node metadata. Peer selection queries match against it.
type Meta map[string]any

// Handler serves requests whose destination is the local node.
//
// A nil `*Response` with a nil error answers 204. An error (or a panic)
// answers 500 unless error replies are disabled, see `WithErrorReplies`.
type Handler func(ctx context.Context, req *Request, env *Envelope) (*Response, error)

// Bus is a node of the overlay. It relays envelopes along their path,
// serves requests addressed to it and correlates the responses to the
// requests it issued.
type Bus struct {
	id      string
	handler Handler
	cfg     config
	logger  *slog.Logger
	msink   metrics.MetricSink

	// peers are kept in insertion order, the radix tree indexes them by id.
	peers []*Peer
	index *radix.Tree

	pending *pendingTable
	seen    *lru.Cache

	// 2-phase close:
	// phase 1: shutdown notification, no new peer or call is accepted.
	// phase 2: drop, every loop is cancelled and all resources are freed.
	shutdown   bool
	shutdownCh chan struct{}
	ctx        context.Context
	drop       context.CancelFunc
	lk         sync.RWMutex
	wg         sync.WaitGroup
}

// New creates the bus node `id`. `handler` serves requests addressed to
// it; a nil handler answers pings and 404 to everything else.
func New(id string, handler Handler, opts ...Option) (*Bus, error) {
	if !ValidateID(id) {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidCfg, ErrInvalidID, id)
	}

	b := &Bus{
		id:         id,
		cfg:        defaultConfig(),
		index:      radix.New(),
		shutdownCh: make(chan struct{}),
	}

	for _, opt := range opts {
		err := opt(&b.cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCfg, err)
		}
	}

	// Logging implementations.
	if b.cfg.logHandler != nil {
		b.logger = slog.New(b.cfg.logHandler)
	} else {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With(LabelNode.L(id))

	// Metrics implementations.
	if b.cfg.msink == nil {
		b.cfg.msink = metrics.Default()
	}
	b.msink = b.cfg.msink

	if handler == nil {
		mux := NewMux()
		mux.HandlePing(nil)
		handler = mux.Serve
	}
	b.handler = handler

	if b.cfg.dedupSize > 0 {
		seen, err := lru.New(b.cfg.dedupSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCfg, err)
		}
		b.seen = seen
	}

	b.pending = newPendingTable(func(n int) {
		b.gauge(MetricPendingCalls, float32(n))
	})
	b.ctx, b.drop = context.WithCancel(context.Background())
	return b, nil
}

// ID returns the id of the local node.
func (b *Bus) ID() string {
	return b.id
}

// Meta returns a copy of the local node metadata.
func (b *Bus) Meta() Meta {
	return maps.Clone(b.cfg.meta)
}

// Logger returns the logger of the bus, for transports to share it.
func (b *Bus) Logger() *slog.Logger {
	return b.logger
}

// Done is closed once `Close` was called.
func (b *Bus) Done() <-chan struct{} {
	return b.shutdownCh
}

func (b *Bus) isShutdown() bool {
	select {
	case <-b.shutdownCh:
		return true
	default:
		return false
	}
}

// Close fails every pending call with `ErrBusClosed`, closes every link
// and waits for the routing loops to exit. It is idempotent.
func (b *Bus) Close() error {
	// Phase 1: Shutdown notify.
	b.lk.Lock()
	if b.shutdown {
		b.lk.Unlock()
		return nil
	}
	b.shutdown = true
	close(b.shutdownCh)
	peers := b.peers
	b.peers = nil
	b.index = radix.New()
	b.lk.Unlock()

	start := time.Now()
	b.logger.Info("shutting down...")
	b.pending.failAll(ErrBusClosed)

	// Phase 2: Drop all resources.
	b.drop()
	for _, p := range peers {
		p.close()
	}
	b.gauge(MetricPeers, 0)

	b.logger.Debug("shutdown: wait for routing loops to finish")
	b.wg.Wait()

	b.logger.Info("shutdown: completed", LabelDuration.L(time.Since(start)))
	return nil
}
