package subway

import (
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"
)

const (
	defaultCallTimeout = 30 * time.Second
	defaultOutboxSize  = 64
	defaultDedupSize   = 4096
)

type config struct {
	logHandler   slog.Handler
	msink        metrics.MetricSink
	metricLabels []metrics.Label
	meta         Meta
	callTimeout  time.Duration
	errorReplies bool
	outboxSize   int
	dedupSize    int
	newID        func() string
}

func defaultConfig() config {
	return config{
		callTimeout:  defaultCallTimeout,
		errorReplies: true,
		outboxSize:   defaultOutboxSize,
		dedupSize:    defaultDedupSize,
		newID:        uuid.NewString,
	}
}

// Option to pass to `New`.
type Option func(*config) error

// WithLog specifies which `slog.Handler` to use.
func WithLog(handler slog.Handler) Option {
	return func(c *config) error {
		c.logHandler = handler
		return nil
	}
}

// WithMetricSink allows you to chose how to collect the metrics emitted by
// the bus.
func WithMetricSink(ms metrics.MetricSink) Option {
	return func(c *config) error {
		if ms == nil {
			ms = &metrics.BlackholeSink{}
		}
		c.msink = ms
		return nil
	}
}

// WithMetricLabels adds static labels to all metrics produced by the bus.
func WithMetricLabels(labels []metrics.Label) Option {
	return func(c *config) error {
		c.metricLabels = labels
		return nil
	}
}

// WithMeta attaches opaque metadata to the node. It is advertised to
// neighbours during transport handshakes, so they can select us with a
// `Query`.
func WithMeta(meta Meta) Option {
	return func(c *config) error {
		c.meta = maps.Clone(meta)
		return nil
	}
}

// WithCallTimeout bounds calls issued with a context without deadline.
// Zero disables the default bound: such calls then wait until their
// context is cancelled.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return errors.New("call timeout must not be negative")
		}
		c.callTimeout = timeout
		return nil
	}
}

// WithErrorReplies controls what happens when a request cannot be served:
// no next hop on a relay or a failing handler.
//
// When enabled (the default), an error response is routed back to the
// caller so its pending call resolves. When disabled, the envelope is
// dropped and logged, and the caller only returns when its deadline
// expires.
func WithErrorReplies(enabled bool) Option {
	return func(c *config) error {
		c.errorReplies = enabled
		return nil
	}
}

// WithOutboxSize sets how many envelopes can be queued for a peer before
// emitters block.
func WithOutboxSize(size int) Option {
	return func(c *config) error {
		if size <= 0 {
			return errors.New("outbox size must be positive")
		}
		c.outboxSize = size
		return nil
	}
}

// WithDedupWindow sets how many envelope ids are remembered to drop
// duplicates. Zero disables duplicate suppression.
func WithDedupWindow(size int) Option {
	return func(c *config) error {
		if size < 0 {
			return errors.New("dedup window must not be negative")
		}
		c.dedupSize = size
		return nil
	}
}

// WithIDGenerator replaces the envelope id generator (random UUIDs by
// default). Generated ids MUST be unique per node and valid UTF-8.
func WithIDGenerator(gen func() string) Option {
	return func(c *config) error {
		if gen == nil {
			return errors.New("id generator must not be nil")
		}
		c.newID = gen
		return nil
	}
}
