package subway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/require"
)

func testLogHandler(node string) slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}).WithAttrs([]slog.Attr{
		{Key: "emitter", Value: slog.StringValue(node)},
	})
}

// newTestBus creates a bus closed at the end of the test.
func newTestBus(t *testing.T, id string, handler Handler, opts ...Option) *Bus {
	t.Helper()
	opts = append([]Option{
		WithLog(testLogHandler(id)),
		WithMetricSink(metrics.NewInmemSink(time.Second, time.Minute)),
	}, opts...)
	b, err := New(id, handler, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, b.Close())
	})
	return b
}

// echoHandler answers 200 with the node id, the pathname and the body.
func echoHandler(id string) Handler {
	return func(ctx context.Context, req *Request, env *Envelope) (*Response, error) {
		return NewJSONResponse(http.StatusOK, echo{
			Node:     id,
			Pathname: req.Pathname,
			Path:     env.Path,
			Body:     req.Body,
		})
	}
}

type echo struct {
	Node     string          `json:"node"`
	Pathname string          `json:"pathname"`
	Path     []string        `json:"path"`
	Body     json.RawMessage `json:"body,omitempty"`
}

func decodeEcho(t *testing.T, body json.RawMessage) echo {
	t.Helper()
	var e echo
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

// chain links buses in a line: buses[0] <-> buses[1] <-> ...
func chain(t *testing.T, buses ...*Bus) {
	t.Helper()
	for i := 0; i+1 < len(buses); i++ {
		require.NoError(t, Connect(buses[i], buses[i+1]))
	}
}

func testContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// counted sums the counters `key` recorded with every `name=value` label
// of `labels`.
func counted(sink *metrics.InmemSink, key []string, labels ...string) int {
	name := strings.Join(key, ".")
	total := 0
	for _, interval := range sink.Data() {
		interval.RLock()
		for flat, val := range interval.Counters {
			parts := strings.Split(flat, ";")
			if parts[0] != name || !containsAll(parts[1:], labels) {
				continue
			}
			total += val.Count
		}
		interval.RUnlock()
	}
	return total
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
