package subway

import (
	"log/slog"
	"time"

	"github.com/hashicorp/go-metrics"
)

var (
	MetricEnvelopeIn       = []string{"subway", "envelope", "in", "count"}
	MetricEnvelopeOut      = []string{"subway", "envelope", "out", "count"}
	MetricEnvelopeOutError = []string{"subway", "envelope", "out", "error", "count"}
	MetricEnvelopeRelayed  = []string{"subway", "envelope", "relayed", "count"}
	MetricEnvelopeDropped  = []string{"subway", "envelope", "dropped", "count"}
	MetricHandlerError     = []string{"subway", "handler", "error", "count"}
	MetricCallLatency      = []string{"subway", "call", "latency"}
	MetricCallError        = []string{"subway", "call", "error", "count"}
	MetricPendingCalls     = []string{"subway", "call", "pending"}
	MetricPeers            = []string{"subway", "peers"}
	MetricHeartbeatError   = []string{"subway", "heartbeat", "error", "count"}
	MetricConnEstCount     = []string{"subway", "transport", "connection", "established", "count"}
	MetricConnErrorCount   = []string{"subway", "transport", "connection", "error", "count"}
	MetricUDPBufferSize    = []string{"subway", "transport", "udp", "buffer", "bytes"}
)

type TelemetryLabel string

var (
	LabelError     TelemetryLabel = "error"
	LabelNode      TelemetryLabel = "node"
	LabelPeer      TelemetryLabel = "peer"
	LabelPeerAddr  TelemetryLabel = "peer_addr"
	LabelEnvelope  TelemetryLabel = "envelope"
	LabelSubject   TelemetryLabel = "subject"
	LabelReason    TelemetryLabel = "reason"
	LabelPathname  TelemetryLabel = "pathname"
	LabelDuration  TelemetryLabel = "duration"
	LabelTransport TelemetryLabel = "transport"
)

// Drop reasons, used both as log messages and metric label values.
const (
	ReasonNoPeer         = "NO_PEER"
	ReasonNoSelf         = "NO_SELF"
	ReasonInvalidPath    = "invalid_path"
	ReasonDuplicate      = "duplicate"
	ReasonUnknownMessage = "UNKNOWN_MESSAGE"
	ReasonUnmatched      = "unmatched_response"
	ReasonHandlerFailed  = "handler_failed"
	ReasonInvalidFrame   = "invalid_frame"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}

func (b *Bus) incr(key []string, labels ...metrics.Label) {
	b.msink.IncrCounterWithLabels(key, 1.0, append(b.metricLabels(), labels...))
}

func (b *Bus) gauge(key []string, val float32) {
	b.msink.SetGaugeWithLabels(key, val, b.metricLabels())
}

func (b *Bus) measureSince(key []string, start time.Time, labels ...metrics.Label) {
	elapsed := float32(time.Since(start).Seconds() * 1000)
	b.msink.AddSampleWithLabels(key, elapsed, append(b.metricLabels(), labels...))
}

func (b *Bus) metricLabels() []metrics.Label {
	labels := make([]metrics.Label, 0, len(b.cfg.metricLabels)+1)
	labels = append(labels, b.cfg.metricLabels...)
	return append(labels, LabelNode.M(b.id))
}
