package subway

import (
	"encoding/json"
	"log/slog"
	"slices"
)

const replySuffix = "->reply"

// Subject tells the destination how to act on an `Envelope`.
type Subject uint8

const (
	SubjectUnspecified Subject = iota
	SubjectRequest
	SubjectResponse
)

func (s Subject) String() string {
	switch s {
	case SubjectRequest:
		return "REQ"
	case SubjectResponse:
		return "RES"
	default:
		return "UNSPECIFIED"
	}
}

// MessageType tags the payload of a `Message`.
type MessageType uint8

const (
	// MessageIncoming wraps a `Request`.
	MessageIncoming MessageType = iota
	// MessageOutgoing wraps a `Response`.
	MessageOutgoing
)

// Well-known HTTP-like methods.
const (
	MethodGet    = "get"
	MethodPost   = "post"
	MethodPut    = "put"
	MethodDelete = "delete"
	MethodHead   = "head"
)

// Reserved pathnames for system operations. They go through the same
// `Handler` as application routes.
const (
	PathPing            = "/@system/bus/ping"
	PathWorkerCheckouts = "/@system/worker/checkouts"
)

// Request is the payload of a REQ envelope.
type Request struct {
	// Host is the id of the bus node which must serve the request.
	Host     string          `json:"host"`
	Method   string          `json:"method,omitempty"`
	Pathname string          `json:"pathname"`
	Body     json.RawMessage `json:"body,omitempty"`
}

// Response is the payload of a RES envelope.
type Response struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// OK reports whether the status code is in [200, 300).
func (res *Response) OK() bool {
	return res.StatusCode >= 200 && res.StatusCode < 300
}

// NewJSONResponse marshals `body` and wraps it in a `Response`.
func NewJSONResponse(statusCode int, body any) (*Response, error) {
	if body == nil {
		return &Response{StatusCode: statusCode}, nil
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: statusCode, Body: buf}, nil
}

// Message distinguishes envelopes carrying a request from those carrying
// a response.
type Message struct {
	Type     MessageType
	Request  *Request
	Response *Response
}

// Envelope is the routed unit. It MUST NOT be mutated once sent: relays
// forward the very same value.
type Envelope struct {
	ID        string
	InReplyTo string
	From      string
	To        string
	Path      []string
	Subject   Subject
	Message   Message
}

func newRequestEnvelope(id, from string, path []string, req *Request) *Envelope {
	return &Envelope{
		ID:      id,
		From:    from,
		To:      req.Host,
		Path:    path,
		Subject: SubjectRequest,
		Message: Message{
			Type:    MessageIncoming,
			Request: req,
		},
	}
}

// newReplyEnvelope answers `env` from node `self` along the reverse path.
func newReplyEnvelope(self string, env *Envelope, path []string, res *Response) *Envelope {
	return &Envelope{
		ID:        env.ID + replySuffix,
		InReplyTo: env.ID,
		From:      self,
		To:        env.From,
		Path:      path,
		Subject:   SubjectResponse,
		Message: Message{
			Type:     MessageOutgoing,
			Response: res,
		},
	}
}

// IndexOf returns the position of `node` in the path, or -1.
func (env *Envelope) IndexOf(node string) int {
	return slices.Index(env.Path, node)
}

// IsDestination reports whether `node` is the last hop of the path.
func (env *Envelope) IsDestination(node string) bool {
	idx := env.IndexOf(node)
	return idx >= 0 && idx == len(env.Path)-1
}

// NextHop returns the node following `node` in the path.
func (env *Envelope) NextHop(node string) (string, bool) {
	idx := env.IndexOf(node)
	if idx < 0 || idx+1 >= len(env.Path) {
		return "", false
	}
	return env.Path[idx+1], true
}

// Clone returns a deep copy, used when an envelope crosses an in-process
// link so both sides never share mutable state.
func (env *Envelope) Clone() *Envelope {
	if env == nil {
		return nil
	}
	cloned := *env
	cloned.Path = slices.Clone(env.Path)
	if env.Message.Request != nil {
		req := *env.Message.Request
		req.Body = slices.Clone(req.Body)
		cloned.Message.Request = &req
	}
	if env.Message.Response != nil {
		res := *env.Message.Response
		res.Body = slices.Clone(res.Body)
		cloned.Message.Response = &res
	}
	return &cloned
}

func (env *Envelope) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", env.ID),
		slog.String("subject", env.Subject.String()),
		slog.String("from", env.From),
		slog.String("to", env.To),
		slog.Any("path", env.Path),
	}
	if env.InReplyTo != "" {
		attrs = append(attrs, slog.String("in_reply_to", env.InReplyTo))
	}
	if req := env.Message.Request; req != nil {
		attrs = append(attrs, slog.String("pathname", req.Pathname))
	}
	if res := env.Message.Response; res != nil {
		attrs = append(attrs, slog.Int("status", res.StatusCode))
	}
	return slog.GroupValue(attrs...)
}

// reversePath returns a reversed copy of `path`.
func reversePath(path []string) []string {
	reversed := slices.Clone(path)
	slices.Reverse(reversed)
	return reversed
}
