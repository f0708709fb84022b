package subway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// RouteOptions customizes how a request travels.
type RouteOptions struct {
	// Path lists the hops from the local node to the destination. The
	// local node is prepended when missing. When empty, the destination
	// must be a direct neighbour.
	Path []string
}

// Fetch issues `req` and waits for its response. It returns the body of a
// 2xx response, a `*StatusError` for other status codes, or the error
// which prevented the call from completing.
//
// Calls whose context has no deadline are bounded by the call timeout
// of the bus, see `WithCallTimeout`.
func (b *Bus) Fetch(ctx context.Context, req *Request, opts RouteOptions) (body json.RawMessage, err error) {
	if req == nil || req.Host == "" {
		return nil, fmt.Errorf("%w: a host is required", ErrInvalidRequest)
	}
	if !utf8.ValidString(req.Host) || !utf8.ValidString(req.Method) || !utf8.ValidString(req.Pathname) {
		return nil, fmt.Errorf("%w: request fields must be valid UTF-8", ErrInvalidRequest)
	}
	if b.isShutdown() {
		return nil, ErrBusClosed
	}

	start := time.Now()
	defer func() {
		if err != nil {
			b.incr(MetricCallError, LabelPathname.M(req.Pathname))
		} else {
			b.measureSince(MetricCallLatency, start, LabelPathname.M(req.Pathname))
		}
	}()

	// Loopback: the handler is invoked directly, no link is involved.
	if req.Host == b.id {
		env := newRequestEnvelope(b.cfg.newID(), b.id, []string{b.id}, req)
		reply, err := b.reply(ctx, env)
		if err != nil {
			return nil, err
		}
		if reply == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, env.ID)
		}
		return RenderResponse(reply)
	}

	path := []string{b.id, req.Host}
	if len(opts.Path) > 0 {
		path = originPath(b.id, opts.Path)
	}
	if err := validatePath(path); err != nil {
		return nil, err
	}

	env := newRequestEnvelope(b.cfg.newID(), b.id, path, req)
	next, ok := env.NextHop(b.id)
	if !ok {
		return nil, fmt.Errorf("%w: route has no hop after %s", ErrInvalidPath, b.id)
	}
	p := b.peer(next)
	if p == nil {
		return nil, fmt.Errorf("%w: %s has no peer %q", ErrNoPeer, b.id, next)
	}

	if _, hasDl := ctx.Deadline(); !hasDl && b.cfg.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, b.cfg.callTimeout, ErrCallTimeout)
		defer cancel()
	}

	// the slot must exist before the request leaves: the response can
	// arrive before emit returns.
	call, err := b.pending.register(env.ID, p.id)
	if err != nil {
		return nil, err
	}
	defer b.pending.cancel(env.ID)

	if err := p.emit(ctx, env); err != nil {
		return nil, err
	}

	select {
	case res := <-call.done:
		if res.err != nil {
			return nil, res.err
		}
		return RenderResponse(res.env)
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Request issues `req` along `route`: either a single dotted route such
// as "a.b.c" or one hop per argument. Without route, `req.Host` must be a
// direct neighbour.
func (b *Bus) Request(ctx context.Context, req *Request, route ...string) (json.RawMessage, error) {
	var path []string
	switch len(route) {
	case 0:
	case 1:
		path = ParseRoute(route[0])
	default:
		path = route
	}
	return b.Fetch(ctx, req, RouteOptions{Path: path})
}

// Process sends `req` to the single neighbour matching `query`.
func (b *Bus) Process(ctx context.Context, query Query, req *Request) (json.RawMessage, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	host, err := b.SelectPeer(query)
	if err != nil {
		return nil, err
	}
	routed := *req
	routed.Host = host
	return b.Request(ctx, &routed)
}

// Call is `Bus.Request` decoding the response body into a `T`.
func Call[T any](ctx context.Context, b *Bus, req *Request, route ...string) (T, error) {
	var result T
	body, err := b.Request(ctx, req, route...)
	if err != nil {
		return result, err
	}
	if len(body) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("decoding response body: %w", err)
	}
	return result, nil
}

// RenderResponse extracts the outcome of a response envelope.
func RenderResponse(env *Envelope) (json.RawMessage, error) {
	if env == nil ||
		env.Subject != SubjectResponse ||
		env.Message.Type != MessageOutgoing ||
		env.Message.Response == nil {
		return nil, ErrUnknownMessage
	}

	res := env.Message.Response
	if !res.OK() {
		return nil, &StatusError{
			StatusCode: res.StatusCode,
			Body:       res.Body,
		}
	}
	return res.Body, nil
}

// IsTimeout reports whether `err` means a call gave up waiting.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrCallTimeout) || errors.Is(err, context.DeadlineExceeded)
}
