package subway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// routeIncoming reads the envelopes of `p` one at a time and routes them.
func (b *Bus) routeIncoming(p *Peer) {
	defer b.wg.Done()
	logger := b.logger.With(LabelPeer.L(p.id))
	for {
		env, err := p.link.Recv(b.ctx)
		if errors.Is(err, ErrInvalidFrame) {
			b.incr(MetricEnvelopeDropped, LabelReason.M(ReasonInvalidFrame), LabelPeer.M(p.id))
			logger.Error(ReasonInvalidFrame, LabelError.L(err))
			continue
		}
		if err != nil {
			if b.ctx.Err() == nil && !p.isClosed() {
				logger.Warn("link failed while receiving", LabelError.L(err))
				b.detach(p, err)
			}
			return
		}
		if env == nil {
			continue
		}

		b.incr(MetricEnvelopeIn, LabelPeer.M(p.id), LabelSubject.M(env.Subject.String()))
		b.route(b.ctx, env)
	}
}

// dispatchOutgoing hands the envelopes queued for `p` to its link, one
// attempt each.
func (b *Bus) dispatchOutgoing(p *Peer) {
	defer b.wg.Done()
	for {
		var env *Envelope
		select {
		case <-p.closeCh:
			return
		case <-b.ctx.Done():
			return
		case env = <-p.outbox:
		}

		if err := p.link.Send(b.ctx, env); err != nil {
			if b.ctx.Err() != nil || p.isClosed() {
				return
			}
			b.incr(MetricEnvelopeOutError, LabelPeer.M(p.id))
			b.logger.Warn(
				"link failed while sending",
				LabelPeer.L(p.id),
				LabelEnvelope.L(env),
				LabelError.L(err),
			)
			b.detach(p, err)
			return
		}
		b.incr(MetricEnvelopeOut, LabelPeer.M(p.id), LabelSubject.M(env.Subject.String()))
	}
}

func (b *Bus) dropped(env *Envelope, reason string, attrs ...any) {
	b.incr(MetricEnvelopeDropped, LabelReason.M(reason))
	b.logger.Error(reason, append([]any{LabelEnvelope.L(env)}, attrs...)...)
}

// route decides, from the position of the local node in the path, whether
// to relay `env`, serve it or resolve a pending call with it.
func (b *Bus) route(ctx context.Context, env *Envelope) {
	if b.seen != nil && env.ID != "" {
		if seen, _ := b.seen.ContainsOrAdd(env.ID, struct{}{}); seen {
			b.incr(MetricEnvelopeDropped, LabelReason.M(ReasonDuplicate))
			b.logger.Debug("dropping duplicate envelope", LabelEnvelope.L(env))
			return
		}
	}

	if err := validatePath(env.Path); err != nil {
		b.dropped(env, ReasonInvalidPath, LabelError.L(err))
		return
	}

	next, relayed := env.NextHop(b.id)
	switch {
	case relayed:
		b.relay(ctx, env, next)
	case !env.IsDestination(b.id):
		b.dropped(env, ReasonNoSelf)
	case env.Subject == SubjectRequest:
		reply, err := b.reply(ctx, env)
		if err != nil {
			b.incr(MetricEnvelopeDropped, LabelReason.M(ReasonHandlerFailed))
			return
		}
		if reply != nil {
			b.dispatch(ctx, reply)
		}
	case env.Subject == SubjectResponse:
		if env.InReplyTo == "" {
			b.dropped(env, ReasonUnknownMessage)
			return
		}
		if !b.pending.resolve(env) {
			b.incr(MetricEnvelopeDropped, LabelReason.M(ReasonUnmatched))
			b.logger.Debug("no pending call for response", LabelEnvelope.L(env))
		}
	default:
		b.dropped(env, ReasonUnknownMessage)
	}
}

// reply serves `env`, whose destination is the local node, and builds the
// reply envelope along the reverse path. A nil envelope with a nil error
// means nothing must be sent back.
func (b *Bus) reply(ctx context.Context, env *Envelope) (*Envelope, error) {
	req := env.Message.Request
	if env.Message.Type != MessageIncoming || req == nil {
		b.dropped(env, ReasonUnknownMessage)
		return nil, nil
	}

	res, err := b.invoke(ctx, req, env)
	if err != nil {
		b.incr(MetricHandlerError, LabelPathname.M(req.Pathname))
		b.logger.Error(
			"request handler failed",
			LabelEnvelope.L(env),
			LabelError.L(err),
		)
		if !b.cfg.errorReplies {
			return nil, err
		}
		res = errorResponse(http.StatusInternalServerError, err)
	}

	return newReplyEnvelope(b.id, env, reversePath(env.Path), res), nil
}

func (b *Bus) invoke(ctx context.Context, req *Request, env *Envelope) (res *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Debug("handler panic", "stack", string(debug.Stack()))
			res, err = nil, fmt.Errorf("%w: panic: %v", ErrHandlerFailed, r)
		}
	}()

	res, err = b.handler(ctx, req, env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandlerFailed, err)
	}
	if res == nil {
		res = &Response{StatusCode: http.StatusNoContent}
	}
	return res, nil
}

// relay forwards `env` to `next`, the hop following the local node. A
// request which cannot be relayed is answered with a 502 from here, along
// the part of the path it already travelled.
func (b *Bus) relay(ctx context.Context, env *Envelope, next string) {
	err := b.forward(ctx, env, next)
	if err == nil {
		b.incr(MetricEnvelopeRelayed)
		return
	}

	b.dropped(env, ReasonNoPeer, LabelPeer.L(next), LabelError.L(err))
	if !b.cfg.errorReplies || env.Subject != SubjectRequest {
		return
	}

	res := errorResponse(
		http.StatusBadGateway,
		fmt.Errorf("%w: %s cannot reach %s", ErrNoPeer, b.id, next),
	)
	travelled := env.Path[:env.IndexOf(b.id)+1]
	b.dispatch(ctx, newReplyEnvelope(b.id, env, reversePath(travelled), res))
}

// dispatch sends an envelope the local node originated to its first hop.
func (b *Bus) dispatch(ctx context.Context, env *Envelope) {
	if len(env.Path) < 2 {
		if env.Subject == SubjectResponse && b.pending.resolve(env) {
			return
		}
		b.dropped(env, ReasonNoPeer)
		return
	}

	next := env.Path[1]
	if err := b.forward(ctx, env, next); err != nil {
		b.dropped(env, ReasonNoPeer, LabelPeer.L(next), LabelError.L(err))
	}
}

func (b *Bus) forward(ctx context.Context, env *Envelope, next string) error {
	p := b.peer(next)
	if p == nil {
		return fmt.Errorf("%w: %s has no peer %q", ErrNoPeer, b.id, next)
	}
	return p.emit(ctx, env)
}

type errorBody struct {
	Error string `json:"error"`
}

func errorResponse(statusCode int, err error) *Response {
	res, marshalErr := NewJSONResponse(statusCode, errorBody{Error: err.Error()})
	if marshalErr != nil {
		return &Response{StatusCode: statusCode}
	}
	return res
}
