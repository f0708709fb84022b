package subway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNew(t *testing.T) {
	t.Run("rejects invalid ids", func(t *testing.T) {
		for _, id := range []string{"", "a.b"} {
			_, err := New(id, nil)
			require.ErrorIs(t, err, ErrInvalidCfg)
			require.ErrorIs(t, err, ErrInvalidID)
		}
	})

	t.Run("wraps option errors", func(t *testing.T) {
		_, err := New("a", nil, WithOutboxSize(0))
		require.ErrorIs(t, err, ErrInvalidCfg)

		_, err = New("a", nil, WithCallTimeout(-time.Second))
		require.ErrorIs(t, err, ErrInvalidCfg)
	})

	t.Run("default handler answers pings", func(t *testing.T) {
		b := newTestBus(t, "a", nil)
		body, err := b.Request(testContext(t, time.Second), &Request{
			Host:     "a",
			Method:   MethodPost,
			Pathname: PathPing,
			Body:     json.RawMessage(`{"peerId":"a"}`),
		})
		require.NoError(t, err)
		require.JSONEq(t, `{"peerId":"a"}`, string(body))

		_, err = b.Request(testContext(t, time.Second), &Request{Host: "a", Pathname: "/nope"})
		var serr *StatusError
		require.ErrorAs(t, err, &serr)
		require.Equal(t, http.StatusNotFound, serr.StatusCode)
	})
}

func TestRequest(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	a, err := New("a", echoHandler("a"), WithLog(testLogHandler("a")), WithMetricSink(nil))
	require.NoError(t, err)
	b, err := New("b", echoHandler("b"), WithLog(testLogHandler("b")), WithMetricSink(nil))
	require.NoError(t, err)
	c, err := New("c", echoHandler("c"), WithLog(testLogHandler("c")), WithMetricSink(nil))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, a.Close())
		require.NoError(t, b.Close())
		require.NoError(t, c.Close())
	}()
	chain(t, a, b, c)

	t.Run("loopback invokes the local handler", func(t *testing.T) {
		body, err := a.Request(testContext(t, time.Second), &Request{Host: "a", Pathname: "/self"})
		require.NoError(t, err)
		got := decodeEcho(t, body)
		require.Equal(t, "a", got.Node)
		require.Equal(t, []string{"a"}, got.Path)
	})

	t.Run("direct neighbour", func(t *testing.T) {
		body, err := a.Request(testContext(t, time.Second), &Request{
			Host:     "b",
			Method:   MethodPost,
			Pathname: "/direct",
			Body:     json.RawMessage(`{"n":1}`),
		})
		require.NoError(t, err)
		got := decodeEcho(t, body)
		require.Equal(t, "b", got.Node)
		require.Equal(t, "/direct", got.Pathname)
		require.Equal(t, []string{"a", "b"}, got.Path)
		require.JSONEq(t, `{"n":1}`, string(got.Body))
	})

	t.Run("dotted route through a relay", func(t *testing.T) {
		body, err := a.Request(testContext(t, time.Second), &Request{Host: "c", Pathname: "/far"}, "a.b.c")
		require.NoError(t, err)
		got := decodeEcho(t, body)
		require.Equal(t, "c", got.Node)
		require.Equal(t, []string{"a", "b", "c"}, got.Path)
	})

	t.Run("route without the origin gets it prepended", func(t *testing.T) {
		body, err := a.Request(testContext(t, time.Second), &Request{Host: "c", Pathname: "/far"}, "b", "c")
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, decodeEcho(t, body).Path)
	})

	t.Run("reverse direction", func(t *testing.T) {
		body, err := c.Request(testContext(t, time.Second), &Request{Host: "a", Pathname: "/back"}, "c.b.a")
		require.NoError(t, err)
		require.Equal(t, "a", decodeEcho(t, body).Node)
	})

	t.Run("missing first hop fails immediately", func(t *testing.T) {
		_, err := a.Request(testContext(t, time.Second), &Request{Host: "c", Pathname: "/far"})
		require.ErrorIs(t, err, ErrNoPeer)
	})

	t.Run("invalid routes are rejected", func(t *testing.T) {
		_, err := a.Request(testContext(t, time.Second), &Request{Host: "c"}, "a.b.a.c")
		require.ErrorIs(t, err, ErrInvalidPath)

		_, err = a.Request(testContext(t, time.Second), &Request{Host: "c"}, "a..c")
		require.ErrorIs(t, err, ErrInvalidPath)

		_, err = a.Request(testContext(t, time.Second), &Request{})
		require.ErrorIs(t, err, ErrInvalidRequest)

		_, err = a.Request(testContext(t, time.Second), &Request{Host: "b", Pathname: "/\xff"})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("calls are isolated", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 32)
		for i := range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				body, err := a.Request(testContext(t, 5*time.Second), &Request{
					Host:     "c",
					Pathname: fmt.Sprintf("/call/%d", i),
					Body:     json.RawMessage(fmt.Sprintf(`{"i":%d}`, i)),
				}, "a.b.c")
				if err != nil {
					errs <- err
					return
				}
				var got echo
				if err := json.Unmarshal(body, &got); err != nil {
					errs <- err
					return
				}
				if got.Pathname != fmt.Sprintf("/call/%d", i) {
					errs <- fmt.Errorf("call %d got the response of %s", i, got.Pathname)
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		require.Empty(t, a.Pending())
	})
}

func TestCall(t *testing.T) {
	a := newTestBus(t, "a", nil)
	b := newTestBus(t, "b", echoHandler("b"))
	chain(t, a, b)

	got, err := Call[echo](testContext(t, time.Second), a, &Request{Host: "b", Pathname: "/typed"})
	require.NoError(t, err)
	require.Equal(t, "b", got.Node)
	require.Equal(t, "/typed", got.Pathname)
}

func TestStatusResponses(t *testing.T) {
	handler := func(ctx context.Context, req *Request, env *Envelope) (*Response, error) {
		switch req.Pathname {
		case "/missing":
			return &Response{StatusCode: http.StatusNotFound, Body: json.RawMessage(`"nope"`)}, nil
		case "/empty":
			return nil, nil
		case "/fail":
			return nil, errors.New("boom")
		case "/panic":
			panic("boom")
		default:
			return &Response{StatusCode: http.StatusOK}, nil
		}
	}
	a := newTestBus(t, "a", nil)
	b := newTestBus(t, "b", handler)
	chain(t, a, b)

	t.Run("non-2xx is a status error", func(t *testing.T) {
		_, err := a.Request(testContext(t, time.Second), &Request{Host: "b", Pathname: "/missing"})
		require.ErrorIs(t, err, ErrStatus)
		require.EqualError(t, err, "404")
		var serr *StatusError
		require.ErrorAs(t, err, &serr)
		require.Equal(t, `"nope"`, string(serr.Body))
	})

	t.Run("nil response is 204", func(t *testing.T) {
		body, err := a.Request(testContext(t, time.Second), &Request{Host: "b", Pathname: "/empty"})
		require.NoError(t, err)
		require.Empty(t, body)
	})

	for _, pathname := range []string{"/fail", "/panic"} {
		t.Run("handler failure on "+pathname+" is a 500", func(t *testing.T) {
			_, err := a.Request(testContext(t, time.Second), &Request{Host: "b", Pathname: pathname})
			var serr *StatusError
			require.ErrorAs(t, err, &serr)
			require.Equal(t, http.StatusInternalServerError, serr.StatusCode)
			require.Contains(t, string(serr.Body), "boom")
		})
	}

	t.Run("loopback handler failure", func(t *testing.T) {
		_, err := b.Request(testContext(t, time.Second), &Request{Host: "b", Pathname: "/fail"})
		require.EqualError(t, err, "500")
	})
}

func TestErrorRepliesDisabled(t *testing.T) {
	handler := func(ctx context.Context, req *Request, env *Envelope) (*Response, error) {
		return nil, errors.New("boom")
	}
	a := newTestBus(t, "a", nil)
	b := newTestBus(t, "b", handler, WithErrorReplies(false))
	chain(t, a, b)

	t.Run("failing handler leaves the caller waiting", func(t *testing.T) {
		_, err := a.Request(testContext(t, 200*time.Millisecond), &Request{Host: "b", Pathname: "/fail"})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Empty(t, a.Pending())
	})

	t.Run("unreachable hop leaves the caller waiting", func(t *testing.T) {
		_, err := a.Request(testContext(t, 200*time.Millisecond), &Request{Host: "x"}, "a.b.x")
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("loopback returns the handler error", func(t *testing.T) {
		_, err := b.Request(testContext(t, time.Second), &Request{Host: "b"})
		require.ErrorIs(t, err, ErrHandlerFailed)
	})
}

func TestRelayWithoutNextHop(t *testing.T) {
	a := newTestBus(t, "a", nil)
	b := newTestBus(t, "b", nil)
	c := newTestBus(t, "c", nil)
	chain(t, a, b, c)

	_, err := a.Request(testContext(t, time.Second), &Request{Host: "x"}, "a.b.c.x")
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, http.StatusBadGateway, serr.StatusCode)
	require.Contains(t, string(serr.Body), "c cannot reach x")
}

func TestCallTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	blocking := func(ctx context.Context, req *Request, env *Envelope) (*Response, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, nil
	}

	a := newTestBus(t, "a", nil, WithCallTimeout(100*time.Millisecond))
	b := newTestBus(t, "b", blocking)
	chain(t, a, b)

	start := time.Now()
	_, err := a.Request(context.Background(), &Request{Host: "b"})
	require.ErrorIs(t, err, ErrCallTimeout)
	require.True(t, IsTimeout(err))
	require.Less(t, time.Since(start), 5*time.Second)
	require.Empty(t, a.Pending())
}

func TestPendingFailures(t *testing.T) {
	blocking := func(ctx context.Context, req *Request, env *Envelope) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	t.Run("removing the first hop fails its calls", func(t *testing.T) {
		a := newTestBus(t, "a", nil)
		b := newTestBus(t, "b", blocking)
		chain(t, a, b)

		errCh := make(chan error, 1)
		go func() {
			_, err := a.Request(testContext(t, 10*time.Second), &Request{Host: "b"})
			errCh <- err
		}()

		require.Eventually(t, func() bool {
			return len(a.Pending()) == 1
		}, 2*time.Second, 10*time.Millisecond)
		require.Equal(t, "b", a.Pending()[0].Peer)

		require.NoError(t, a.RemovePeer("b"))
		require.ErrorIs(t, <-errCh, ErrPeerRemoved)
		require.Empty(t, a.Pending())
	})

	t.Run("closing the bus fails its calls", func(t *testing.T) {
		a, err := New("a", nil, WithLog(testLogHandler("a")), WithMetricSink(nil))
		require.NoError(t, err)
		b := newTestBus(t, "b", blocking)
		chain(t, a, b)

		errCh := make(chan error, 1)
		go func() {
			_, err := a.Request(testContext(t, 10*time.Second), &Request{Host: "b"})
			errCh <- err
		}()

		require.Eventually(t, func() bool {
			return len(a.Pending()) == 1
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, a.Close())
		require.ErrorIs(t, <-errCh, ErrBusClosed)

		_, err = a.Request(testContext(t, time.Second), &Request{Host: "b"})
		require.ErrorIs(t, err, ErrBusClosed)
		_, err = a.AddPeer("c", &nopLink{}, nil)
		require.ErrorIs(t, err, ErrBusClosed)
		require.NoError(t, a.Close())
	})
}

func TestPeers(t *testing.T) {
	a := newTestBus(t, "a", nil)

	for _, id := range []string{"w-2", "master", "w-1"} {
		_, err := a.AddPeer(id, &nopLink{}, Meta{"role": id[:1]})
		require.NoError(t, err)
	}

	t.Run("insertion order", func(t *testing.T) {
		var ids []string
		for _, p := range a.Peers() {
			ids = append(ids, p.ID())
		}
		require.Equal(t, []string{"w-2", "master", "w-1"}, ids)
	})

	t.Run("scan by prefix", func(t *testing.T) {
		require.Equal(t, []string{"w-1", "w-2"}, a.ScanPeers("w-"))
		require.Empty(t, a.ScanPeers("x"))
	})

	t.Run("duplicates and self are rejected", func(t *testing.T) {
		_, err := a.AddPeer("w-1", &nopLink{}, nil)
		require.ErrorIs(t, err, ErrPeerExists)
		_, err = a.AddPeer("a", &nopLink{}, nil)
		require.ErrorIs(t, err, ErrPeerExists)
		_, err = a.AddPeer("x.y", &nopLink{}, nil)
		require.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("remove", func(t *testing.T) {
		p, has := a.Peer("master")
		require.True(t, has)
		require.NoError(t, a.RemovePeer("master"))
		_, has = a.Peer("master")
		require.False(t, has)
		require.Len(t, a.Peers(), 2)
		<-p.Closed()

		require.ErrorIs(t, a.RemovePeer("master"), ErrNoPeer)
	})

	t.Run("attributes expose the id over metadata", func(t *testing.T) {
		p, err := a.AddPeer("spoof", &nopLink{}, Meta{"id": "someone-else", "zone": "eu"})
		require.NoError(t, err)
		require.Equal(t, map[string]any{"id": "spoof", "zone": "eu"}, p.Attributes())
	})
}

func TestFailingLinkRemovesPeer(t *testing.T) {
	a := newTestBus(t, "a", nil)
	b := newTestBus(t, "b", nil)
	chain(t, a, b)

	require.NoError(t, b.RemovePeer("a"))
	require.Eventually(t, func() bool {
		_, has := a.Peer("b")
		return !has
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnvelopeHandling(t *testing.T) {
	var served atomic.Int32
	handler := func(ctx context.Context, req *Request, env *Envelope) (*Response, error) {
		served.Add(1)
		return &Response{StatusCode: http.StatusOK}, nil
	}

	b := newTestBus(t, "b", handler)
	local, remote := Pipe(8)
	defer remote.Close()
	_, err := b.AddPeer("x", local, nil)
	require.NoError(t, err)

	request := func(id string, path ...string) *Envelope {
		return newRequestEnvelope(id, "x", path, &Request{Host: path[len(path)-1], Pathname: "/wire"})
	}
	expectNothing := func(t *testing.T) {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err := remote.Recv(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	t.Run("destination replies along the reverse path", func(t *testing.T) {
		require.NoError(t, remote.Send(context.Background(), request("wire-1", "x", "b")))

		reply, err := remote.Recv(testContext(t, time.Second))
		require.NoError(t, err)
		require.Equal(t, "wire-1->reply", reply.ID)
		require.Equal(t, "wire-1", reply.InReplyTo)
		require.Equal(t, []string{"b", "x"}, reply.Path)
		require.Equal(t, "b", reply.From)
		require.Equal(t, "x", reply.To)
		require.Equal(t, SubjectResponse, reply.Subject)
		require.Equal(t, http.StatusOK, reply.Message.Response.StatusCode)
	})

	t.Run("duplicates are dropped", func(t *testing.T) {
		before := served.Load()
		require.NoError(t, remote.Send(context.Background(), request("wire-1", "x", "b")))
		expectNothing(t)
		require.Equal(t, before, served.Load())
	})

	t.Run("envelopes not naming us are dropped", func(t *testing.T) {
		require.NoError(t, remote.Send(context.Background(), request("wire-2", "x", "y")))
		expectNothing(t)
	})

	t.Run("envelopes with a looping path are dropped", func(t *testing.T) {
		require.NoError(t, remote.Send(context.Background(), request("wire-3", "x", "b", "x", "b")))
		expectNothing(t)
	})

	t.Run("responses without correlation are dropped", func(t *testing.T) {
		res := newReplyEnvelope("x", request("wire-4", "b", "x"), []string{"x", "b"}, &Response{StatusCode: 200})
		res.InReplyTo = ""
		require.NoError(t, remote.Send(context.Background(), res))

		res = newReplyEnvelope("x", request("wire-5", "b", "x"), []string{"x", "b"}, &Response{StatusCode: 200})
		require.NoError(t, remote.Send(context.Background(), res))
		expectNothing(t)
	})

	t.Run("a request we relay to an unknown hop is answered with 502", func(t *testing.T) {
		require.NoError(t, remote.Send(context.Background(), request("wire-6", "x", "b", "z")))

		reply, err := remote.Recv(testContext(t, time.Second))
		require.NoError(t, err)
		require.Equal(t, "wire-6", reply.InReplyTo)
		require.Equal(t, []string{"b", "x"}, reply.Path)
		require.Equal(t, http.StatusBadGateway, reply.Message.Response.StatusCode)
	})

	t.Run("a path starting with us is relayed, not served", func(t *testing.T) {
		localY, remoteY := Pipe(8)
		defer remoteY.Close()
		_, err := b.AddPeer("y", localY, nil)
		require.NoError(t, err)
		defer b.RemovePeer("y")

		before := served.Load()
		require.NoError(t, remote.Send(context.Background(), request("wire-7", "b", "y")))

		relayed, err := remoteY.Recv(testContext(t, time.Second))
		require.NoError(t, err)
		require.Equal(t, "wire-7", relayed.ID)
		require.Equal(t, []string{"b", "y"}, relayed.Path)
		require.Equal(t, SubjectRequest, relayed.Subject)
		require.Equal(t, before, served.Load())
		expectNothing(t)
	})
}

// nopLink never delivers anything.
type nopLink struct {
	once   sync.Once
	closed chan struct{}
	lk     sync.Mutex
}

func (l *nopLink) done() chan struct{} {
	l.lk.Lock()
	defer l.lk.Unlock()
	if l.closed == nil {
		l.closed = make(chan struct{})
	}
	return l.closed
}

func (l *nopLink) Send(ctx context.Context, env *Envelope) error {
	return nil
}

func (l *nopLink) Recv(ctx context.Context) (*Envelope, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done():
		return nil, ErrPeerRemoved
	}
}

func (l *nopLink) Close() error {
	l.once.Do(func() {
		close(l.done())
	})
	return nil
}
