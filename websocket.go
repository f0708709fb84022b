package subway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketServer accepts links from remote nodes over WebSocket: an
// `http.Handler` to mount wherever fits.
//
// Each side first sends its hello as a JSON text message, then every
// envelope travels as one binary message.
type WebSocketServer struct {
	bus          *Bus
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	helloTimeout time.Duration
	maxFrameSize int64
}

func NewWebSocketServer(bus *Bus) *WebSocketServer {
	return &WebSocketServer{
		bus:    bus,
		logger: bus.Logger().With(LabelTransport.L("websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols:    []string{ProtocolVersion},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		helloTimeout: defaultDialTimeout,
		maxFrameSize: DefaultMaxFrameSize,
	}
}

func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied.
		ws.logger.Warn("websocket upgrade failed", LabelPeerAddr.L(r.RemoteAddr), LabelError.L(err))
		return
	}
	conn.SetReadLimit(ws.maxFrameSize)
	mLabels := append(ws.bus.metricLabels(), LabelTransport.M("websocket"), LabelPeerAddr.M(r.RemoteAddr))

	remote, err := readWebSocketHello(conn, ws.bus.ID(), ws.helloTimeout)
	if err == nil {
		err = writeWebSocketHello(conn, ws.bus.localHello(), ws.helloTimeout)
	}
	if err != nil {
		ws.logger.Warn("protocol violation: invalid hello", LabelPeerAddr.L(r.RemoteAddr), LabelError.L(err))
		ws.bus.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("hello")))
		closeWebSocket(conn, websocket.CloseProtocolError, err.Error())
		return
	}

	if _, err := ws.bus.AddPeer(remote.ID, newWebSocketLink(conn), remote.Meta); err != nil {
		ws.logger.Warn("failed to register peer", LabelPeer.L(remote.ID), LabelError.L(err))
		ws.bus.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("peer_conflict")))
		closeWebSocket(conn, websocket.ClosePolicyViolation, err.Error())
		return
	}
	ws.bus.msink.IncrCounterWithLabels(MetricConnEstCount, 1.0, append(mLabels, LabelPeer.M(remote.ID)))
}

// DialWebSocket connects to the `WebSocketServer` at `url` and registers
// the remote node as a peer of `bus`.
func DialWebSocket(ctx context.Context, bus *Bus, url string) (*Peer, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: defaultDialTimeout,
		Subprotocols:     []string{ProtocolVersion},
	}
	mLabels := append(bus.metricLabels(), LabelTransport.M("websocket"), LabelPeerAddr.M(url))

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		bus.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("dial")))
		return nil, err
	}
	conn.SetReadLimit(DefaultMaxFrameSize)

	timeout := defaultDialTimeout
	if dl, hasDl := ctx.Deadline(); hasDl {
		timeout = time.Until(dl)
	}

	err = writeWebSocketHello(conn, bus.localHello(), timeout)
	var remote *hello
	if err == nil {
		remote, err = readWebSocketHello(conn, bus.ID(), timeout)
	}
	if err != nil {
		bus.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("hello")))
		closeWebSocket(conn, websocket.CloseProtocolError, err.Error())
		return nil, err
	}

	p, err := bus.AddPeer(remote.ID, newWebSocketLink(conn), remote.Meta)
	if err != nil {
		bus.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("peer_conflict")))
		closeWebSocket(conn, websocket.ClosePolicyViolation, err.Error())
		return nil, err
	}
	bus.msink.IncrCounterWithLabels(MetricConnEstCount, 1.0, append(mLabels, LabelPeer.M(remote.ID)))
	return p, nil
}

func writeWebSocketHello(conn *websocket.Conn, local *hello, timeout time.Duration) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	defer conn.SetWriteDeadline(time.Time{})
	if err := conn.WriteJSON(local); err != nil {
		return fmt.Errorf("%w: %w", ErrHello, err)
	}
	return nil
}

func readWebSocketHello(conn *websocket.Conn, self string, timeout time.Duration) (*hello, error) {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})
	remote := &hello{}
	if err := conn.ReadJSON(remote); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHello, err)
	}
	if err := remote.check(self); err != nil {
		return nil, err
	}
	return remote, nil
}

func closeWebSocket(conn *websocket.Conn, code int, reason string) {
	if len(reason) > 120 {
		// control frames are limited to 125 bytes.
		reason = reason[:120]
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second),
	)
	_ = conn.Close()
}

// webSocketLink carries one envelope per binary message.
type webSocketLink struct {
	conn      *websocket.Conn
	writeLk   sync.Mutex
	closeOnce sync.Once
}

func newWebSocketLink(conn *websocket.Conn) *webSocketLink {
	return &webSocketLink{conn: conn}
}

func (l *webSocketLink) Send(ctx context.Context, env *Envelope) error {
	buf, err := env.MarshalBinary()
	if err != nil {
		return err
	}

	l.writeLk.Lock()
	defer l.writeLk.Unlock()
	deadline, _ := ctx.Deadline()
	_ = l.conn.SetWriteDeadline(deadline)
	return l.conn.WriteMessage(websocket.BinaryMessage, buf)
}

// Recv blocks until a message arrives or the connection fails: closing
// the link is the way to unblock it.
func (l *webSocketLink) Recv(_ context.Context) (*Envelope, error) {
	for {
		typ, buf, err := l.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ != websocket.BinaryMessage {
			continue
		}

		env := &Envelope{}
		if err := env.UnmarshalBinary(buf); err != nil {
			return nil, err
		}
		return env, nil
	}
}

func (l *webSocketLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		_ = l.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "link closed"),
			time.Now().Add(time.Second),
		)
		err = l.conn.Close()
	})
	return err
}
