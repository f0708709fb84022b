package subway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/quic-go/quic-go"
	"github.com/raskyld/subway/pkg/flow"
)

const defaultUDPBufferSize int = 1 << 21

const defaultDialTimeout = 10 * time.Second

// TransportConfig represents configuration for the QUIC transport.
type TransportConfig struct {
	// BufferSize of the requested UDP kernel buffer.
	BufferSize int

	// EnforceBufferSize crashes if the kernel doesn't allocate what we asked.
	// If that's false, we retry and divide by 2 the requested
	// `TransportConfig.BufferSize` until it fits or fails.
	EnforceBufferSize bool

	// TlsConfig should be configured to ensure mTLS is enabled between the
	// peers. When it has no `NextProtos`, `ProtocolVersion` is used.
	TlsConfig *tls.Config

	// BindAddr and BindPort are where we want to listen.
	// Port 0 lets the kernel pick one, see `Transport.Addr`.
	BindAddr string
	BindPort int

	// MaxFrameSize bounds envelopes read from remote peers.
	MaxFrameSize uint64

	// LinkBuffer is how many envelopes each link buffers per direction.
	LinkBuffer uint

	// MetricsLabels to add to every metrics emitted by the transport.
	MetricLabels []metrics.Label

	// MetricSink to use for emitting metrics.
	MetricSink metrics.MetricSink

	// DialTimeout bounds connection establishment and the hello exchange.
	DialTimeout time.Duration

	// LogHandler to use for emitting structured logs.
	LogHandler slog.Handler
}

// Transport links a `Bus` to remote nodes over QUIC. Each link is a single
// bidirectional stream of its own connection: the dialing side opens it
// and both sides start with a hello frame.
type Transport struct {
	cfg    *TransportConfig
	bus    *Bus
	logger *slog.Logger
	msink  metrics.MetricSink

	tlsConf  *tls.Config
	quicConf *quic.Config

	// graceful termination asked, do not spam of connection error in logs
	gracefulTerm atomic.Bool

	cxs   []quic.Connection
	cxsLk sync.Mutex
	wg    sync.WaitGroup

	// QUIC layer
	tr *quic.Transport
	ln *quic.Listener

	// UDP layer
	udpLn *net.UDPConn
}

func NewTransport(bus *Bus, cfg *TransportConfig) (t *Transport, err error) {
	if cfg.TlsConfig == nil {
		return nil, ErrNoTLSConfig
	}
	if bus == nil {
		return nil, fmt.Errorf("%w: nil bus", ErrInvalidCfg)
	}

	t = &Transport{
		cfg: cfg,
		bus: bus,
		quicConf: &quic.Config{
			Versions:        []quic.Version{quic.Version2, quic.Version1},
			Allow0RTT:       false,
			MaxIdleTimeout:  1 * time.Minute,
			KeepAlivePeriod: 15 * time.Second,
		},
	}

	if cfg.LogHandler == nil {
		t.logger = bus.Logger()
	} else {
		t.logger = slog.New(cfg.LogHandler)
	}
	t.logger = t.logger.With(LabelTransport.L("quic"))

	if cfg.MetricSink == nil {
		t.msink = metrics.Default()
	} else {
		t.msink = cfg.MetricSink
	}

	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.LinkBuffer == 0 {
		cfg.LinkBuffer = DefaultLinkBuffer
	}

	t.tlsConf = cfg.TlsConfig.Clone()
	if len(t.tlsConf.NextProtos) == 0 {
		t.tlsConf.NextProtos = []string{ProtocolVersion}
	}

	defer func() {
		if err != nil {
			t.Shutdown()
		}
	}()

	addr := net.ParseIP(cfg.BindAddr)
	if addr == nil {
		addr = net.IPv4zero
	}

	udpAddr := &net.UDPAddr{IP: addr, Port: cfg.BindPort}
	udpLn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to allocate UDP listener: %w", err)
	}
	t.udpLn = udpLn

	requested := cfg.BufferSize
	if requested == 0 {
		requested = defaultUDPBufferSize
	}

	if err := t.negociateBufferSize(requested); err != nil {
		return nil, err
	}

	t.tr = &quic.Transport{
		Conn: udpLn,
	}

	ln, err := t.tr.Listen(t.tlsConf, t.quicConf)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to allocate QUIC listener: %w", err)
	}
	t.ln = ln

	t.wg.Add(1)
	go t.acceptCx()
	return t, nil
}

// Addr returns the address the transport listens on.
func (t *Transport) Addr() (net.IP, int, error) {
	if t.udpLn == nil {
		return nil, 0, ErrUdpNotAvailable
	}

	local, ok := t.udpLn.LocalAddr().(*net.UDPAddr)
	if !ok {
		panic(fmt.Sprintf("go runtime produced invalid udp addr %s", t.udpLn.LocalAddr()))
	}

	ip := local.IP
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	return ip, local.Port, nil
}

// AdvertiseAddr returns `host:port` for remote nodes to dial us. When we
// listen on all interfaces, `fallback` is used as host.
func (t *Transport) AdvertiseAddr(fallback string) (string, error) {
	ip, port, err := t.Addr()
	if err != nil {
		return "", err
	}
	host := ip.String()
	if ip.IsUnspecified() && fallback != "" {
		host = fallback
	}
	return net.JoinHostPort(host, fmt.Sprint(port)), nil
}

// Dial connects to the node listening on `addr` and registers it as a
// peer of the bus.
func (t *Transport) Dial(ctx context.Context, addr string) (*Peer, error) {
	if t.gracefulTerm.Load() {
		return nil, ErrShutdown
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddr, err)
	}

	mLabels := append(t.metricLabels(), LabelPeerAddr.M(addr))
	ctx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer cancel()

	conn, err := t.tr.Dial(ctx, udpAddr, t.tlsConf, t.quicConf)
	if t.gracefulTerm.Load() {
		if conn != nil {
			QErrShutdown.Close(conn, "we are shutting down! bye!")
		}
		return nil, ErrShutdown
	}
	if err != nil {
		t.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("dial")))
		return nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		t.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("cannot_open_stream")))
		QErrInternal.Close(conn, "cannot open stream")
		return nil, err
	}

	// the dialing side speaks first: the stream only exists for the
	// remote once we wrote on it.
	if err := t.writeHello(stream); err != nil {
		t.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("hello")))
		QErrHello.Close(conn, err.Error())
		return nil, err
	}
	remote, err := t.readHello(stream)
	if err != nil {
		t.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("hello")))
		QErrHello.Close(conn, err.Error())
		return nil, err
	}

	return t.attach(conn, stream, remote)
}

func (t *Transport) acceptCx() {
	defer t.wg.Done()
	for {
		conn, err := t.ln.Accept(context.Background())
		if err != nil {
			if !t.gracefulTerm.Load() {
				t.logger.Warn("unexpected QUIC listener closure", LabelError.L(err))
			}
			return
		}

		t.wg.Add(1)
		go t.handleConn(conn)
	}
}

func (t *Transport) handleConn(conn quic.Connection) {
	defer t.wg.Done()
	peerAddr := conn.RemoteAddr().String()
	logger := t.logger.With(LabelPeerAddr.L(peerAddr))
	mLabels := append(t.metricLabels(), LabelPeerAddr.M(peerAddr))

	ctx, cancel := context.WithTimeout(conn.Context(), t.cfg.DialTimeout)
	defer cancel()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		logger.Warn("error accepting stream", LabelError.L(err))
		t.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("no_stream")))
		QErrHello.Close(conn, "no stream opened")
		return
	}

	remote, err := t.readHello(stream)
	if err != nil {
		logger.Warn("protocol violation: invalid hello", LabelError.L(err))
		stream.CancelRead(QErrStreamProtocolViolation)
		stream.CancelWrite(QErrStreamProtocolViolation)
		t.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("protocol_violation")))
		QErrHello.Close(conn, err.Error())
		return
	}

	if err := t.writeHello(stream); err != nil {
		logger.Warn("failed to answer hello", LabelError.L(err))
		t.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("hello")))
		QErrHello.Close(conn, err.Error())
		return
	}

	if _, err := t.attach(conn, stream, remote); err != nil {
		logger.Warn("failed to register peer", LabelPeer.L(remote.ID), LabelError.L(err))
	}
}

// attach registers the remote node of `conn` as a peer, the stream being
// its link.
func (t *Transport) attach(conn quic.Connection, stream quic.Stream, remote *hello) (*Peer, error) {
	peerAddr := conn.RemoteAddr().String()
	mLabels := append(t.metricLabels(), LabelPeerAddr.M(peerAddr), LabelPeer.M(remote.ID))

	codec := EnvelopeCodec(false, t.cfg.MaxFrameSize)
	link := &quicLink{
		Duplex: flow.NewDuplex[*Envelope](flow.NewRemote(stream), codec, codec, t.cfg.LinkBuffer),
		conn:   conn,
	}

	p, err := t.bus.AddPeer(remote.ID, link, remote.Meta)
	if err != nil {
		_ = link.Duplex.Close()
		t.msink.IncrCounterWithLabels(MetricConnErrorCount, 1.0, append(mLabels, LabelError.M("peer_conflict")))
		QErrPeerConflict.Close(conn, err.Error())
		return nil, err
	}

	t.cxsLk.Lock()
	t.cxs = append(t.garbageCollectCxs(), conn)
	t.cxsLk.Unlock()

	t.msink.IncrCounterWithLabels(MetricConnEstCount, 1.0, mLabels)
	t.logger.Debug("link established", LabelPeer.L(remote.ID), LabelPeerAddr.L(peerAddr))
	return p, nil
}

func (t *Transport) writeHello(stream quic.Stream) error {
	stream.SetWriteDeadline(time.Now().Add(t.cfg.DialTimeout))
	defer stream.SetWriteDeadline(time.Time{})
	if err := flow.NewJSONCodec[*hello](maxHelloSize).Encode(stream, t.bus.localHello()); err != nil {
		return fmt.Errorf("%w: %w", ErrHello, err)
	}
	return nil
}

func (t *Transport) readHello(stream io.Reader) (*hello, error) {
	if deadliner, ok := stream.(interface{ SetReadDeadline(time.Time) error }); ok {
		deadliner.SetReadDeadline(time.Now().Add(t.cfg.DialTimeout))
		defer deadliner.SetReadDeadline(time.Time{})
	}
	remote, err := flow.NewJSONCodec[*hello](maxHelloSize).DecodeOne(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHello, err)
	}
	if err := remote.check(t.bus.ID()); err != nil {
		return nil, err
	}
	return remote, nil
}

// not thread safe!
// must be called by an holder of cxsLk
func (t *Transport) garbageCollectCxs() []quic.Connection {
	return slices.DeleteFunc(t.cxs, func(cx quic.Connection) bool {
		return cx.Context().Err() != nil
	})
}

// Shutdown closes every connection of the transport and its listener. The
// matching peers are removed from the bus as their links fail.
func (t *Transport) Shutdown() error {
	if !t.gracefulTerm.CompareAndSwap(false, true) {
		// no-op because it was already shutdown
		return nil
	}

	var errs []error
	if t.ln != nil {
		errs = append(errs, t.ln.Close())
	}

	t.cxsLk.Lock()
	for _, cx := range t.garbageCollectCxs() {
		QErrShutdown.Close(cx, "we are shutting down! bye!")
	}
	t.cxs = nil
	t.cxsLk.Unlock()

	if t.tr != nil {
		errs = append(errs, t.tr.Close())
	}

	if t.udpLn != nil {
		if err := t.udpLn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}

	t.wg.Wait()
	return errors.Join(errs...)
}

func (t *Transport) negociateBufferSize(requested int) error {
	size := requested
	for size > 0 {
		if err := t.udpLn.SetReadBuffer(size); err != nil {
			if t.cfg.EnforceBufferSize {
				return ErrBufferSize
			}
			size = size >> 1
			continue
		}
		if size != requested {
			t.logger.Warn("using smaller than expected UDP buffer", "bytes", size)
		}
		t.msink.SetGaugeWithLabels(
			MetricUDPBufferSize,
			float32(size),
			t.metricLabels(),
		)
		return nil
	}
	return ErrBufferSize
}

func (t *Transport) metricLabels() []metrics.Label {
	labels := make([]metrics.Label, 0, len(t.cfg.MetricLabels)+2)
	labels = append(labels, t.cfg.MetricLabels...)
	return append(labels, LabelNode.M(t.bus.ID()), LabelTransport.M("quic"))
}

// quicLink closes its connection along with its stream.
type quicLink struct {
	*flow.Duplex[*Envelope]
	conn quic.Connection
}

func (l *quicLink) Close() error {
	err := l.Duplex.Close()
	_ = l.conn.CloseWithError(0, "link closed")
	return err
}
