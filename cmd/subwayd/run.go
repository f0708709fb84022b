package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raskyld/subway"
	"github.com/raskyld/subway/internal/admin"
	"github.com/urfave/cli/v2"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start a node from its configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path of the TOML configuration",
				EnvVars:  []string{"SUBWAY_CONFIG"},
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
}

// node holds everything a running daemon must shut down.
type node struct {
	bus       *subway.Bus
	transport *subway.Transport
	discovery *subway.Discovery
	servers   []*http.Server
	stopBeats func()
	logger    *slog.Logger
}

func run(ctx context.Context, cfg fileConfig) error {
	level, err := cfg.logLevel()
	if err != nil {
		return err
	}
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(logHandler).With("node", cfg.ID)

	sink, err := prometheus.NewPrometheusSink()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	board := newCheckoutBoard()
	mux := subway.NewMux()
	mux.HandlePing(func(ctx context.Context, ping subway.Ping) {
		logger.Debug("ping received", "from", ping.PeerID)
	})
	board.register(mux)

	opts := append(cfg.busOptions(),
		subway.WithLog(logHandler),
		subway.WithMetricSink(sink),
		subway.WithMetricLabels([]metrics.Label{{Name: "service", Value: "subwayd"}}),
	)
	bus, err := subway.New(cfg.ID, mux.Serve, opts...)
	if err != nil {
		return err
	}

	n := &node{bus: bus, logger: logger}
	defer n.shutdown()

	if err := n.startQuic(cfg, logHandler, sink); err != nil {
		return err
	}
	if err := n.startDiscovery(cfg, logHandler); err != nil {
		return err
	}
	if cfg.WebSocket.Listen != "" {
		wsMux := http.NewServeMux()
		wsMux.Handle(cfg.WebSocket.Path, subway.NewWebSocketServer(bus))
		if err := n.serve(cfg.WebSocket.Listen, wsMux, "websocket"); err != nil {
			return err
		}
	}
	if cfg.Admin.Listen != "" {
		srv := admin.New(bus, admin.WithMetricsHandler(promhttp.Handler()))
		if err := n.serve(cfg.Admin.Listen, srv, "admin"); err != nil {
			return err
		}
	}

	n.dialPeers(ctx, cfg.Peers)

	filter, err := heartbeatFilter(cfg.Heartbeat.Filter)
	if err != nil {
		return err
	}
	n.stopBeats = bus.SetHeartbeats(filter, cfg.Heartbeat.Interval.Duration)

	logger.Info("node started")
	select {
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
	case <-bus.Done():
	}
	return nil
}

func (n *node) startQuic(cfg fileConfig, logHandler slog.Handler, sink metrics.MetricSink) error {
	if !cfg.Quic.Enabled {
		return nil
	}
	tlsConf, err := cfg.Quic.tlsConfig()
	if err != nil {
		return err
	}
	n.transport, err = subway.NewTransport(n.bus, &subway.TransportConfig{
		TlsConfig:    tlsConf,
		BindAddr:     cfg.Quic.BindAddr,
		BindPort:     cfg.Quic.BindPort,
		BufferSize:   cfg.Quic.BufferSize,
		MaxFrameSize: cfg.Quic.MaxFrameSize,
		MetricSink:   sink,
		LogHandler:   logHandler,
	})
	if err != nil {
		return err
	}
	addr, _ := n.transport.AdvertiseAddr("")
	n.logger.Info("quic transport listening", "addr", addr)
	return nil
}

func (n *node) startDiscovery(cfg fileConfig, logHandler slog.Handler) error {
	if !cfg.Discovery.Enabled {
		return nil
	}
	var err error
	n.discovery, err = subway.NewDiscovery(n.bus, n.transport, subway.DiscoveryConfig{
		BindAddr:      cfg.Discovery.BindAddr,
		BindPort:      cfg.Discovery.BindPort,
		AdvertiseHost: cfg.Discovery.AdvertiseHost,
		Neighbours:    cfg.Discovery.Neighbours,
		LogHandler:    logHandler,
	})
	if err != nil {
		return err
	}
	if err := n.discovery.Join(); err != nil {
		// the neighbours may join us later.
		n.logger.Warn("could not join the cluster", "error", err)
	}
	return nil
}

func (n *node) serve(addr string, handler http.Handler, name string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	n.servers = append(n.servers, srv)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("http server failed", "server", name, "error", err)
		}
	}()
	n.logger.Info("http server listening", "server", name, "addr", ln.Addr().String())
	return nil
}

// dialPeers links the static neighbours. Failures are logged: the other
// end can still dial us.
func (n *node) dialPeers(ctx context.Context, peers []peerConfig) {
	var wg sync.WaitGroup
	for _, peer := range peers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			var (
				p   *subway.Peer
				err error
			)
			target := peer.Addr
			if peer.URL != "" {
				target = peer.URL
				p, err = subway.DialWebSocket(dialCtx, n.bus, peer.URL)
			} else {
				p, err = n.transport.Dial(dialCtx, peer.Addr)
			}
			if err != nil {
				n.logger.Warn("failed to dial peer", "target", target, "error", err)
				return
			}
			n.logger.Info("peer dialed", "target", target, "peer", p.ID())
		}()
	}
	wg.Wait()
}

func heartbeatFilter(expression string) (func(*subway.Peer) bool, error) {
	if expression == "" {
		return nil, nil
	}
	query, err := subway.Expr(expression)
	if err != nil {
		return nil, err
	}
	return func(p *subway.Peer) bool {
		ok, _ := query.Match(p.Attributes())
		return ok
	}, nil
}

func (n *node) shutdown() {
	if n.stopBeats != nil {
		n.stopBeats()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range n.servers {
		_ = srv.Shutdown(ctx)
	}

	if n.discovery != nil {
		if err := n.discovery.Shutdown(); err != nil {
			n.logger.Warn("discovery shutdown failed", "error", err)
		}
	}
	if err := n.bus.Close(); err != nil {
		n.logger.Warn("bus shutdown failed", "error", err)
	}
	if n.transport != nil {
		if err := n.transport.Shutdown(); err != nil {
			n.logger.Warn("transport shutdown failed", "error", err)
		}
	}
}
