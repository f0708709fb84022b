package subway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	leg_metrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-metrics"
	"github.com/hashicorp/memberlist"
)

// DiscoveryConfig configures cluster membership.
type DiscoveryConfig struct {
	// BindAddr and BindPort are where the gossip protocol listens.
	BindAddr string
	BindPort int

	// AdvertiseHost is advertised, with the port of the QUIC transport,
	// for other nodes to dial us when the transport listens on all
	// interfaces. Defaults to BindAddr.
	AdvertiseHost string

	// Neighbours are tried initially to join the cluster.
	Neighbours []string

	// LeaveTimeout bounds the leave broadcast on Shutdown.
	LeaveTimeout time.Duration

	// MetricsLabels to add to every metrics emitted by the gossip layer.
	MetricLabels []metrics.Label

	// LogHandler to use for emitting structured logs.
	LogHandler slog.Handler
}

// nodeMeta is gossiped with each member.
type nodeMeta struct {
	Addr string `json:"addr"`
	Meta Meta   `json:"meta,omitempty"`
}

// Discovery uses gossip to find the other nodes of the cluster and links
// them to the bus with the QUIC transport. Of two nodes, the one with the
// smaller id dials, so each pair ends up with a single link.
type Discovery struct {
	bus    *Bus
	tr     *Transport
	cfg    DiscoveryConfig
	logger *slog.Logger
	ml     *memberlist.Memberlist
	meta   []byte

	// synchronisation
	lk       sync.Mutex
	shutdown bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewDiscovery(bus *Bus, tr *Transport, cfg DiscoveryConfig) (*Discovery, error) {
	if bus == nil || tr == nil {
		return nil, fmt.Errorf("%w: discovery needs a bus and a transport", ErrInvalidCfg)
	}

	d := &Discovery{
		bus: bus,
		tr:  tr,
		cfg: cfg,
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	if cfg.LogHandler != nil {
		d.logger = slog.New(cfg.LogHandler)
	} else {
		d.logger = bus.Logger()
	}
	d.logger = d.logger.With("component", "discovery")

	advertise, err := tr.AdvertiseAddr(cfg.AdvertiseHost)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCfg, err)
	}
	if host, port, _ := net.SplitHostPort(advertise); net.ParseIP(host).IsUnspecified() && cfg.BindAddr != "" {
		advertise = net.JoinHostPort(cfg.BindAddr, port)
	}

	d.meta, err = json.Marshal(nodeMeta{Addr: advertise, Meta: bus.Meta()})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCfg, err)
	}
	if len(d.meta) > memberlist.MetaMaxSize {
		return nil, fmt.Errorf(
			"%w: node metadata takes %d bytes, gossip allows %d",
			ErrInvalidCfg, len(d.meta), memberlist.MetaMaxSize,
		)
	}

	mlCfg := memberlist.DefaultLANConfig()
	mlCfg.Name = bus.ID()
	if cfg.BindAddr != "" {
		mlCfg.BindAddr = cfg.BindAddr
	}
	mlCfg.BindPort = cfg.BindPort
	mlCfg.AdvertisePort = cfg.BindPort
	mlCfg.ProbeTimeout = 2 * time.Second
	mlCfg.Events = &gossip{d: d}
	mlCfg.Delegate = &gossip{d: d}

	handler := cfg.LogHandler
	if handler == nil {
		handler = bus.Logger().Handler()
	}
	mlCfg.Logger = slog.NewLogLogger(handler, slog.LevelDebug)

	// memberlist still takes armon/go-metrics labels.
	labels := append(append([]metrics.Label{}, cfg.MetricLabels...), LabelNode.M(bus.ID()))
	mlCfg.MetricLabels = make([]leg_metrics.Label, len(labels))
	for i, label := range labels {
		mlCfg.MetricLabels[i] = leg_metrics.Label{
			Name:  label.Name,
			Value: label.Value,
		}
	}

	ml, err := memberlist.Create(mlCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCfg, err)
	}
	d.ml = ml
	return d, nil
}

// Join contacts the configured neighbours.
func (d *Discovery) Join() error {
	d.lk.Lock()
	defer d.lk.Unlock()
	if d.shutdown {
		return ErrShutdown
	}
	if len(d.cfg.Neighbours) == 0 {
		return nil
	}

	joined, err := d.ml.Join(d.cfg.Neighbours)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	d.logger.Info("cluster joined")
	if len(d.cfg.Neighbours) != joined {
		d.logger.Warn(
			"not all neighbours are reachable",
			"joined", joined,
			"expected", len(d.cfg.Neighbours),
		)
	}
	return nil
}

// Members returns the nodes currently alive in the cluster.
func (d *Discovery) Members() []*memberlist.Node {
	return d.ml.Members()
}

// Addr returns the gossip address, for other nodes to join us.
func (d *Discovery) Addr() string {
	node := d.ml.LocalNode()
	return net.JoinHostPort(node.Addr.String(), strconv.Itoa(int(node.Port)))
}

// Shutdown leaves the cluster. Links already established are left to the
// bus and the transport.
func (d *Discovery) Shutdown() error {
	d.lk.Lock()
	if d.shutdown {
		d.lk.Unlock()
		return nil
	}
	d.shutdown = true
	d.lk.Unlock()

	timeout := d.cfg.LeaveTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	d.logger.Info("shutdown: leave cluster")
	errLeave := d.ml.Leave(timeout)
	d.cancel()
	errShutdown := d.ml.Shutdown()
	d.wg.Wait()
	return errors.Join(errLeave, errShutdown)
}

func (d *Discovery) link(node *memberlist.Node) {
	logger := withLogNode(d.logger, node)
	if node.Name <= d.bus.ID() {
		// they dial us.
		return
	}
	if _, has := d.bus.Peer(node.Name); has {
		return
	}

	var meta nodeMeta
	if err := json.Unmarshal(node.Meta, &meta); err != nil || meta.Addr == "" {
		logger.Warn("member advertised no usable address", LabelError.L(err))
		return
	}

	d.lk.Lock()
	if d.shutdown {
		d.lk.Unlock()
		return
	}
	d.wg.Add(1)
	d.lk.Unlock()

	go func() {
		defer d.wg.Done()
		if _, err := d.tr.Dial(d.ctx, meta.Addr); err != nil && !errors.Is(err, ErrPeerExists) {
			logger.Warn("failed to link discovered member", LabelPeerAddr.L(meta.Addr), LabelError.L(err))
		}
	}()
}

func (d *Discovery) unlink(node *memberlist.Node) {
	if _, has := d.bus.Peer(node.Name); !has {
		return
	}
	if err := d.bus.RemovePeer(node.Name); err != nil {
		withLogNode(d.logger, node).Debug("member already unlinked", LabelError.L(err))
	}
}

func withLogNode(logger *slog.Logger, node *memberlist.Node) *slog.Logger {
	return logger.With(
		LabelPeer.L(node.Name),
		LabelPeerAddr.L(node.Address()),
	)
}

// gossip reacts to membership changes and advertises our metadata.
type gossip struct {
	d *Discovery
}

func (g *gossip) NotifyJoin(node *memberlist.Node) {
	withLogNode(g.d.logger, node).Info("peer joined cluster")
	g.d.link(node)
}

func (g *gossip) NotifyLeave(node *memberlist.Node) {
	withLogNode(g.d.logger, node).Info("peer left cluster")
	g.d.unlink(node)
}

func (g *gossip) NotifyUpdate(node *memberlist.Node) {
	withLogNode(g.d.logger, node).Info("peer updated")
	g.d.link(node)
}

func (g *gossip) NodeMeta(limit int) []byte {
	if len(g.d.meta) > limit {
		g.d.logger.Error("node metadata exceeds the gossip limit", "limit", limit)
		return nil
	}
	return g.d.meta
}

func (g *gossip) NotifyMsg([]byte) {}

func (g *gossip) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

func (g *gossip) LocalState(join bool) []byte {
	return nil
}

func (g *gossip) MergeRemoteState(buf []byte, join bool) {}
