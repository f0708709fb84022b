package main

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/raskyld/subway"
)

// duration decodes TOML strings such as "5s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type fileConfig struct {
	ID          string      `toml:"id"`
	LogLevel    string      `toml:"log_level"`
	Meta        subway.Meta `toml:"meta"`
	CallTimeout duration    `toml:"call_timeout"`
	DedupWindow *int        `toml:"dedup_window"`
	ErrorReply  *bool       `toml:"error_replies"`

	Quic      quicConfig      `toml:"quic"`
	WebSocket webSocketConfig `toml:"websocket"`
	Discovery discoveryConfig `toml:"discovery"`
	Heartbeat heartbeatConfig `toml:"heartbeat"`
	Admin     adminConfig     `toml:"admin"`
	Peers     []peerConfig    `toml:"peers"`
}

type quicConfig struct {
	Enabled      bool   `toml:"enabled"`
	BindAddr     string `toml:"bind_addr"`
	BindPort     int    `toml:"bind_port"`
	CertFile     string `toml:"cert_file"`
	KeyFile      string `toml:"key_file"`
	CAFile       string `toml:"ca_file"`
	MaxFrameSize uint64 `toml:"max_frame_size"`
	BufferSize   int    `toml:"buffer_size"`
}

type webSocketConfig struct {
	Listen string `toml:"listen"`
	Path   string `toml:"path"`
}

type discoveryConfig struct {
	Enabled       bool     `toml:"enabled"`
	BindAddr      string   `toml:"bind_addr"`
	BindPort      int      `toml:"bind_port"`
	AdvertiseHost string   `toml:"advertise_host"`
	Neighbours    []string `toml:"neighbours"`
}

type heartbeatConfig struct {
	Interval duration `toml:"interval"`
	Filter   string   `toml:"filter"`
}

type adminConfig struct {
	Listen string `toml:"listen"`
}

// peerConfig is a neighbour dialed at startup, over QUIC with `addr` or
// over WebSocket with `url`.
type peerConfig struct {
	Addr string `toml:"addr"`
	URL  string `toml:"url"`
}

func defaultConfig() fileConfig {
	return fileConfig{
		LogLevel: "info",
		WebSocket: webSocketConfig{
			Path: "/subway",
		},
		Heartbeat: heartbeatConfig{
			Interval: duration{subway.DefaultHeartbeatInterval},
		},
	}
}

func loadConfig(path string) (fileConfig, error) {
	cfg := defaultConfig()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("load config: unknown keys %v", undecoded)
	}

	cfg.ID = strings.TrimSpace(cfg.ID)
	if cfg.ID == "" {
		host, err := os.Hostname()
		if err != nil {
			return fileConfig{}, fmt.Errorf("load config: no id and no hostname: %w", err)
		}
		cfg.ID = strings.ReplaceAll(host, ".", "-")
	}
	if !subway.ValidateID(cfg.ID) {
		return fileConfig{}, fmt.Errorf("load config: %w: %q", subway.ErrInvalidID, cfg.ID)
	}

	if !meta.IsDefined("quic", "enabled") {
		cfg.Quic.Enabled = meta.IsDefined("quic")
	}
	if !meta.IsDefined("discovery", "enabled") {
		cfg.Discovery.Enabled = meta.IsDefined("discovery")
	}
	if cfg.Discovery.Enabled && !cfg.Quic.Enabled {
		return fileConfig{}, errors.New("load config: discovery links nodes over QUIC, enable [quic]")
	}
	for i, peer := range cfg.Peers {
		switch {
		case peer.Addr != "" && peer.URL != "":
			return fileConfig{}, fmt.Errorf("load config: peers[%d]: set either addr or url", i)
		case peer.Addr == "" && peer.URL == "":
			return fileConfig{}, fmt.Errorf("load config: peers[%d]: addr or url is required", i)
		case peer.Addr != "" && !cfg.Quic.Enabled:
			return fileConfig{}, fmt.Errorf("load config: peers[%d]: dialing %s needs [quic]", i, peer.Addr)
		}
	}
	if cfg.Heartbeat.Filter != "" {
		if _, err := subway.Expr(cfg.Heartbeat.Filter); err != nil {
			return fileConfig{}, fmt.Errorf("load config: heartbeat filter: %w", err)
		}
	}

	return cfg, nil
}

func (cfg *fileConfig) logLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return level, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

func (cfg *fileConfig) busOptions() []subway.Option {
	opts := []subway.Option{
		subway.WithMeta(cfg.Meta),
	}
	if cfg.CallTimeout.Duration > 0 {
		opts = append(opts, subway.WithCallTimeout(cfg.CallTimeout.Duration))
	}
	if cfg.DedupWindow != nil {
		opts = append(opts, subway.WithDedupWindow(*cfg.DedupWindow))
	}
	if cfg.ErrorReply != nil {
		opts = append(opts, subway.WithErrorReplies(*cfg.ErrorReply))
	}
	return opts
}

// tlsConfig loads the mTLS material of the QUIC transport.
func (q *quicConfig) tlsConfig() (*tls.Config, error) {
	if q.CertFile == "" || q.KeyFile == "" || q.CAFile == "" {
		return nil, errors.New("quic: cert_file, key_file and ca_file are required")
	}

	cert, err := tls.LoadX509KeyPair(q.CertFile, q.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("quic: %w", err)
	}

	caPEM, err := os.ReadFile(q.CAFile)
	if err != nil {
		return nil, fmt.Errorf("quic: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("quic: no certificate found in %s", q.CAFile)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}
