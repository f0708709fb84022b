// Package admin exposes the state of a bus node over HTTP and lets
// operators issue requests from it.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raskyld/subway"
)

// Server is the admin API of one bus node.
type Server struct {
	bus      *subway.Bus
	router   *gin.Engine
	logger   *slog.Logger
	metrics  http.Handler
	started  time.Time
	maxWait  time.Duration
	basePath string
}

type Option func(*Server)

// WithMetricsHandler serves `handler` on `GET /metrics`, typically
// `promhttp.Handler()`.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = handler
	}
}

// WithMaxWait bounds the calls issued with `POST /call`.
func WithMaxWait(timeout time.Duration) Option {
	return func(s *Server) {
		s.maxWait = timeout
	}
}

// WithBasePath mounts every route under `path`.
func WithBasePath(path string) Option {
	return func(s *Server) {
		s.basePath = path
	}
}

func New(bus *subway.Bus, opts ...Option) *Server {
	s := &Server{
		bus:     bus,
		logger:  bus.Logger().With("component", "admin"),
		started: time.Now(),
		maxWait: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s.router = r
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() gin.IRoutes {
	if s.basePath == "" {
		return s.router
	}
	return s.router.Group(s.basePath)
}

func (s *Server) registerRoutes() {
	routes := s.routes()
	routes.GET("/healthz", s.health)
	routes.GET("/peers", s.peers)
	routes.GET("/pending", s.pending)
	routes.POST("/call", s.call)
	if s.metrics != nil {
		routes.GET("/metrics", gin.WrapH(s.metrics))
	}
}

func (s *Server) health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	select {
	case <-s.bus.Done():
		status, code = "closed", http.StatusServiceUnavailable
	default:
	}
	c.JSON(code, gin.H{
		"status": status,
		"id":     s.bus.ID(),
		"uptime": time.Since(s.started).String(),
		"peers":  len(s.bus.Peers()),
	})
}

// PeerInfo describes a neighbour.
type PeerInfo struct {
	ID      string      `json:"id"`
	Meta    subway.Meta `json:"meta,omitempty"`
	AddedAt time.Time   `json:"addedAt"`
}

func (s *Server) peers(c *gin.Context) {
	peers := s.bus.Peers()
	if prefix := c.Query("prefix"); prefix != "" {
		peers = peers[:0]
		for _, id := range s.bus.ScanPeers(prefix) {
			if p, has := s.bus.Peer(id); has {
				peers = append(peers, p)
			}
		}
	}

	infos := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		infos = append(infos, PeerInfo{
			ID:      p.ID(),
			Meta:    p.Meta(),
			AddedAt: p.AddedAt(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"peers": infos})
}

func (s *Server) pending(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pending": s.bus.Pending()})
}

// CallRequest is the body of `POST /call`. The destination is chosen,
// in order of precedence, by `Query`, by `Expr` or by `Host` and the
// optional dotted `Route`.
type CallRequest struct {
	Host     string          `json:"host,omitempty"`
	Route    string          `json:"route,omitempty"`
	Query    subway.Match    `json:"query"`
	Expr     string          `json:"expr,omitempty"`
	Method   string          `json:"method,omitempty"`
	Pathname string          `json:"pathname" binding:"required"`
	Body     json.RawMessage `json:"body,omitempty"`
	Timeout  string          `json:"timeout,omitempty"`
}

// CallResponse is the body of a successful `POST /call`.
type CallResponse struct {
	Body     any    `json:"body,omitempty"`
	Duration string `json:"duration"`
}

func (s *Server) call(c *gin.Context) {
	var in CallRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timeout := s.maxWait
	if in.Timeout != "" {
		d, err := time.ParseDuration(in.Timeout)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout " + in.Timeout})
			return
		}
		timeout = min(d, s.maxWait)
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	req := &subway.Request{
		Host:     in.Host,
		Method:   in.Method,
		Pathname: in.Pathname,
		Body:     in.Body,
	}

	start := time.Now()
	var (
		body json.RawMessage
		err  error
	)
	switch {
	case in.Query != nil:
		body, err = s.bus.Process(ctx, in.Query, req)
	case in.Expr != "":
		var query subway.Query
		query, err = subway.Expr(in.Expr)
		if err == nil {
			body, err = s.bus.Process(ctx, query, req)
		}
	case in.Route != "":
		route := subway.ParseRoute(in.Route)
		if req.Host == "" && len(route) > 0 {
			req.Host = route[len(route)-1]
		}
		body, err = s.bus.Request(ctx, req, in.Route)
	default:
		body, err = s.bus.Request(ctx, req)
	}

	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CallResponse{
		Body:     renderBody(body),
		Duration: time.Since(start).String(),
	})
}

// fail maps a call failure to an HTTP status.
func (s *Server) fail(c *gin.Context, err error) {
	var serr *subway.StatusError
	switch {
	case errors.As(err, &serr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"status": serr.StatusCode,
			"body":   renderBody(serr.Body),
		})
		return
	case errors.Is(err, subway.ErrNonUniquePeer):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, subway.ErrNoPeer):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case subway.IsTimeout(err):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, subway.ErrInvalidRequest),
		errors.Is(err, subway.ErrInvalidPath),
		errors.Is(err, subway.ErrQueryInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, subway.ErrBusClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.logger.Error("call failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// renderBody embeds JSON bodies as is and any other one as a string.
func renderBody(body []byte) any {
	switch {
	case len(body) == 0:
		return nil
	case json.Valid(body):
		return json.RawMessage(body)
	default:
		return string(body)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		level := slog.LevelDebug
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		logger.Log(c.Request.Context(), level, "http_request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		)
	}
}
