package sse

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/reactkit/component"
	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/hotstream"
	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/observability"
	"github.com/kbukum/reactkit/resilience"
)

// Config configures the gateway.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// MaxClients caps concurrent event-stream clients.
	MaxClients int
	// FeedCapacity is the drop-oldest queue each published stream feeds.
	FeedCapacity int
	// ClientBuffer is the number of events buffered per client.
	ClientBuffer int
	// KeepAlive is the interval between keep-alive comments.
	KeepAlive time.Duration
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxClients <= 0 {
		c.MaxClients = 32
	}
	if c.FeedCapacity <= 0 {
		c.FeedCapacity = 64
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = DefaultClientBuffer
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Second
	}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l *logger.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithMetrics records request metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithHealth serves the health of registry on GET /health.
func WithHealth(service, version string, registry *component.Registry) Option {
	return func(g *Gateway) {
		g.service, g.version, g.registry = service, version, registry
	}
}

// Gateway exposes registered hot streams over HTTP: listing, status,
// pause, resume, stop and a server-sent event feed of their elements.
type Gateway struct {
	cfg      Config
	log      *logger.Logger
	metrics  *observability.Metrics
	hub      *Hub
	clients  *resilience.Bulkhead
	engine   *gin.Engine
	service  string
	version  string
	registry *component.Registry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	streams map[string]hotstream.Handle
	server  *http.Server
	addr    string
	running bool
}

var (
	_ component.Component     = (*Gateway)(nil)
	_ component.Describable   = (*Gateway)(nil)
	_ component.RouteProvider = (*Gateway)(nil)
)

// NewGateway builds the gateway and its routes. The hub runs from here on;
// the HTTP listener starts with Start.
func NewGateway(cfg Config, opts ...Option) *Gateway {
	cfg.ApplyDefaults()
	g := &Gateway{
		cfg:     cfg,
		service: "reactkit",
		streams: make(map[string]hotstream.Handle),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.GetGlobalLogger()
	}
	g.log = g.log.WithComponent("gateway")
	g.ctx, g.cancel = context.WithCancel(context.Background())
	g.hub = NewHub(g.log)
	g.clients = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "sse-clients",
		MaxConcurrent: cfg.MaxClients,
		OnReject: func(name string) {
			g.log.Warn("Event-stream client rejected", logger.Fields("bulkhead", name))
		},
	})

	gin.SetMode(gin.ReleaseMode)
	g.engine = gin.New()
	g.engine.Use(requestID(), recovery(g.log), requestLogger(g.log, g.metrics))
	g.routes()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.hub.Run()
	}()
	return g
}

// Handler returns the HTTP handler serving the gateway routes.
func (g *Gateway) Handler() http.Handler { return g.engine }

// Hub returns the event hub.
func (g *Gateway) Hub() *Hub { return g.hub }

// Register exposes h under its name without an event feed. Use Publish to
// add a feed.
func (g *Gateway) Register(h hotstream.Handle) error {
	if h == nil {
		return errors.InvalidArgument("stream", "must not be nil")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.streams[h.Name()]; exists {
		return errors.InvalidArgument("stream", fmt.Sprintf("%q is already registered", h.Name()))
	}
	g.streams[h.Name()] = h
	return nil
}

func (g *Gateway) lookup(name string) (hotstream.Handle, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.streams[name]
	if !ok {
		return nil, errors.NotFound("stream", name)
	}
	return h, nil
}

func (g *Gateway) list() []hotstream.Stats {
	g.mu.RLock()
	out := make([]hotstream.Stats, 0, len(g.streams))
	for _, h := range g.streams {
		out = append(out, h.Stats())
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// --- component.Component ---

// Name returns "gateway".
func (g *Gateway) Name() string { return "gateway" }

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return nil
	}
	ln, err := net.Listen("tcp", g.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen on %s: %w", g.cfg.Addr, err)
	}
	g.server = &http.Server{Handler: g.engine, ReadHeaderTimeout: 10 * time.Second}
	g.addr = ln.Addr().String()
	g.running = true

	srv := g.server
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.log.Error("Gateway server failed", logger.ErrorFields("serve", err))
		}
	}()
	g.log.Info("Gateway listening", logger.Fields("addr", g.addr))
	return nil
}

// Stop shuts the listener down, closes every event stream and waits for the
// feeds to exit.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	srv := g.server
	g.running = false
	g.mu.Unlock()

	// Event streams end when the hub closes their clients.
	g.hub.Stop()
	g.cancel()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// Health reports degraded once every client slot is taken.
func (g *Gateway) Health(_ context.Context) component.Health {
	h := component.Health{
		Name:    g.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d clients connected", g.hub.ClientCount()),
	}
	if g.clients.Available() == 0 {
		h.Status = component.StatusDegraded
	}
	return h
}

// Describe implements component.Describable.
func (g *Gateway) Describe() component.Description {
	g.mu.RLock()
	addr, streams := g.cfg.Addr, len(g.streams)
	if g.addr != "" {
		addr = g.addr
	}
	g.mu.RUnlock()

	port := 0
	if _, p, err := net.SplitHostPort(addr); err == nil {
		port, _ = strconv.Atoi(p)
	}
	return component.Description{
		Name:    "Stream gateway",
		Type:    "gateway",
		Details: fmt.Sprintf("streams=%d max_clients=%d", streams, g.cfg.MaxClients),
		Port:    port,
	}
}

// Addr returns the bound listen address once started.
func (g *Gateway) Addr() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.addr
}
