// Package server exposes the invocation gateway over HTTP using gin.
//
// Routes:
//
//	POST    /invocations    invoke the agent runtime (gateway.Handle)
//	OPTIONS /invocations    CORS preflight
//	POST    /memory/search  authenticated long-term memory search
//	GET     /healthz        liveness
//	GET     /readyz         readiness report, 503 when not ready
//	GET     /metrics        Prometheus exposition
//
// /memory/search is registered only when a memory searcher is configured.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
	"github.com/StricklySoft/agentgate/pkg/gateway"
	"github.com/StricklySoft/agentgate/pkg/lifecycle"
	"github.com/StricklySoft/agentgate/pkg/memory"
)

var ginModeOnce sync.Once

// Route paths.
const (
	PathInvocations  = "/invocations"
	PathMemorySearch = "/memory/search"
	PathHealth       = "/healthz"
	PathReady        = "/readyz"
	PathMetrics      = "/metrics"
)

// Server is the gateway's HTTP front end.
type Server struct {
	cfg        Config
	engine     *gin.Engine
	httpServer *http.Server
	gateway    *gateway.InvocationGateway
	validator  gateway.Validator
	memory     memory.Searcher
	service    *lifecycle.Service
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

// Option customizes a [Server].
type Option func(*Server)

// WithMemory enables /memory/search backed by searcher.
func WithMemory(searcher memory.Searcher) Option {
	return func(s *Server) { s.memory = searcher }
}

// WithService reports liveness and readiness from svc. Without it the
// probes always answer 200.
func WithService(svc *lifecycle.Service) Option {
	return func(s *Server) { s.service = svc }
}

// WithGatherer serves g at /metrics. Defaults to [prometheus.DefaultGatherer].
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the server and its routes. validator authenticates
// /memory/search; the gateway authenticates invocations itself.
func New(cfg Config, gw *gateway.InvocationGateway, validator gateway.Validator, opts ...Option) (*Server, error) {
	if gw == nil || validator == nil {
		return nil, sserr.New(sserr.CodeInternalConfiguration, "server: gateway and validator are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		cfg:       cfg,
		gateway:   gw,
		validator: validator,
		gatherer:  prometheus.DefaultGatherer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(requestID(), accessLog(s.logger), recovery(s.logger))
	s.routes()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes() {
	s.engine.POST(PathInvocations, s.handleInvoke)
	s.engine.OPTIONS(PathInvocations, s.handlePreflight)
	s.engine.GET(PathHealth, s.handleHealth)
	s.engine.GET(PathReady, s.handleReady)
	s.engine.GET(PathMetrics, gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	if s.memory != nil {
		s.engine.POST(PathMemorySearch, authenticate(s.validator, s.logger), s.handleMemorySearch)
		s.engine.OPTIONS(PathMemorySearch, s.handlePreflight)
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.cfg.Address
}

// Serve accepts connections on ln until [Server.Shutdown] is called. It
// returns nil after a graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server: listening",
		"address", ln.Addr().String(),
		"read_timeout", s.cfg.ReadTimeout.String(),
		"write_timeout", s.cfg.WriteTimeout.String(),
	)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return sserr.Wrap(err, sserr.CodeInternal, "server: serve failed")
	}
	return nil
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration, "server: listen on %s", s.cfg.Address)
	}
	return s.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by ctx and the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.InfoContext(ctx, "server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return sserr.Wrap(err, sserr.CodeTimeout, "server: graceful shutdown did not finish")
	}
	return nil
}

// handleInvoke reads the body under the size cap and hands any read
// failure to the gateway, which reports it only after authentication.
func (s *Server) handleInvoke(c *gin.Context) {
	req := &gateway.Request{Headers: c.Request.Header}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxRequestBodySize))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		req.BodyErr = sserr.Wrap(err, sserr.CodeValidationRange, "Request body too large")
	case err != nil:
		req.BodyErr = sserr.Wrap(err, sserr.CodeValidation, "Request body could not be read")
	default:
		req.Body = body
	}
	writeResponse(c, s.gateway.Handle(c.Request.Context(), req))
}

func (s *Server) handlePreflight(c *gin.Context) {
	writeResponse(c, gateway.Preflight())
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.service != nil {
		if err := s.service.Live(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "failed", "state": s.service.State().String()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.service == nil {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	report := s.service.Ready(ctx)
	status := http.StatusOK
	if !report.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
