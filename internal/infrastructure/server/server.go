package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	apihttp "github.com/GriffinCanCode/termstream/internal/api/http"
	"github.com/GriffinCanCode/termstream/internal/api/middleware"
	"github.com/GriffinCanCode/termstream/internal/api/ws"
	"github.com/GriffinCanCode/termstream/internal/domain/session"
	"github.com/GriffinCanCode/termstream/internal/domain/terminal"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/config"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/tracing"
)

// Server wires the streaming service together: backend selection, the
// session registry, and the HTTP/WebSocket surfaces.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	registry   *session.Registry
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	logger.Info("Initializing termstream server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("strategy", cfg.Terminal.Strategy),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	// Initialize distributed tracing
	tracer := tracing.New("termstream", logger.Logger)

	// Backend selection. An unavailable pty backend falls back to the
	// subprocess path at spawn time; only a malformed strategy is fatal.
	selector, err := terminal.NewSelector(terminal.Config{
		Strategy:    cfg.Terminal.Strategy,
		Shell:       cfg.Terminal.Shell,
		DefaultCols: cfg.Terminal.DefaultCols,
		DefaultRows: cfg.Terminal.DefaultRows,
	}, logger)
	if err != nil {
		return nil, err
	}

	registry := session.NewRegistry(selector, logger).WithMetrics(metrics)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.WS.AllowedOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Create handlers
	handlers := apihttp.NewHandlers(registry, logger)
	wsHandler := ws.NewHandler(registry, cfg.WS, logger).WithMetrics(metrics)
	aggregator := apihttp.NewMetricsAggregator(metrics)

	// Service and session endpoints
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/terminals", handlers.ListTerminals)
	router.GET("/terminals/:id", handlers.GetTerminal)

	// WebSocket transport
	router.GET("/ws", wsHandler.HandleConnection)

	// Frontend log ingestion, capped by one shared bucket so a chatty
	// client cannot flood the log stream.
	if cfg.RateLimit.Enabled {
		router.POST("/logs", middleware.GlobalRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}), handlers.StreamLogs)
	} else {
		router.POST("/logs", handlers.StreamLogs)
	}

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/metrics/json", aggregator.GetJSON)
	router.GET("/metrics/dashboard", aggregator.Dashboard)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		httpServer: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		registry: registry,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Run starts the HTTP server and blocks until Shutdown closes it. The
// listener caps concurrent connections at the configured limit.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, s.config.Server.MaxConnections)

	s.logger.Info("Starting HTTP server",
		zap.String("addr", addr),
		zap.Int("max_connections", s.config.Server.MaxConnections),
	)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight HTTP requests, kills every live session so
// exit notifications reach attached clients, then snaps any remaining
// WebSocket connections. Hijacked connections are not tracked by the
// HTTP server's own drain, so the final Close is what ends them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.httpServer.Shutdown(ctx)
	s.registry.Shutdown()
	if cerr := s.httpServer.Close(); err == nil {
		err = cerr
	}

	s.logger.Sync()
	return err
}

// Registry exposes the session registry for in-process clients.
func (s *Server) Registry() *session.Registry {
	return s.registry
}
