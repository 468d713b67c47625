// Package server wires the full service together: configuration,
// logging, metrics, the HTTP surface, and the websocket gateway.
package server

import (
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"

	api "github.com/AdamSaleh/runotebook/internal/api/http"
	"github.com/AdamSaleh/runotebook/internal/api/middleware"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/config"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/logging"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/monitoring"
	"github.com/AdamSaleh/runotebook/internal/ws"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	gateway *ws.Gateway
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	// Resolve the access token: explicit, persisted, or generated.
	if _, err := config.EnsureToken(cfg); err != nil {
		return nil, err
	}

	logger.Info("Initializing server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
	)

	metrics := monitoring.NewMetrics()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
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
	router.Use(middleware.Auth(cfg.Auth.Token))

	// Create handlers
	handlers := api.NewHandlers(cfg.Auth.Token, logger)
	gateway := ws.NewGateway(cfg, logger, metrics)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/api/auth/check", handlers.AuthCheck)
	router.POST("/api/console", handlers.Console)

	// Terminal sessions; each connection owns its own registry.
	router.GET("/ws", gateway.HandleConnection)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		gateway: gateway,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Token returns the resolved access token. Printed once at startup so
// a local user can connect without digging through the config file.
func (s *Server) Token() string {
	return s.config.Auth.Token
}

// Router exposes the gin engine, used by tests to drive the server
// without binding a port.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.logger.Sync()
	return nil
}
