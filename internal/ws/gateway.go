package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AdamSaleh/runotebook/internal/api/middleware"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/config"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/logging"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/monitoring"
	"github.com/AdamSaleh/runotebook/internal/pty"
	"github.com/AdamSaleh/runotebook/internal/session"
	"github.com/AdamSaleh/runotebook/internal/shared/id"
)

// State tracks where a connection is in its lifecycle.
type State int

const (
	// StatePending: socket open, not yet authenticated.
	StatePending State = iota
	// StateActive: authenticated, router bound.
	StateActive
	// StateClosed: terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Gateway authenticates inbound connection requests, upgrades them to
// WebSocket, and binds exactly one Router per connection for its
// lifetime. Each connection gets its own session registry, so sessions
// never leak across connections and never survive their own.
type Gateway struct {
	token    string
	ptyOpts  pty.Options
	terminal config.TerminalConfig
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader
}

// NewGateway creates a gateway gated by the given access token.
func NewGateway(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) *Gateway {
	return &Gateway{
		token: cfg.Auth.Token,
		ptyOpts: pty.Options{
			Shell:      cfg.Terminal.Shell,
			WorkingDir: cfg.Terminal.WorkingDir,
		},
		terminal: cfg.Terminal,
		logger:   logger,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The token gates access; origin checks would only
				// lock out the file:// and CLI clients.
				return true
			},
		},
	}
}

// HandleConnection serves one connection: Pending -> Active -> Closed.
// Authentication failure closes the channel without ever reaching
// Active, so no session traffic is possible for unauthenticated peers.
func (g *Gateway) HandleConnection(c *gin.Context) {
	state := StatePending

	presented := middleware.ExtractToken(c.Request)
	if !middleware.VerifyToken(presented, g.token) {
		if g.metrics != nil {
			g.metrics.AuthRejections.Inc()
		}
		g.logger.Warn("websocket auth rejected",
			zap.String("remote", c.ClientIP()),
			zap.Bool("token_present", presented != ""),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := id.NewConnectionID()
	logger := g.logger.With(zap.String("connection_id", connID.String()))

	state = StateActive
	logger.Info("connection active",
		zap.String("state", state.String()),
		zap.String("remote", c.ClientIP()),
	)
	if g.metrics != nil {
		g.metrics.WSConnections.Inc()
	}

	registry := session.NewRegistry(g.ptyOpts, logger)
	if g.metrics != nil {
		registry = registry.WithMetrics(g.metrics)
	}
	router := NewRouter(conn, registry, g.terminal.DefaultCols, g.terminal.DefaultRows, logger, g.metrics)
	router.Run()

	state = StateClosed
	conn.Close()
	if g.metrics != nil {
		g.metrics.WSConnections.Dec()
	}
	logger.Info("connection closed", zap.String("state", state.String()))
}
