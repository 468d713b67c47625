// Package http contains the plain HTTP handlers that sit alongside the
// websocket channel: service info, health, token pre-flight, and
// browser console log forwarding.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AdamSaleh/runotebook/internal/api/middleware"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/logging"
)

// Version reported by the root endpoint.
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	token   string
	logger  *logging.Logger
	started time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(token string, logger *logging.Logger) *Handlers {
	return &Handlers{
		token:   token,
		logger:  logger,
		started: time.Now(),
	}
}

// Root reports service identity
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "runotebook",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// AuthCheck lets a client validate its token before opening the
// websocket: 200 for a valid token, 401 for an invalid one, 400 when
// no token was presented at all.
func (h *Handlers) AuthCheck(c *gin.Context) {
	presented := middleware.ExtractToken(c.Request)
	if presented == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no token provided"})
		return
	}
	if !middleware.VerifyToken(presented, h.token) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

type consoleEntry struct {
	Level     string `json:"level" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Timestamp string `json:"timestamp"`
}

// Console forwards a browser console entry into the server log, so
// client-side failures show up next to the server's own records.
func (h *Handlers) Console(c *gin.Context) {
	var entry consoleEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entryID := uuid.NewString()
	fields := []zap.Field{
		zap.String("source", "browser"),
		zap.String("entry_id", entryID),
		zap.String("client_timestamp", entry.Timestamp),
	}

	switch entry.Level {
	case "error":
		h.logger.Error(entry.Message, fields...)
	case "warn", "warning":
		h.logger.Warn(entry.Message, fields...)
	case "debug":
		h.logger.Debug(entry.Message, fields...)
	default:
		h.logger.Info(entry.Message, fields...)
	}

	c.JSON(http.StatusOK, gin.H{"logged": true, "entry_id": entryID})
}
