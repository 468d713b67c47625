package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ExtractToken pulls the access token from a request: the ?token= query
// parameter first, then an Authorization: Bearer header.
func ExtractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return ""
}

// VerifyToken compares a presented token against the configured one in
// constant time.
func VerifyToken(presented, expected string) bool {
	if presented == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// RequiresAuth reports whether a path is token-gated. API endpoints
// need a token except the token probe itself and browser console
// forwarding; the WebSocket endpoint authenticates in its own gateway;
// static assets are open.
func RequiresAuth(path string) bool {
	switch path {
	case "/api/auth/check", "/api/console":
		return false
	}
	return strings.HasPrefix(path, "/api/")
}

// Auth creates a token-checking middleware for the HTTP API.
func Auth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !RequiresAuth(c.Request.URL.Path) {
			c.Next()
			return
		}

		presented := ExtractToken(c.Request)
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
				"hint":  "provide token via ?token=xxx or Authorization: Bearer xxx",
			})
			return
		}
		if !VerifyToken(presented, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Next()
	}
}
