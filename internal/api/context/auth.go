// Package context provides request context middleware for the API.
package context

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xzzpig/graph-gateway/internal/core/config"
	"github.com/xzzpig/graph-gateway/internal/core/logger"
)

func authLog() *zap.Logger {
	return logger.Named("api.auth")
}

// BasicAuthMiddleware validates HTTP Basic Auth credentials with constant-time
// comparison and stores the username under gin.AuthUserKey.
func BasicAuthMiddleware(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, hasAuth := c.Request.BasicAuth()

		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1

		if !hasAuth || !userMatch || !passMatch {
			c.Header("WWW-Authenticate", `Basic realm="graph-gateway admin"`)

			// never log passwords
			authLog().Warn("authentication failed",
				zap.String("ip", c.ClientIP()),
				zap.String("username", user),
				zap.String("path", c.Request.URL.Path),
			)

			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set(gin.AuthUserKey, username)
		c.Next()
	}
}

// OptionalAuthMiddleware returns BasicAuthMiddleware when credentials are
// configured and a pass-through middleware otherwise.
func OptionalAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg != nil && cfg.IsAuthEnabled() {
		return BasicAuthMiddleware(cfg.Auth.Username, cfg.Auth.Password)
	}
	return func(c *gin.Context) {
		c.Next()
	}
}
