package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware logs each request at debug level along with the link
// state at the time it was served. Paths in quiet, typically liveness
// checks, are not logged.
func LoggingMiddleware(logger *slog.Logger, source StatusSource, quiet ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip[path] {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		st := source.Snapshot()
		logger.Debug("status request",
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"link", st.State,
			"session", st.Session,
		)
	}
}

// RecoveryMiddleware turns a handler panic into a 500 with the usual
// envelope instead of dropping the connection.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, err any) {
		logger.Error("status handler panicked", "panic", err, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response{
			Ok:    false,
			Error: "internal server error",
		})
	})
}
