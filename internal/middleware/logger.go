package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// Logger logs one line per request. Bodies are never logged since they may
// carry medical data.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()

		level, msg := zerolog.InfoLevel, "Request processed"
		switch {
		case status >= 500:
			level, msg = zerolog.ErrorLevel, "Server error"
		case status >= 400:
			level, msg = zerolog.WarnLevel, "Client error"
		}

		event := log.ZL.WithLevel(level).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("ip", c.ClientIP()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("user_agent", c.Request.UserAgent())

		if identity, ok := IdentityFrom(c); ok {
			event = event.Str("account_id", identity.ID.String()).Str("role", string(identity.Role))
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.Msg(msg)
	}
}
