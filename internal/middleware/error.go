package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// ErrorLogger logs the causes of 5xx responses recorded with c.Error. The
// client only ever sees the sanitized envelope.
func ErrorLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, e := range c.Errors {
			var appErr *apperrors.AppError
			if apperrors.As(e.Err, &appErr) && appErr.StatusCode() < 500 {
				continue
			}
			log.Error(e.Err, "Request error",
				"request_id", c.GetString(ContextRequestID),
				"method", c.Request.Method,
				"path", c.Request.URL.Path)
		}
	}
}
