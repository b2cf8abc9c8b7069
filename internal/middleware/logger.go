package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger returns a zap-based request logging middleware. Server errors are
// logged at Error, client errors at Warn and everything else at Info.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
		}
		if v, ok := c.Get(ContextUserID); ok {
			if id, ok := v.(uuid.UUID); ok {
				fields = append(fields, zap.String("user_id", id.String()))
			}
		}

		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		}
		if ce := logger.Check(level, "request"); ce != nil {
			ce.Write(fields...)
		}
	}
}
