package middleware

import (
	"net/http"
	"time"

	"hrchat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoggingMiddleware writes one line per request, keyed by route template so
// thread ids do not explode log cardinality. Requests to skipPaths are silent.
func LoggingMiddleware(l *logger.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}
		log := l
		if log == nil {
			log = logger.GetGlobalLogger()
		}
		if log == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}

		zl := log.WithContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			zl.Error("request", fields...)
		case status >= http.StatusBadRequest:
			zl.Warn("request", fields...)
		default:
			zl.Info("request", fields...)
		}
	}
}
