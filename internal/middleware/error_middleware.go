package middleware

import (
	"net/http"

	"hrchat/internal/transport/httpdto"
	"hrchat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler logs errors recorded on the context and answers with a
// generic error when the handler wrote nothing.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	l = logger.OrNop(l)
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		l.WithContext(c.Request.Context()).Error("request error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		if c.Writer.Written() {
			return
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", httpdto.CodeInternal))
	}
}
