package middleware

import (
	"context"
	"net/http"
	"strings"

	"hrchat/internal/auth"
	"hrchat/internal/domain/thread"
	"hrchat/internal/transport/httpdto"
	"hrchat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Directory is told about every authenticated caller.
type Directory interface {
	Identify(ctx context.Context, self thread.Member) error
}

// AuthMiddleware verifies the bearer token and stores its claims on the
// request context. directory may be nil.
func AuthMiddleware(tokens *auth.TokenService, directory Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.Parse(ExtractToken(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
			c.Abort()
			return
		}

		ctx := auth.WithClaims(c.Request.Context(), claims)
		ctx = context.WithValue(ctx, logger.UserIdKey, claims.UserID())
		c.Request = c.Request.WithContext(ctx)

		if directory != nil {
			if err := directory.Identify(ctx, claims.Member()); err != nil {
				_ = c.Error(err)
			}
		}
		c.Next()
	}
}

// ExtractToken reads the bearer token, falling back to the token query
// parameter that browsers use on websocket upgrades.
func ExtractToken(c *gin.Context) string {
	if token := extractBearer(c); token != "" {
		return token
	}
	return strings.TrimSpace(c.Query("token"))
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
