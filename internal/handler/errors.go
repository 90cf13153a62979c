package handler

import (
	"errors"
	"net/http"

	"hrchat/internal/auth"
	"hrchat/internal/domain/thread"
	"hrchat/internal/transport/httpdto"
	hrchat_errors "hrchat/pkg/errors"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error to its status and code. Unexpected
// errors are recorded on the context for the error middleware to log.
func respondError(c *gin.Context, err error) {
	var vf *hrchat_errors.ValidationFailure
	switch {
	case errors.As(err, &vf):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(vf.Message, httpdto.CodeValidationFailed))
	case errors.Is(err, hrchat_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", httpdto.CodeInvalidRequest))
	case errors.Is(err, hrchat_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
	case errors.Is(err, hrchat_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("not a member of this thread", httpdto.CodeForbidden))
	case errors.Is(err, hrchat_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("thread not found", httpdto.CodeNotFound))
	case errors.Is(err, hrchat_errors.ErrAlreadyExists), errors.Is(err, hrchat_errors.ErrConflict):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), httpdto.CodeConflict))
	case errors.Is(err, hrchat_errors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", httpdto.CodeRateLimited))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", httpdto.CodeInternal))
	}
}

func currentMember(c *gin.Context) (thread.Member, bool) {
	claims, ok := auth.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
		return thread.Member{}, false
	}
	return claims.Member(), true
}
