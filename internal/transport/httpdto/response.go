// Package httpdto holds the JSON shapes exchanged with the chat gateway's
// REST surface. The gateway writes them and the api client reads them.
package httpdto

// Error codes carried in Response.Code.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeRateLimited      = "RATE_LIMITED"
	CodeUnhealthy        = "UNHEALTHY"
	CodeInternal         = "INTERNAL_ERROR"
)

// Response is the envelope around every REST answer. Data is set on
// success; Error and Code on failure.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

func NewErrorResponse(msg, code string) Response[any] {
	return Response[any]{Error: msg, Code: code}
}
