package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/genrelay/server/internal/model"
)

// Common error types.
var (
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrRateLimited    = errors.New("rate limited")
	ErrUpstream       = errors.New("upstream failure")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrInternal       = errors.New("internal error")
)

// AppError is an error with an HTTP status and a stable code.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code, otherwise the wrapped error.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Err, target)
}

// ErrorResponse is the JSON body for non-generation endpoints.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToResponse converts an AppError to ErrorResponse.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: e.Code, Message: e.Message}}
}

func newAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: status, Err: err}
}

// BadRequest creates a 400 error.
func BadRequest(message string) *AppError {
	return newAppError("BAD_REQUEST", message, http.StatusBadRequest, ErrBadRequest)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return newAppError("UNAUTHORIZED", message, http.StatusUnauthorized, ErrUnauthorized)
}

// QuotaExceeded creates a 429 error for an exhausted daily allowance.
func QuotaExceeded(message string) *AppError {
	return newAppError("QUOTA_EXCEEDED", message, http.StatusTooManyRequests, ErrQuotaExceeded)
}

// RateLimited creates a 429 error for request throttling.
func RateLimited(message string) *AppError {
	if message == "" {
		message = "too many requests"
	}
	return newAppError("RATE_LIMITED", message, http.StatusTooManyRequests, ErrRateLimited)
}

// BadGateway creates a 502 error for failed upstream providers or storage.
func BadGateway(message string) *AppError {
	return newAppError("BAD_GATEWAY", message, http.StatusBadGateway, ErrUpstream)
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	if message == "" {
		message = "service temporarily unavailable"
	}
	return newAppError("SERVICE_UNAVAILABLE", message, http.StatusServiceUnavailable, ErrServiceUnavail)
}

// Internal creates a 500 error.
func Internal(message string, err error) *AppError {
	return newAppError("INTERNAL_ERROR", message, http.StatusInternalServerError, err)
}

// FromFailure maps a generation failure to an AppError. It returns nil for
// a nil failure.
func FromFailure(f *model.Failure) *AppError {
	if f == nil {
		return nil
	}
	switch f.Kind {
	case model.FailureValidation:
		return BadRequest(f.Message)
	case model.FailureQuotaDenied:
		return QuotaExceeded(f.Message)
	case model.FailureChainExhausted, model.FailureStorage:
		return BadGateway(f.Message)
	case model.FailureNoProvider, model.FailureUnavailable:
		return ServiceUnavailable(f.Message)
	default:
		return Internal(f.Message, ErrInternal)
	}
}

// StatusOf returns the HTTP status for a generation result. Successful
// results and degraded text replies are 200; text input failing validation
// is still a 400.
func StatusOf(r *model.GenerationResult) int {
	if r == nil {
		return http.StatusInternalServerError
	}
	if r.Failure == nil || (r.Mode == model.ModeText && r.Failure.Kind != model.FailureValidation) {
		return http.StatusOK
	}
	return FromFailure(r.Failure).StatusCode
}
