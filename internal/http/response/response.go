// Package response — единый формат JSON-ответов HTTP API.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Коды ошибок в конверте
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidUser    = "invalid_user"
	CodeUnknownAction  = "unknown_action_type"
	CodeInvalidAmount  = "invalid_amount"
	CodeConflict       = "conflict"
	CodeUnavailable    = "unavailable"
	CodeUnauthorized   = "unauthorized"
	CodeRateLimited    = "rate_limited"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal"
)

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Error пишет ошибку в конверте {"error": {...}}.
func Error(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{Message: msg, Code: code},
	})
}

// Abort — Error для middleware: прерывает цепочку обработчиков.
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{Message: message, Code: code},
	})
}

// Retryable пишет ошибку, которую клиент может повторить.
func Retryable(c *gin.Context, status int, code string, err error) {
	c.Header("Retry-After", "1")
	c.JSON(status, ErrorEnvelope{
		Error: APIError{Message: err.Error(), Code: code, Retryable: true},
	})
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
