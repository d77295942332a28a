// Package httpkit provides shared HTTP helpers: response envelopes,
// error mapping, and middleware.
package httpkit

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"caregaps_backend/platform/apperr"
)

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// OK writes a 200 response with the given body
func OK(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

// Error writes an error response with the given status and message
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// ErrorWithDetails writes an error response carrying field details
func ErrorWithDetails(c *gin.Context, status int, message string, details map[string]any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// HandleError maps an application error to an HTTP response. Unknown
// errors become a generic 500 so internals never leak to clients.
func HandleError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus(), ErrorResponse{
			Error:   appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
