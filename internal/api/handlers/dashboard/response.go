// Package dashboard provides handlers for the analytics dashboard API.
package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgestats/edgestats/internal/analytics"
	"github.com/edgestats/edgestats/internal/buildinfo"
)

// APIResponse is the standard response envelope for the v1 API.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta APIMeta     `json:"meta"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// APIError is the standard error response for the v1 API.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error details.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondOK sends a successful response with data envelope.
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Data: data,
		Meta: APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   buildinfo.Version,
		},
	})
}

// respondError sends an error response with the given status code.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, APIError{
		Error: APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// statusForCode maps service error codes onto HTTP statuses. Credential
// problems are the operator's to fix, upstream problems are not.
func statusForCode(code analytics.Code) int {
	switch code {
	case analytics.CodeRateLimited:
		return http.StatusTooManyRequests
	case analytics.CodeInvalidZoneID, analytics.CodeInvalidToken, analytics.CodeInvalidEmail, analytics.CodeMissingCredentials:
		return http.StatusUnprocessableEntity
	case analytics.CodeTransportFailure, analytics.CodeUpstreamError, analytics.CodeUnexpectedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
