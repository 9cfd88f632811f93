// Package analytics orchestrates snapshot delivery: cache lookups,
// stale-while-revalidate refresh scheduling, rate limiting, and the
// upstream fetch path.
package analytics

import (
	"errors"
	"time"

	"github.com/edgestats/edgestats/internal/cloudflare"
)

// Code tags an Error so transports can map it to a status without
// inspecting message text.
type Code string

const (
	CodeRateLimited        Code = "RATE_LIMIT_EXCEEDED"
	CodeInvalidZoneID      Code = "INVALID_ZONE_ID"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeInvalidEmail       Code = "INVALID_EMAIL"
	CodeMissingCredentials Code = "MISSING_CREDENTIALS"
	CodeTransportFailure   Code = "TRANSPORT_FAILURE"
	CodeUpstreamError      Code = "UPSTREAM_ERROR"
	CodeUnexpectedResponse Code = "UNEXPECTED_RESPONSE"
)

// Error is the tagged failure surfaced by the service layer.
type Error struct {
	Code    Code
	Message string

	// RetryAfter is set only for CodeRateLimited.
	RetryAfter time.Duration

	cause error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Classify maps lower-level failures onto the tagged taxonomy. Already
// tagged errors pass through unchanged.
func Classify(err error) *Error {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged
	}

	if errors.Is(err, cloudflare.ErrMissingCredentials) {
		return &Error{Code: CodeMissingCredentials, Message: err.Error(), cause: err}
	}

	var transport *cloudflare.TransportError
	if errors.As(err, &transport) {
		return &Error{Code: CodeTransportFailure, Message: transport.Error(), cause: err}
	}

	var upstream *cloudflare.UpstreamError
	if errors.As(err, &upstream) {
		return &Error{Code: CodeUpstreamError, Message: upstream.Error(), cause: err}
	}

	var shape *cloudflare.ShapeError
	if errors.As(err, &shape) {
		return &Error{Code: CodeUnexpectedResponse, Message: shape.Error(), cause: err}
	}

	return &Error{Code: CodeUpstreamError, Message: err.Error(), cause: err}
}
