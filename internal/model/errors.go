package model

import (
	"errors"
	"net/http"
)

// ErrorResponse is the envelope of every error the gateway writes itself.
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
	RetryAfter    int    `json:"retryAfter,omitempty"`
}

var (
	ErrUnauthenticated     = errors.New("authentication required")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrInvalidToken        = errors.New("invalid token")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrProductNotFound     = errors.New("product not found")
	ErrEmptyCart           = errors.New("empty cart")
	ErrOrderCreationFailed = errors.New("order creation failed")
	ErrBadRequest          = errors.New("bad request")
	ErrInternal            = errors.New("internal error")
)

var messages = map[error]string{
	ErrUnauthenticated:     "Authentication required",
	ErrTokenRevoked:        "Token has been revoked",
	ErrInvalidToken:        "Invalid or expired token",
	ErrRateLimited:         "Too many requests, please try again later.",
	ErrUpstreamUnavailable: "Service unavailable",
	ErrProductNotFound:     "Product not found",
	ErrEmptyCart:           "Cart is empty",
	ErrOrderCreationFailed: "Failed to create order",
	ErrInternal:            "Internal server error",
}

// ValidationError rejects a request at the boundary with a readable reason.
type ValidationError struct {
	Reason string
}

func BadRequest(reason string) error { return &ValidationError{Reason: reason} }

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return ErrBadRequest }

// UpstreamError carries a downstream response that must be relayed to the
// caller as-is. A zero StatusCode means the call never completed.
type UpstreamError struct {
	Err        error
	Service    string
	StatusCode int
	Body       []byte
	Header     http.Header
}

func (e *UpstreamError) Error() string {
	return e.Service + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StatusOf maps an error to the HTTP status the gateway answers with.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode > 0 {
		return upstream.StatusCode
	}

	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrTokenRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidToken):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstreamUnavailable), errors.Is(err, ErrOrderCreationFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// MessageOf returns the user-facing message for err. Unclassified failures
// never leak their cause.
func MessageOf(err error) string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Reason
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode == 0 && upstream.Service != "" {
		return upstream.Service + " unavailable"
	}

	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}

	return messages[ErrInternal]
}
