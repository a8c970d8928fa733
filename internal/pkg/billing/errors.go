package billing

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrIdempotencyConflict = errors.New("payment already recorded")
	ErrInvalidReference    = errors.New("invalid external reference")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrNotConfigured       = errors.New("payment gateway is not configured")
)

// ValidationError reports missing or invalid caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// GatewayError is a non-2xx answer of the payment gateway. Message is the
// gateway's own description when it sent one.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error: status=%d message=%s", e.StatusCode, e.Message)
}

// NotFound reports whether the gateway answered 404.
func (e *GatewayError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
