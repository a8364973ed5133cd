package errors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StatusError is returned when a remote API answers with an unexpected status.
type StatusError struct {
	Service    string
	Op         string
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error (%s, status %d)", e.Service, e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (%s, status %d): %s", e.Service, e.Op, e.StatusCode, e.Message)
}

// Unauthorized reports whether the remote rejected the credentials.
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// NewStatusError creates a StatusError
func NewStatusError(service, op string, statusCode int, message string) *StatusError {
	return &StatusError{
		Service:    service,
		Op:         op,
		StatusCode: statusCode,
		Message:    message,
	}
}

// FromResponse builds a StatusError from resp, including a bounded prefix of its body.
func FromResponse(service, op string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return NewStatusError(service, op, resp.StatusCode, strings.TrimSpace(string(body)))
}

// IsUnauthorized reports whether err wraps a StatusError for rejected credentials.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Unauthorized()
}
