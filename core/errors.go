package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Authentication errors
	ErrAuthFailed = errors.New("authentication failed")

	// Endpoint resolution errors
	ErrEndpointNotFound = errors.New("endpoint not found")

	// HTTP/Network errors
	ErrRequestFailed    = errors.New("request failed")
	ErrConnectionFailed = errors.New("connection failed")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")
)

// ClientError provides structured error information with context
// It implements the error interface and supports error wrapping
type ClientError struct {
	Op      string // Operation that failed (e.g., "auth.Token")
	Kind    string // Error kind (e.g., "auth", "transport", "config")
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *ClientError) Error() string {
	switch {
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *ClientError) Unwrap() error {
	return e.Err
}

// AuthError reports a failed identity exchange: a non-success status from
// the identity endpoint, a malformed response, or a network failure during
// authentication. StatusCode is zero when no HTTP response was received.
type AuthError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: identity endpoint returned status %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: authentication failed", e.Op)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is reports ErrAuthFailed so callers can match with errors.Is
func (e *AuthError) Is(target error) bool { return target == ErrAuthFailed }

// EndpointNotFoundError reports that no override URL was configured and the
// service catalog had no matching service/region pair.
type EndpointNotFoundError struct {
	Service string
	Region  string
}

func (e *EndpointNotFoundError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("no endpoint for region %q: service missing from catalog", e.Region)
	}
	return fmt.Sprintf("no endpoint for region %q in service %q", e.Region, e.Service)
}

// Is reports ErrEndpointNotFound so callers can match with errors.Is
func (e *EndpointNotFoundError) Is(target error) bool { return target == ErrEndpointNotFound }

// HTTPError reports a non-success response from a data-plane call, after the
// single reauthentication attempt has been exhausted if it applied.
// Body holds the raw response body for diagnostics.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Is reports ErrRequestFailed so callers can match with errors.Is
func (e *HTTPError) Is(target error) bool { return target == ErrRequestFailed }

// IsAuth checks if an error came from a failed identity exchange
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// IsEndpointNotFound checks if an error represents a failed endpoint resolution
func IsEndpointNotFound(err error) bool {
	return errors.Is(err, ErrEndpointNotFound)
}

// IsHTTP extracts an HTTPError from an error chain
func IsHTTP(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}
