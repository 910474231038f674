package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAborted is returned when a request is canceled through its context.
// Callers treat it as a benign outcome and never surface it to the user.
var ErrAborted = errors.New("request aborted")

// AuthError reports that the server rejected the session (HTTP 401).
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("unauthorized (status %d)", e.Status)
}

// APIError reports any other non-2xx response. Detail is nil when the
// response carried no body.
type APIError struct {
	Status int
	Detail *string
}

func (e *APIError) Error() string {
	if e.Detail != nil && *e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, *e.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, http.StatusText(e.Status))
}

// DetailOrEmpty returns the detail string or "" when absent.
func (e *APIError) DetailOrEmpty() string {
	if e.Detail == nil {
		return ""
	}
	return *e.Detail
}

// NetworkError wraps a transport failure (DNS, refused connection, reset).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is, or wraps, an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsAborted reports whether err is a canceled request.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// IsNetworkError reports whether err is, or wraps, a *NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Status
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsBenign reports whether err should only be logged: aborted requests and
// network failures are never shown to the user.
func IsBenign(err error) bool {
	return IsAborted(err) || IsNetworkError(err)
}
