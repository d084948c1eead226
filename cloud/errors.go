package cloud

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	ferrors "github.com/jrsteele09/go-fermax-cloud/internal/errors"
)

// AuthError means the token endpoint rejected the credentials. It is never retried.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e == nil {
		return "authentication failed"
	}
	if e.Body != "" {
		return fmt.Sprintf("[cloud Login] login failed (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("[cloud Login] login failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ferrors.ErrAuth }

// ConnectionError is a network or timeout failure talking to the cloud.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "connection error"
	}
	return fmt.Sprintf("[cloud %s] connection error: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ferrors.ErrConnection }

// APIError is a non-auth failure reported by the API: an unexpected status, an
// undecodable payload, or (for door actions) any wrapped non-auth failure.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e == nil {
		return "api error"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("[cloud %s] unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("[cloud %s] api error: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Is(target error) bool { return target == ferrors.ErrAPI }

func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
