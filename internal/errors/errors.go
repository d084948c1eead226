package errors

import (
	"errors"
	"fmt"
)

// Common error kinds shared by the session client, the coordinator and the HTTP surface.
// Typed errors in those packages match these with errors.Is.
var (
	// Session errors
	ErrAuth       = errors.New("authentication failed")
	ErrConnection = errors.New("connection error")
	ErrAPI        = errors.New("api error")

	// Door action errors
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Refresh cycle errors
	ErrUpdateFailed     = errors.New("update failed")
	ErrNoDevicesUpdated = errors.New("no devices could be updated")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
