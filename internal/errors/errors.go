package errors

import (
	"errors"
	"fmt"
)

// Common error types for the dashboard client
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrRestoreFailed    = errors.New("session restore failed")

	// Advertiser scope errors
	ErrUnknownAdvertiser = errors.New("advertiser not available to user")
	ErrNoAdvertiser      = errors.New("no advertiser selected")

	// Store errors
	ErrStoreUnavailable = errors.New("persistent store unavailable")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
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
