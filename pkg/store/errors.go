package store

import (
	"errors"
	"fmt"
)

// ErrConfigNotFound indicates no stored config exists for a version.
var ErrConfigNotFound = errors.New("config not found")

// NotFoundError wraps ErrConfigNotFound with the version that was requested.
type NotFoundError struct {
	Version string
}

// Error returns the error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config not found for version %q", e.Version)
}

// Unwrap allows errors.Is(err, ErrConfigNotFound).
func (e *NotFoundError) Unwrap() error {
	return ErrConfigNotFound
}

// BackupError indicates a backup write failed. Backup failures abort the
// enclosing save: the prior version must never be silently lost.
type BackupError struct {
	Version string
	Cause   error
}

// Error returns the error message.
func (e *BackupError) Error() string {
	return fmt.Sprintf("backup failed for version %q: %v", e.Version, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *BackupError) Unwrap() error {
	return e.Cause
}
