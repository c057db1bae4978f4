/*
errors.go - Centralized error types for the recording core

PURPOSE:
  All failure classes in one place. Stores wrap their driver errors into
  these so callers can classify without knowing the storage engine.

ERROR CATEGORIES:
  1. Validation errors - malformed input, rejected before storage access
  2. Conflict errors   - storage constraint violations (racing batches)
  3. Storage errors    - connectivity/unexpected failures, possibly transient

USAGE:
  if errors.Is(err, record.ErrConflict) {
      // safe to retry by resubmitting: applying a batch is an upsert
  }
*/
package record

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidBatch is returned when a submission has the wrong shape
	// (e.g. rows is not a list). No storage is touched.
	ErrInvalidBatch = errors.New("invalid batch shape")

	// ErrConflict is returned when a storage constraint is violated during
	// batch application, typically by a racing concurrent batch. The whole
	// batch aborts; resubmitting is safe because application is an upsert.
	ErrConflict = errors.New("storage conflict")

	// ErrStorage is returned for any other storage failure. The whole batch
	// aborts. This is the only class a caller may treat as transient.
	ErrStorage = errors.New("storage error")

	// ErrSessionNotFound is returned when a referenced session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError carries the underlying store's diagnostic for a constraint
// violation, so the caller can see which constraint was hit.
type ConflictError struct {
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("storage conflict on %s: %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("storage conflict: %v", e.Err)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// StorageError wraps an unexpected storage failure with the operation that
// produced it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return ErrStorage
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsClientError returns true if the error is due to invalid client input
// or a conflicting concurrent write.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidBatch) || errors.Is(err, ErrConflict)
}
