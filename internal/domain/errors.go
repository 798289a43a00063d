package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrQueueDraining = errors.New("drain already in progress")
	ErrStoreClosed   = errors.New("store is closed")
)

// DecompressionError indicates a stored payload could not be decoded.
// It is recovered locally (callers fall back to the raw payload); it never
// propagates to the application layer as a crash.
type DecompressionError struct {
	Scheme string
	Err    error
}

// Error returns the error message
func (e *DecompressionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decompression failed (%s): %v", e.Scheme, e.Err)
	}
	return fmt.Sprintf("decompression failed (%s)", e.Scheme)
}

// Unwrap returns the underlying error
func (e *DecompressionError) Unwrap() error {
	return e.Err
}

// NewDecompressionError creates a new DecompressionError
func NewDecompressionError(scheme string, err error) *DecompressionError {
	return &DecompressionError{Scheme: scheme, Err: err}
}

// IsDecompression returns true if the error is a DecompressionError
func IsDecompression(err error) bool {
	var de *DecompressionError
	return errors.As(err, &de)
}

// StorageError indicates the persistent store could not complete an
// operation. The previous state of the affected entry is left unchanged.
type StorageError struct {
	Op  string
	Key string
	Err error
}

// Error returns the error message
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError
func NewStorageError(op, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err}
}

// IsStorage returns true if the error is a StorageError
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ReplayError indicates a single queue item failed to replay against the
// network. Permanent is set once the item has exhausted its retries and has
// been removed from the queue.
type ReplayError struct {
	ItemID    string
	Action    Action
	Endpoint  string
	Attempts  int
	Permanent bool
	Err       error
}

// Error returns the error message
func (e *ReplayError) Error() string {
	state := "will retry"
	if e.Permanent {
		state = "permanently failed"
	}
	return fmt.Sprintf("replay %s %s (attempt %d, %s): %v",
		e.Action, e.Endpoint, e.Attempts, state, e.Err)
}

// Unwrap returns the underlying error
func (e *ReplayError) Unwrap() error {
	return e.Err
}
