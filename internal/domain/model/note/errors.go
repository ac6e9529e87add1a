package note

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no Note matches the requested identity
var ErrNotFound = errors.New("note not found")

// StorageError wraps a local persistence failure
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err with the failed operation name
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
