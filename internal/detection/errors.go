package detection

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when an operation needs at least one sighting and got none
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when an identity has no sightings
	ErrNotFound = errors.New("not found")
)

// StorageError wraps a failure of the sighting store or tower registry.
// It is surfaced to the caller unchanged; the detection core never retries.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorageError tags err as a store failure; nil stays nil
func WrapStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err came from the store
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
