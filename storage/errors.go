package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by updates that address a row that does not
// exist or was deleted. Reads of absent rows return empty results instead.
var ErrNotFound = errors.New("not found")

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
