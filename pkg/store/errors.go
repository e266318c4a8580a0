package store

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrStorage classifies every backend failure (quota, I/O, decode).
	ErrStorage = errors.New("storage failure")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// StorageError reports a failed store operation.
type StorageError struct {
	Op    string
	Store string
	Err   error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Store != "" {
		return fmt.Sprintf("store %s %q: %v", e.Op, e.Store, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op, name string, err error) error {
	storeErrors.WithLabelValues(op).Inc()
	return &StorageError{Op: op, Store: name, Err: err}
}
