package network

import (
	"errors"
	"fmt"
)

// Common errors returned by the network package.
var (
	// ErrNetwork matches every transport-level fetch failure.
	ErrNetwork = errors.New("network failure")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// NetworkError is a fetch that was rejected or answered with a non-OK status.
type NetworkError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.ErrorClass, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error (status %d)", e.URL, e.ErrorClass, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is makes every NetworkError match ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// StatusError builds a NetworkError for a non-OK response.
func StatusError(url string, status int) *NetworkError {
	return &NetworkError{
		URL:        url,
		StatusCode: status,
		ErrorClass: classifyStatus(status),
	}
}

func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}
