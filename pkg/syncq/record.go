// Package syncq queues writes attempted without connectivity and submits
// them in one batch once the sync event fires.
//
// Delivery is at-least-once: records are removed only after the server
// acknowledges a batch, and the server de-duplicates by record id.
package syncq

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultTag is the sync registration tag for attendance writes.
const DefaultTag = "attendance-sync"

// Record is a pending write.
type Record struct {
	ID        string          `json:"id"`
	Endpoint  string          `json:"endpoint"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

var (
	// ErrSubmission indicates the batch was not acknowledged.
	ErrSubmission = errors.New("sync submission failed")

	// ErrInvalidRecord indicates a record cannot be queued.
	ErrInvalidRecord = errors.New("invalid pending record")
)

// SubmissionError describes a failed batch submission.
// StatusCode is 0 when the request never produced a response.
type SubmissionError struct {
	StatusCode int
	Records    int
	Err        error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sync submission of %d records failed with status %d", e.Records, e.StatusCode)
	}
	return fmt.Sprintf("sync submission of %d records failed: %v", e.Records, e.Err)
}

// Unwrap returns the underlying error.
func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrSubmission.
func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmission
}
