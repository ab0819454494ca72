package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any network activity when a request
	// cannot be processed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelNotFound indicates the model id is not registered.
	ErrModelNotFound = errors.New("model not found")

	// ErrJobFailed indicates the backend reported a terminal failure.
	ErrJobFailed = errors.New("job failed")

	// ErrRelayAbandoned indicates the relay stopped before a terminal status
	// because the client went away.
	ErrRelayAbandoned = errors.New("relay abandoned")
)

// SubmitError is returned when the backend rejects or mis-shapes a submission.
type SubmitError struct {
	StatusCode int // zero when no HTTP response was read
	Err        error
}

func (e *SubmitError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submit failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("submit failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// PollErrorKind classifies a poll failure.
type PollErrorKind string

const (
	PollErrorTransport PollErrorKind = "transport"
	PollErrorStatus    PollErrorKind = "status"
	PollErrorSchema    PollErrorKind = "schema"
)

// PollError is a transient failure while polling. The relay retries it.
type PollError struct {
	Kind       PollErrorKind
	StatusCode int
	Err        error
}

func (e *PollError) Error() string {
	if e.Kind == PollErrorStatus {
		return fmt.Sprintf("poll failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("poll failed (%s): %v", e.Kind, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}
