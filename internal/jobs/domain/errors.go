package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned when no job exists for the given id.
	ErrNotFound = errors.New("job not found")

	// ErrConflict is the parent of every "job is not claimable" error.
	ErrConflict = errors.New("job is not claimable")

	// ErrAlreadyRunning means another caller already claimed the job.
	// Both conflicts wrap ErrConflict so each keeps its own identity.
	ErrAlreadyRunning = errors.Wrap(ErrConflict, "job is already running")

	// ErrAlreadyFinished means the job reached a terminal status.
	ErrAlreadyFinished = errors.Wrap(ErrConflict, "job has already finished")

	// ErrNotRunning is returned when a terminal write finds the job outside running.
	ErrNotRunning = errors.New("job is not running")

	// ErrEngineStopped is returned by Run once shutdown has begun.
	ErrEngineStopped = errors.New("execution engine is stopped")

	// ErrInvalidJobID is returned for ids that are not UUIDs.
	ErrInvalidJobID error = &ValidationError{Message: "Invalid job ID"}
)

// ValidationError carries a client-facing message for rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with the given message.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// ValidationMessage returns the client-facing message of a ValidationError in err's chain.
func ValidationMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return ""
}

// WorkUnitFailure records why a job's work unit did not succeed.
type WorkUnitFailure struct {
	JobID string
	Err   error
}

func (e *WorkUnitFailure) Error() string {
	return fmt.Sprintf("work unit failed for job %s: %v", e.JobID, e.Err)
}

func (e *WorkUnitFailure) Unwrap() error {
	return e.Err
}
