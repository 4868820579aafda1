package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidJobType is returned when a job type is outside the closed set.
	ErrInvalidJobType = errors.New("invalid job type")

	// ErrInvalidPriority is returned when a priority is outside the closed set.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrJobTimeout is the failure reason for jobs whose wall-clock runtime
	// exceeded the configured budget.
	ErrJobTimeout = errors.New("job wall-clock budget exceeded")
)

// TransientUnitError marks a unit-level failure that is retryable and does
// not fail the whole job unless the failure-ratio threshold is exceeded.
// The worker records it on the job and moves on to the next unit.
type TransientUnitError struct {
	// UnitIndex is the position of the failing unit in the target sequence.
	UnitIndex int

	// Err is the underlying cause.
	Err error
}

func (e *TransientUnitError) Error() string {
	return fmt.Sprintf("unit %d failed: %v", e.UnitIndex, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TransientUnitError) Unwrap() error {
	return e.Err
}

// FatalJobError marks a failure that aborts the whole job immediately,
// such as a malformed target payload.
type FatalJobError struct {
	Err error
}

func (e *FatalJobError) Error() string {
	return fmt.Sprintf("fatal job error: %v", e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *FatalJobError) Unwrap() error {
	return e.Err
}

// InfrastructureError marks a temporary queue or store failure. The worker
// pauses and retries with backoff; the job's status is left untouched so
// crash-only recovery semantics hold.
type InfrastructureError struct {
	// Op names the store operation that failed.
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// IsFatalJobError reports whether err is or wraps a FatalJobError.
func IsFatalJobError(err error) bool {
	var fatal *FatalJobError
	return errors.As(err, &fatal)
}

// IsInfrastructureError reports whether err is or wraps an InfrastructureError.
func IsInfrastructureError(err error) bool {
	var infra *InfrastructureError
	return errors.As(err, &infra)
}
