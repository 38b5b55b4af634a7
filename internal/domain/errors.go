package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrStoreFailure  = errors.New("store failure")
	ErrEmptyArtifact = errors.New("collaborator returned empty artifact")
)

// FailureClass splits pipeline failures into the two policies the queue needs
// to distinguish: retryable failures are redelivered with backoff, terminal
// failures are recorded once and never retried.
type FailureClass string

const (
	FailureRetryable FailureClass = "retryable"
	FailureTerminal  FailureClass = "terminal"
)

// StageError tags a failure with the pipeline stage it occurred in and its
// retry classification. Collaborator adapters raise these so the orchestrator
// and worker switch on structure instead of parsing message prefixes.
type StageError struct {
	Stage string
	Class FailureClass
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Terminal wraps err as a non-retryable stage failure.
func Terminal(stage string, err error) *StageError {
	return &StageError{Stage: stage, Class: FailureTerminal, Err: err}
}

// Retryable wraps err as a transient stage failure worth redelivering.
func Retryable(stage string, err error) *StageError {
	return &StageError{Stage: stage, Class: FailureRetryable, Err: err}
}

// IsTerminal reports whether err carries a terminal stage classification.
func IsTerminal(err error) bool {
	var se *StageError
	return errors.As(err, &se) && se.Class == FailureTerminal
}

// StageOf returns the stage tag of a classified failure, or "" for plain errors.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
