package triage

import (
	"errors"
	"fmt"
)

// RemoteError is a failed call to the mail source.
type RemoteError struct {
	Op  string
	ID  string
	Err error
}

// Error returns the error message.
func (e *RemoteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("remote %s of %s failed: %v", e.Op, e.ID, e.Err)
}

// Unwrap returns the wrapped error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// AnalyzerError is a failed or timed out analysis. The pipeline absorbs it
// and the item is presented without analysis.
type AnalyzerError struct {
	ID  string
	Err error
}

// Error returns the error message.
func (e *AnalyzerError) Error() string {
	return fmt.Sprintf("analysis of %s failed: %v", e.ID, e.Err)
}

// Unwrap returns the wrapped error.
func (e *AnalyzerError) Unwrap() error {
	return e.Err
}

// ComposerError is a failed reply draft.
type ComposerError struct {
	ID  string
	Err error
}

// Error returns the error message.
func (e *ComposerError) Error() string {
	return fmt.Sprintf("drafting reply to %s failed: %v", e.ID, e.Err)
}

// Unwrap returns the wrapped error.
func (e *ComposerError) Unwrap() error {
	return e.Err
}

// IOError is a failed local write: the checkpoint or the task store.
type IOError struct {
	Op  string
	Err error
}

// Error returns the error message.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// InvariantViolation is a bug: the queue or the state machine was asked to
// do something its rules forbid. It aborts the session.
type InvariantViolation struct {
	Msg string
}

// Error returns the error message.
func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Msg
}

func violationf(format string, args ...any) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

// IsRemoteError returns true if err wraps a RemoteError.
func IsRemoteError(err error) bool {
	var target *RemoteError
	return errors.As(err, &target)
}

// IsAnalyzerError returns true if err wraps an AnalyzerError.
func IsAnalyzerError(err error) bool {
	var target *AnalyzerError
	return errors.As(err, &target)
}

// IsComposerError returns true if err wraps a ComposerError.
func IsComposerError(err error) bool {
	var target *ComposerError
	return errors.As(err, &target)
}

// IsIOError returns true if err wraps an IOError.
func IsIOError(err error) bool {
	var target *IOError
	return errors.As(err, &target)
}

// IsInvariantViolation returns true if err wraps an InvariantViolation.
func IsInvariantViolation(err error) bool {
	var target *InvariantViolation
	return errors.As(err, &target)
}
