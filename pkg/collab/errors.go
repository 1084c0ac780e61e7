package collab

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed CollaborationRequest. It is raised
// synchronously before any session is created and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a request field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidStateError reports a programming-contract violation, such as
// adding a contribution to a non-active round or closing an already
// terminal round. It is a defect in the calling code, not a runtime
// condition to recover from.
type InvalidStateError struct {
	Entity string
	State  string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: cannot %s %s in state %q", e.Action, e.Entity, e.State)
}

// NewInvalidStateError creates an InvalidStateError
func NewInvalidStateError(entity, state, action string) *InvalidStateError {
	return &InvalidStateError{Entity: entity, State: state, Action: action}
}

// IsInvalidStateError reports whether err is (or wraps) an InvalidStateError.
func IsInvalidStateError(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// ParticipantError reports an individual query failure or timeout. It is
// fully recovered locally by treating it as a missing contribution and
// never propagates past the round boundary.
type ParticipantError struct {
	ParticipantID string
	Err           error
}

func (e *ParticipantError) Error() string {
	return fmt.Sprintf("participant %s: %v", e.ParticipantID, e.Err)
}

func (e *ParticipantError) Unwrap() error {
	return e.Err
}

// NewParticipantError wraps a query failure for one participant
func NewParticipantError(participantID string, err error) *ParticipantError {
	return &ParticipantError{ParticipantID: participantID, Err: err}
}

// InternalError is the catch-all for unexpected failures during synthesis
// or aggregation. It is surfaced via the error event and sets the session
// status to failed.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error during %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// NewInternalError wraps an unexpected failure in operation op
func NewInternalError(op string, err error) *InternalError {
	return &InternalError{Op: op, Err: err}
}
