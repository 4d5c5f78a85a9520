package festival

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input such as a blank title or an out of range score.
	ErrValidation = errors.New("festival: validation failed")
	// ErrForbiddenTransition is returned when the requested state is not reachable from the current one.
	ErrForbiddenTransition = errors.New("festival: forbidden transition")
	// ErrState is returned when an operation is not permitted in the aggregate's current state.
	ErrState = errors.New("festival: operation not allowed in current state")
	// ErrConflict marks membership violations such as a user being both programmer and staff.
	ErrConflict = errors.New("festival: conflict")
	// ErrAlreadyMember is returned when adding a user to a set they already belong to.
	ErrAlreadyMember = errors.New("festival: already a member")
	// ErrNotMember is returned when removing a user that is not part of the set.
	ErrNotMember = errors.New("festival: not a member")
	// ErrInvariant is returned when an operation would break an aggregate invariant.
	ErrInvariant = errors.New("festival: invariant violation")
)

// FieldError reports a single rejected input value.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("festival: %s: %s", e.Field, e.Message)
}

// Is lets FieldError satisfy errors.Is(err, ErrValidation).
func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

// TransitionError describes a rejected state change.
type TransitionError struct {
	Subject string
	From    string
	To      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("festival: %s cannot move from %s to %s", e.Subject, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrForbiddenTransition
}

// StateError describes an operation attempted in a state that does not allow it.
type StateError struct {
	Subject   string
	Operation string
	State     string
	Reason    string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("festival: %s %s not allowed in state %s", e.Subject, e.Operation, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *StateError) Is(target error) bool {
	return target == ErrState
}

// MembershipError describes a rejected RoleSet mutation. Kind is one of
// ErrConflict, ErrAlreadyMember, ErrNotMember or ErrInvariant.
type MembershipError struct {
	UserID int64
	Kind   error
	Detail string
}

func (e *MembershipError) Error() string {
	return fmt.Sprintf("festival: user %d %s", e.UserID, e.Detail)
}

// Is matches the kind. An already-member failure is also a conflict.
func (e *MembershipError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrAlreadyMember && target == ErrConflict
}

// PhaseMismatchError reports which side of a program/screening state
// conjunction rejected an action.
type PhaseMismatchError struct {
	Subject  string
	Actual   string
	Expected []string
}

func (e *PhaseMismatchError) Error() string {
	return fmt.Sprintf("festival: %s is %s, expected one of %v", e.Subject, e.Actual, e.Expected)
}

func (e *PhaseMismatchError) Is(target error) bool {
	return target == ErrState
}
