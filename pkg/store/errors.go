package store

import (
	"errors"
	"fmt"
)

// Sentinel kinds; the concrete error types below match them with errors.Is.
var (
	ErrDuplicateGoal = errors.New("duplicate goal")
	ErrValidation    = errors.New("validation failed")
	ErrPersistence   = errors.New("persistence failed")
	ErrNotFound      = errors.New("not found")
)

// DuplicateGoalError reports that a goal text already exists in some category.
type DuplicateGoalError struct {
	Text     string
	Category Category
}

func (e *DuplicateGoalError) Error() string {
	return fmt.Sprintf("goal %q already exists in %s", e.Text, e.Category)
}

func (e *DuplicateGoalError) Is(target error) bool { return target == ErrDuplicateGoal }

// ValidationError rejects input before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PersistenceError wraps a failed remote load or save.
type PersistenceError struct {
	Op       string // "load", "save" or "reset"
	Category Category
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Category, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// NotFoundError reports an unknown goal id or an index outside a list.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ErrorKind names an error class for display.
type ErrorKind string

const (
	KindDuplicate   ErrorKind = "DuplicateGoalError"
	KindValidation  ErrorKind = "ValidationError"
	KindPersistence ErrorKind = "PersistenceError"
	KindNotFound    ErrorKind = "NotFoundError"
	KindInternal    ErrorKind = "InternalError"
)

// ErrorDescriptor is what the view layer shows for a failed operation.
type ErrorDescriptor struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Describe classifies err for display. It returns the zero descriptor for nil.
func Describe(err error) ErrorDescriptor {
	switch {
	case err == nil:
		return ErrorDescriptor{}
	case errors.Is(err, ErrDuplicateGoal):
		return ErrorDescriptor{Kind: KindDuplicate, Message: err.Error()}
	case errors.Is(err, ErrValidation):
		return ErrorDescriptor{Kind: KindValidation, Message: err.Error()}
	case errors.Is(err, ErrPersistence):
		return ErrorDescriptor{Kind: KindPersistence, Message: "Changes saved locally; sync pending (" + err.Error() + ")"}
	case errors.Is(err, ErrNotFound):
		return ErrorDescriptor{Kind: KindNotFound, Message: err.Error()}
	default:
		return ErrorDescriptor{Kind: KindInternal, Message: err.Error()}
	}
}
