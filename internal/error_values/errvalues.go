package errorvalues

import "errors"

// Error categories. Every specific error below matches exactly one of them
// with errors.Is, so callers can branch on the category alone.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrPersistence      = errors.New("persistence error")
	ErrAuth             = errors.New("auth error")
)

var (
	ErrUserExists       = categorized(ErrAuth, "such user already exists")
	ErrUserNotFound     = categorized(ErrAuth, "user doesn't exists")
	ErrWrongCredentials = categorized(ErrAuth, "wrong email or password")
	ErrInvalidToken     = categorized(ErrAuth, "invalid token")
	ErrTokenRevoked     = categorized(ErrAuth, "token revoked")

	ErrHabitNotFound = categorized(ErrPersistence, "habit not found")
	ErrOwnerNotFound = categorized(ErrPersistence, "habit owner not found")
	ErrWrongOwner    = categorized(ErrPersistence, "habit belongs to another user")

	ErrDateNotAllowed  = categorized(ErrValidation, "date not allowed")
	ErrFrequencyLocked = categorized(ErrValidation, "frequency can't be changed after first completion")
	ErrHabitArchived   = categorized(ErrValidation, "habit is archived")
)

type categoryError struct {
	category error
	msg      string
}

func categorized(category error, msg string) error {
	return &categoryError{category: category, msg: msg}
}

func (e *categoryError) Error() string {
	return e.msg
}

func (e *categoryError) Is(target error) bool {
	return target == e.category
}

// PersistenceError wraps a failure of the backing storage.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return e.Op + " error: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// ValidationError lists the fields of a request that failed validation.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
