package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched with errors.Is by every lookup that misses.
var ErrNotFound = errors.New("not found")

// ValidationError reports one rejected field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// ValidationErrors collects every problem found on a record.
type ValidationErrors struct {
	Errors []error
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (ve *ValidationErrors) Add(err error) {
	if err != nil {
		ve.Errors = append(ve.Errors, err)
	}
}

// Err returns nil when nothing was collected.
func (ve *ValidationErrors) Err() error {
	if len(ve.Errors) == 0 {
		return nil
	}
	return ve
}

// Unwrap exposes the collected errors to errors.Is / errors.As.
func (ve *ValidationErrors) Unwrap() []error {
	return ve.Errors
}

// Messages flattens the collected errors for API responses.
func (ve *ValidationErrors) Messages() []string {
	out := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		out[i] = err.Error()
	}
	return out
}

func IsValidationError(err error) bool {
	var single *ValidationError
	var many *ValidationErrors
	return errors.As(err, &single) || errors.As(err, &many)
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

var (
	ErrInvalidAmount   = &ValidationError{Field: "amount", Msg: "must be a non-negative decimal"}
	ErrInvalidMonth    = &ValidationError{Field: "month", Msg: "must be formatted as YYYY-MM"}
	ErrEmptyActivity   = &ValidationError{Field: "activity", Msg: "cannot be empty"}
	ErrEmptyCategory   = &ValidationError{Field: "category", Msg: "cannot be empty"}
	ErrMissingOwner    = &ValidationError{Field: "userId", Msg: "is required"}
	ErrMissingTime     = &ValidationError{Field: "createdAt", Msg: "is required"}
	ErrActivityTooLong = &ValidationError{Field: "activity", Msg: "too long (max 200 characters)"}
	ErrCategoryTooLong = &ValidationError{Field: "category", Msg: "too long (max 100 characters)"}
)
