// Package apperror defines the error kinds shared by the store, service and
// HTTP layers.
package apperror

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or invalid input field. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for field
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown record or machine id. Never retried.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// StoreUnavailableError wraps a primary store failure that triggers failover
type StoreUnavailableError struct {
	Store string
	Op    string
	Err   error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s store unavailable during %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// TerminalStoreError is returned when both stores failed. Err is the
// fallback's error and is what Unwrap exposes; Primary is kept for logging.
type TerminalStoreError struct {
	Op      string
	Primary error
	Err     error
}

func (e *TerminalStoreError) Error() string {
	return fmt.Sprintf("%s failed on all stores: %v", e.Op, e.Err)
}

func (e *TerminalStoreError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsTerminal reports whether err is or wraps a TerminalStoreError
func IsTerminal(err error) bool {
	var target *TerminalStoreError
	return errors.As(err, &target)
}

// IsDomain reports whether err is an answer from the store rather than a
// failure of it.
func IsDomain(err error) bool {
	return IsValidation(err) || IsNotFound(err)
}
