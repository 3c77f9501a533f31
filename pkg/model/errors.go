package model

import (
	"errors"
	"fmt"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrConflict   ErrorCode = "CONFLICT"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the vmbroker API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// Sentinel errors for the scheduling core.
var (
	// ErrPoolExhausted is returned when an idle slot is taken from an empty idle set.
	ErrPoolExhausted = errors.New("no idle slot available")

	// ErrRunTerminated is returned for events delivered after the run terminated.
	ErrRunTerminated = errors.New("run already terminated")

	// ErrCycle is returned when a workflow's dependency edges contain a cycle.
	ErrCycle = errors.New("workflow contains a cycle")
)

// UnknownNodeError is returned when a task node id is not part of the workflow.
type UnknownNodeError struct {
	ID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown task node %q", e.ID)
}

// UnknownSlotError is returned when a slot id was never allocated.
type UnknownSlotError struct {
	ID int
}

func (e *UnknownSlotError) Error() string {
	return fmt.Sprintf("unknown slot #%d", e.ID)
}

// UnknownDispatchUnitError is returned when a dispatch unit id was never created.
type UnknownDispatchUnitError struct {
	ID int
}

func (e *UnknownDispatchUnitError) Error() string {
	return fmt.Sprintf("unknown dispatch unit #%d", e.ID)
}

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
}
