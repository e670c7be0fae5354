package service

import "fmt"

// ValidationError covers malformed, missing or forbidden input fields.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a validation error with a plain message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NewFieldErrors builds a validation error carrying per-field messages.
func NewFieldErrors(fields map[string]string) *ValidationError {
	return &ValidationError{Message: "Validation failed", Fields: fields}
}

// NotFoundError covers missing orders, variants, addresses and categories.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// NewNotFoundError names the missing resource.
func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// PermissionDeniedError covers ownership and role mismatches.
type PermissionDeniedError struct {
	Message string
}

func (e *PermissionDeniedError) Error() string {
	return e.Message
}

// NewPermissionDenied builds a permission error.
func NewPermissionDenied(format string, args ...interface{}) *PermissionDeniedError {
	return &PermissionDeniedError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError is raised when a requested quantity exceeds the
// variant's stock. It names the SKU and both quantities so the caller can
// show a useful message.
type InsufficientStockError struct {
	SKU       string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d",
		e.SKU, e.Available, e.Requested)
}

// InvalidStateError covers illegal lifecycle transitions, such as cancelling
// an order that has already shipped.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

// NewInvalidState builds an invalid-state error.
func NewInvalidState(format string, args ...interface{}) *InvalidStateError {
	return &InvalidStateError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError covers uniqueness conflicts such as duplicate emails or SKUs.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflict builds a conflict error.
func NewConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
