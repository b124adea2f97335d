package errors

import (
	"fmt"

	"github.com/jafarshop/storefront/internal/domain"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when authentication fails
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden is returned when an authenticated user acts on something it does not own
type ErrForbidden struct {
	Message string
}

func (e *ErrForbidden) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "access denied"
}

// ErrConflict is returned when there's a conflict (duplicate email, duplicate review, idempotency)
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrInvalidStateTransition is returned when an invalid state transition is attempted
type ErrInvalidStateTransition struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrInsufficientStock is returned when a product cannot cover the requested quantity
type ErrInsufficientStock struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *ErrInsufficientStock) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	if e.Available >= 0 {
		return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %s", name)
}

// ErrUpstream wraps a failure from a third-party provider (payment processor, image host, mail relay).
// The wrapped error is logged; clients only ever see Message.
type ErrUpstream struct {
	Provider string
	Message  string
	Err      error
}

func (e *ErrUpstream) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Err
}
