package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for comparison using errors.Is(). The typed errors below
// match them through their Is methods.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNetwork           = errors.New("network failure")
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("unauthorized")

	// ErrCartChanged means the cart moved on while a checkout step was
	// working on an older snapshot of it.
	ErrCartChanged = errors.New("cart changed during checkout")
)

// NotFoundError reports a lookup of an absent cart line, product or order.
type NotFoundError struct {
	Kind string // "cart line", "product", ...
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Ref)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Shortage describes one line that the known stock cannot cover.
type Shortage struct {
	Key       string `json:"key"`
	ProductID string `json:"productId"`
	SKU       string `json:"sku,omitempty"`
	Name      string `json:"name,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError reports every line that failed reconciliation.
// Lines may be empty when the backend rejected the order without detail.
type InsufficientStockError struct {
	Lines []Shortage
}

func (e *InsufficientStockError) Error() string {
	if len(e.Lines) == 0 {
		return "insufficient stock for one or more items"
	}
	parts := make([]string, 0, len(e.Lines))
	for _, s := range e.Lines {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.Key, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// NetworkError wraps a transport failure reaching the backend. It is always
// retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ValidationError reports malformed input such as checkout contact data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IsRetryable reports whether the operation may succeed if simply retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsNotFound checks if an error represents a "not found" condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
