package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a referenced entity absent from the store.
	ErrNotFound = errors.New("not found")

	// ErrCapacity reports the live catalog limit has been reached.
	ErrCapacity = errors.New("catalog capacity reached")

	// ErrStockExceeded reports insufficient inventory for the requested
	// quantity.
	ErrStockExceeded = errors.New("insufficient stock")

	// ErrEmptyCart reports a checkout attempted on an empty cart.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrDuplicateRequest reports a checkout request ID seen before.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrNotConfirmed reports a destructive action without the caller's
	// explicit consent flag.
	ErrNotConfirmed = errors.New("deletion not confirmed")
)

// ValidationError reports bad input on a named field. No mutation was
// performed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps a backend fault: connectivity, constraint violation,
// or any other failure the store surfaced. Reported once, never retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
