/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on sentinel errors with errors.Is and pull details out of
  the structured types with errors.As.

ERROR CATEGORIES:
  1. Validation / business-rule errors - never retried, surfaced verbatim
  2. NotFound - referenced entity missing or soft-deleted
  3. Transient storage errors - conflicts retried with backoff, timeouts
     trigger compensation of any applied quantity change

PROPAGATION POLICY:
  Validation, NotFound, InsufficientStock, and InvalidTransition are reported
  to the caller with a stable machine-readable kind plus a human-readable
  message. ErrConflict is retried internally a bounded number of times before
  surfacing; ErrPersistence surfaces after compensation. Audit-log write
  failures never propagate to business callers.

SEE ALSO:
  - stock.go: conflict retry and compensation
  - api/handlers.go: maps these to HTTP statuses via the helpers below
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity is missing or
	// soft-deleted.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed or out-of-range input.
	// Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientStock is returned when a decrement would drive an
	// item's quantity negative. A business-rule rejection, not a fault.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidTransition is returned for a restock state machine rule
	// violation, including any transition out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict is returned by stores when a conditional update loses a
	// concurrent-write race. Retried internally with backoff.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrDuplicateID is returned when inserting an append-only record whose
	// id already exists. Replays of an applied transaction hit this and are
	// treated as already done.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrPersistence is returned when storage is unavailable or timed out.
	// Any already-applied quantity change has been compensated by the time
	// this surfaces.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which input failed and why. The message is
// suitable for direct display.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientStockError reports the available quantity alongside the
// rejection so callers can show it.
type InsufficientStockError struct {
	InventoryID ItemID
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock. Available: %d units", e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvalidTransitionError reports the rejected restock transition.
type InvalidTransitionError struct {
	OrderID OrderID
	From    OrderStatus
	To      OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Collection, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input or
// a business-rule rejection.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient returns true for failures worth retrying at the caller level
// (conflict exhaustion, storage unavailability).
func IsTransient(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrPersistence)
}
