/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place. Every failure falls into one category:

    Validation          malformed input, no mutation
    StateConflict       wrong lifecycle state, no mutation
    BalanceViolation    derived CB negative, whole operation rejected
    Infrastructure      store or catalog unavailable (anything unclassified)

  ConcurrentModification and NotFound are supporting categories used by
  the optimistic version check and by report queries.

USAGE:
    if errors.Is(err, ledger.ErrBalanceViolation) {
        var bv *ledger.BalanceViolationError
        errors.As(err, &bv)
    }

SEE ALSO:
  - api/handlers.go: HTTP status mapping
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")

	ErrStateConflict = errors.New("state conflict")

	// ErrNoLedgerToPublish is returned when publishing a key that has no ledger.
	ErrNoLedgerToPublish = fmt.Errorf("%w: no ledger exists for this date and shop", ErrStateConflict)

	// ErrAlreadyPublished is returned when publishing a ledger twice.
	ErrAlreadyPublished = fmt.Errorf("%w: ledger is already published", ErrStateConflict)

	// ErrDraftOnPublished is returned when saving a draft over a published ledger.
	ErrDraftOnPublished = fmt.Errorf("%w: cannot save draft, ledger is already published", ErrStateConflict)

	ErrBalanceViolation = errors.New("closing balance cannot be negative")

	// ErrConcurrentModification is returned when the optimistic version check fails.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// BalanceViolationError names the first key whose closing balance went negative.
type BalanceViolationError struct {
	ProductID ProductID
	SizeID    SizeID
	Quantity  decimal.Decimal
}

func (e *BalanceViolationError) Error() string {
	return fmt.Sprintf("closing balance for product %d, size %d cannot be negative (got %s)",
		e.ProductID, e.SizeID, e.Quantity)
}

func (e *BalanceViolationError) Unwrap() error {
	return ErrBalanceViolation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrBalanceViolation)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrStateConflict) || errors.Is(err, ErrConcurrentModification)
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInfrastructure reports whether err falls outside every domain category.
func IsInfrastructure(err error) bool {
	return err != nil && !IsClientError(err) && !IsConflict(err) && !IsNotFound(err)
}
