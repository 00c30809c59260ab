/*
errors.go - Error types for the pricing engine

ERROR CATEGORIES:
  1. Configuration absent (no event, no ruleset, family discount disabled):
     NOT an error. Computations degrade to zero totals.
  2. Incomplete rule data (no matching age group, unknown role):
     NOT an error. The affected amount is zero.
  3. Invalid input (negative amounts, malformed ruleset documents):
     returned to the caller as ErrInvalidInput.
  4. Lookups of a specific record that does not exist: ErrXxxNotFound.

USAGE:
  if errors.Is(err, pricing.ErrInvalidInput) {
      // reject the request, the data needs fixing
  }
*/
package pricing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput marks data-entry defects such as a negative override
	// or a negative payment amount.
	ErrInvalidInput = errors.New("invalid input")

	ErrEventNotFound       = errors.New("event not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrRoleNotFound        = errors.New("role not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InputError describes a rejected input value.
type InputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrRoleNotFound)
}
