/*
errors.go - Centralized error types for the procurement engine

ERROR CATEGORIES:
  1. Validation errors - bad input, reported as a list of messages
  2. Workflow errors - transition not allowed, notes missing, not deletable
  3. Lookup errors - request not found

Callers test with errors.Is against the sentinels; the structured errors
unwrap to them.

SEE ALSO:
  - status.go: Produces TransitionError
  - validation.go: Produces ValidationError
*/
package procurement

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrRequestNotFound      = errors.New("purchase request not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrDuplicateRequest     = errors.New("purchase request already exists")
	ErrInvalidTransition    = errors.New("transition not allowed")
	ErrValidation           = errors.New("validation failed")

	// ErrNotesRequired is returned when reject, observe or hold is attempted
	// with blank notes. The request is left untouched.
	ErrNotesRequired = errors.New("review notes are required")

	ErrActorRequired = errors.New("current user is required")
	ErrNotDeletable  = errors.New("only draft or observed requests can be deleted")

	ErrInsufficientStock = errors.New("primary warehouse stock is insufficient")
	ErrStockSufficient   = errors.New("primary warehouse stock already covers the request")

	ErrPurchasingUnavailable = errors.New("purchasing collaborator not configured")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError carries every human-readable problem found in an input.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TransitionError reports an action that the transition table refuses.
type TransitionError struct {
	From   Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a request in status %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a command the current state does not allow.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotesRequired) ||
		errors.Is(err, ErrActorRequired) ||
		errors.Is(err, ErrNotDeletable) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrStockSufficient) ||
		errors.Is(err, ErrDuplicateRequest)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) || errors.Is(err, ErrNotificationNotFound)
}
