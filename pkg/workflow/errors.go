/**
 * @description
 * Package workflow encodes the state machines that govern KYC documents, loans,
 * cards, accounts and fund transfers. Every function here is pure: it takes the
 * current entity state plus the requested change and returns either the next
 * state or an error. Persistence and locking live in the store layer, which
 * re-runs these checks against the row it holds FOR UPDATE.
 *
 * The same functions are used by the portal client for local validation, so a
 * request the backend would refuse is usually refused before any network call.
 */

package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition       = errors.New("invalid state transition")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrUnknownAction           = errors.New("unknown action")
	ErrUnknownLoanType         = errors.New("unknown loan type")
	ErrPrincipalOutOfRange     = errors.New("principal amount out of range")
	ErrTenureOutOfRange        = errors.New("tenure out of range")
	ErrNonPositiveAmount       = errors.New("amount must be greater than zero")
	ErrAmountPrecision         = errors.New("amount must have at most two decimal places")
	ErrUnknownTransferMode     = errors.New("unknown transfer mode")
	ErrAccountNumberRequired   = errors.New("account number is required")
	ErrSameAccount             = errors.New("source and destination accounts must differ")
	ErrUnknownDocumentType     = errors.New("unknown document type")
	ErrDocumentNumberRequired  = errors.New("document number is required")
	ErrKycNotApproved          = errors.New("kyc must be approved")
	ErrAccountNotActive        = errors.New("account is not active")
	ErrDebitCardExists         = errors.New("a debit card already exists for this account")
	ErrCreditLimitRequired     = errors.New("credit limit must be greater than zero")
	ErrUnknownAccountType      = errors.New("unknown account type")
	ErrPurposeTooLong          = errors.New("purpose is too long")
	ErrMalformedAmount         = errors.New("amount is not a number")
)

// TransitionError reports a transition that is missing from an entity's table.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError reports bad input that never needs a server round-trip.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
