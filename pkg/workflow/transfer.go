package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
)

var accountTransitions = map[domain.AccountStatus][]domain.AccountStatus{
	domain.AccountActive:   {domain.AccountInactive, domain.AccountFrozen, domain.AccountClosed},
	domain.AccountInactive: {domain.AccountActive, domain.AccountClosed},
	domain.AccountFrozen:   {domain.AccountActive, domain.AccountClosed},
	domain.AccountClosed:   nil,
}

// TransitionAccount checks an account lifecycle move. Accounts are never
// deleted; CLOSED is terminal.
func TransitionAccount(from, to domain.AccountStatus) error {
	for _, next := range accountTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{Entity: "account", From: string(from), To: string(to)}
}

// ValidateAccountOpening checks a self-service account request.
func ValidateAccountOpening(req domain.CreateAccountRequest) error {
	if !req.AccountType.Valid() {
		return invalid("accountType", ErrUnknownAccountType)
	}
	return nil
}

// ValidTransferMode reports whether a customer transfer may use mode.
func ValidTransferMode(mode domain.TransferMode) bool {
	for _, m := range domain.TransferModes {
		if m == mode {
			return true
		}
	}
	return false
}

// ParseAmount parses user input into a positive two-decimal amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, invalid("amount", ErrMalformedAmount)
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ValidateAmount enforces amount > 0 with at most two fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", ErrNonPositiveAmount)
	}
	if !amount.Equal(amount.Truncate(2)) {
		return invalid("amount", ErrAmountPrecision)
	}
	return nil
}

// ValidateTransfer checks everything about a transfer that does not need the
// backend. Balances, ownership and account status are checked at commit time.
func ValidateTransfer(req domain.TransferRequest) error {
	from := strings.TrimSpace(req.FromAccountNumber)
	to := strings.TrimSpace(req.ToAccountNumber)
	if from == "" {
		return invalid("fromAccountNumber", ErrAccountNumberRequired)
	}
	if to == "" {
		return invalid("toAccountNumber", ErrAccountNumberRequired)
	}
	if from == to {
		return invalid("toAccountNumber", ErrSameAccount)
	}
	if err := ValidateAmount(req.Amount); err != nil {
		return err
	}
	if !ValidTransferMode(req.Mode) {
		return invalid("mode", ErrUnknownTransferMode)
	}
	return nil
}
