package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountSavings          AccountType = "SAVINGS"
	AccountCurrent          AccountType = "CURRENT"
	AccountFixedDeposit     AccountType = "FIXED_DEPOSIT"
	AccountRecurringDeposit AccountType = "RECURRING_DEPOSIT"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountSavings, AccountCurrent, AccountFixedDeposit, AccountRecurringDeposit:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
	AccountFrozen   AccountStatus = "FROZEN"
	AccountClosed   AccountStatus = "CLOSED"
)

// Valid reports whether s is one of the known account statuses.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountActive, AccountInactive, AccountFrozen, AccountClosed:
		return true
	}
	return false
}

// Defaults applied when an account is opened.
const (
	DefaultCurrency   = "INR"
	DefaultIFSCCode   = "FINS0001234"
	DefaultBranchName = "Main Branch"
)

// DefaultMinimumBalance is the minimum balance configured on new accounts.
var DefaultMinimumBalance = decimal.NewFromInt(500)

// Account maps to the accounts table. Balance is only ever mutated by a
// committed transaction row.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	AccountNumber  string          `json:"accountNumber"`
	CustomerID     uuid.UUID       `json:"customerId"`
	AccountType    AccountType     `json:"accountType"`
	Balance        decimal.Decimal `json:"balance"`
	MinimumBalance decimal.Decimal `json:"minimumBalance"`
	Currency       string          `json:"currency"`
	Status         AccountStatus   `json:"status"`
	IFSCCode       string          `json:"ifscCode"`
	BranchName     string          `json:"branchName"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CreateAccountRequest is the body of POST customer/accounts.
type CreateAccountRequest struct {
	AccountType AccountType `json:"accountType"`
	IFSCCode    string      `json:"ifscCode,omitempty"`
	BranchName  string      `json:"branchName,omitempty"`
}

// DepositRequest is the body of the teller deposit endpoint.
type DepositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}
