/**
 * @description
 * Ledger rows and the transfer request DTO.
 *
 * @notes
 * - A transfer produces exactly two rows (one DEBIT on the source, one CREDIT on
 *   the destination) written in the same database transaction. Rows are never
 *   updated after insert.
 * - Amounts are decimal rupees with two fractional digits.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

// TransferMode is the settlement rail requested by the customer.
type TransferMode string

const (
	ModeNEFT TransferMode = "NEFT"
	ModeRTGS TransferMode = "RTGS"
	ModeIMPS TransferMode = "IMPS"
	ModeUPI  TransferMode = "UPI"
	// ModeCash is only used by teller deposits.
	ModeCash TransferMode = "CASH"
)

// TransferModes lists the modes a customer transfer may use.
var TransferModes = []TransferMode{ModeNEFT, ModeRTGS, ModeIMPS, ModeUPI}

type TransactionStatus string

const (
	TransactionSuccess  TransactionStatus = "SUCCESS"
	TransactionFailed   TransactionStatus = "FAILED"
	TransactionPending  TransactionStatus = "PENDING"
	TransactionReversed TransactionStatus = "REVERSED"
)

// Transaction maps to the transactions table.
type Transaction struct {
	ID                  uuid.UUID         `json:"id"`
	ReferenceNumber     string            `json:"referenceNumber"`
	AccountID           uuid.UUID         `json:"accountId"`
	AccountNumber       string            `json:"accountNumber"`
	Type                TransactionType   `json:"type"`
	Mode                TransferMode      `json:"mode"`
	Amount              decimal.Decimal   `json:"amount"`
	BalanceAfter        decimal.Decimal   `json:"balanceAfter"`
	Description         string            `json:"description,omitempty"`
	TargetAccountNumber string            `json:"targetAccountNumber,omitempty"`
	Status              TransactionStatus `json:"status"`
	FailureReason       *string           `json:"failureReason,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
}

// TransferRequest is the body of POST customer/transactions/transfer.
type TransferRequest struct {
	FromAccountNumber string          `json:"fromAccountNumber"`
	ToAccountNumber   string          `json:"toAccountNumber"`
	Amount            decimal.Decimal `json:"amount"`
	Mode              TransferMode    `json:"mode"`
	Description       string          `json:"description,omitempty"`
	OtpCode           string          `json:"otpCode,omitempty"`
}

// TransferResult is returned after a committed transfer.
type TransferResult struct {
	Debit  Transaction `json:"debit"`
	Credit Transaction `json:"credit"`
}
