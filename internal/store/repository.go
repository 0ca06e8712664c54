/**
 * @description
 * This file defines the `Repository` interface, the contract for every data access
 * operation the portal backend needs. Workflow transitions are exposed as single
 * methods so the implementation can lock the row, re-validate the transition
 * against the locked state and commit in one database transaction.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: Identifiers.
 * - github.com/shopspring/decimal: Money amounts.
 * - pkg/domain: The portal's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
)

// TransferParams is everything the repository needs to commit a transfer.
type TransferParams struct {
	OwnerCustomerID   uuid.UUID
	FromAccountNumber string
	ToAccountNumber   string
	Amount            decimal.Decimal
	Mode              domain.TransferMode
	Description       string
	DebitReference    string
	CreditReference   string
	// OtpID, when set, is marked used in the same transaction as the
	// balance update.
	OtpID *uuid.UUID
}

// DepositParams describes a teller cash deposit.
type DepositParams struct {
	AccountNumber string
	Amount        decimal.Decimal
	Description   string
	Reference     string
}

// KycReview is a reviewer decision on a KYC document.
type KycReview struct {
	DocumentID uuid.UUID
	ReviewerID uuid.UUID
	Action     domain.ReviewAction
	Reason     string
	At         time.Time
}

// LoanReview is a reviewer decision on a loan.
type LoanReview struct {
	LoanID     uuid.UUID
	ReviewerID uuid.UUID
	Action     domain.ReviewAction
	Reason     string
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Users and customers
	CreateCustomer(ctx context.Context, user *domain.User, customer *domain.Customer, account *domain.Account) error
	FindUserByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkEmailVerified(ctx context.Context, email string) error
	FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*domain.Customer, error)
	FindUserIDByCustomerID(ctx context.Context, customerID uuid.UUID) (uuid.UUID, error)
	GetCustomerProfile(ctx context.Context, userID uuid.UUID) (*domain.CustomerProfile, error)
	ListCustomers(ctx context.Context, req domain.PageRequest) ([]domain.CustomerProfile, int, error)
	CountCustomers(ctx context.Context) (int, error)

	// Accounts and ledger
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListAccountsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Account, error)
	UpdateAccountStatus(ctx context.Context, accountNumber string, status domain.AccountStatus) (*domain.Account, error)
	Transfer(ctx context.Context, params TransferParams) (*domain.TransferResult, error)
	Deposit(ctx context.Context, params DepositParams) (*domain.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, req domain.PageRequest) ([]domain.Transaction, int, error)
	ListRecentTransactionsByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.Transaction, error)

	// Cards
	IssueDebitCard(ctx context.Context, card *domain.Card) error
	IssueCreditCard(ctx context.Context, card *domain.Card) error
	ListCardsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Card, error)
	ApplyCardAction(ctx context.Context, customerID uuid.UUID, cardID uuid.UUID, action domain.CardAction) (*domain.Card, error)

	// KYC
	CreateKycDocument(ctx context.Context, doc *domain.KycDocument) (domain.KycStatus, error)
	ListKycDocumentsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.KycDocument, error)
	ListPendingKycDocuments(ctx context.Context, req domain.PageRequest) ([]domain.KycDocument, int, error)
	ReviewKycDocument(ctx context.Context, review KycReview) (*domain.KycDocument, domain.KycStatus, error)

	// Loans
	CreateLoan(ctx context.Context, loan *domain.Loan) error
	ListLoansByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Loan, error)
	ListPendingLoans(ctx context.Context, req domain.PageRequest) ([]domain.Loan, int, error)
	ListLoansByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]domain.Loan, error)
	CountLoansByStatus(ctx context.Context, statuses ...domain.LoanStatus) (int, error)
	ReviewLoan(ctx context.Context, review LoanReview) (*domain.Loan, error)
	DisburseLoan(ctx context.Context, loanID uuid.UUID, now time.Time) (*domain.Loan, error)
	CollectLoanEmi(ctx context.Context, loanID uuid.UUID, now time.Time) (*domain.Loan, error)
	FindCustomerUserIDByLoan(ctx context.Context, loanID uuid.UUID) (uuid.UUID, error)

	// Notifications
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, req domain.PageRequest) ([]domain.Notification, int, error)
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error)

	// OTPs
	CreateOtp(ctx context.Context, otp *domain.Otp) error
	FindLatestOtp(ctx context.Context, email string, purpose domain.OtpPurpose) (*domain.Otp, error)
	RecordOtpAttempt(ctx context.Context, otpID uuid.UUID) (int, error)
	ConsumeOtp(ctx context.Context, otpID uuid.UUID) error
	PurgeExpiredOtps(ctx context.Context, before time.Time) (int64, error)

	// Audit and counters
	CreateAuditLog(ctx context.Context, entry *domain.AuditLog) error
	CountPendingKycDocuments(ctx context.Context) (int, error)
}
