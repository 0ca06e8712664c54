package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/internal/store"
	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

func newAccount(customerID uuid.UUID, number string, req domain.CreateAccountRequest, now time.Time) *domain.Account {
	ifsc := strings.ToUpper(strings.TrimSpace(req.IFSCCode))
	if ifsc == "" {
		ifsc = domain.DefaultIFSCCode
	}
	branch := strings.TrimSpace(req.BranchName)
	if branch == "" {
		branch = domain.DefaultBranchName
	}
	return &domain.Account{
		ID:             uuid.New(),
		AccountNumber:  number,
		CustomerID:     customerID,
		AccountType:    req.AccountType,
		Balance:        decimal.Zero,
		MinimumBalance: domain.DefaultMinimumBalance,
		Currency:       domain.DefaultCurrency,
		Status:         domain.AccountActive,
		IFSCCode:       ifsc,
		BranchName:     branch,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ListAccounts returns the caller's accounts.
func (s *Service) ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	customer, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAccountsByCustomer(ctx, customer.ID)
}

// OpenAccount opens an additional account for the caller.
func (s *Service) OpenAccount(ctx context.Context, userID uuid.UUID, req domain.CreateAccountRequest) (*domain.Account, error) {
	req.AccountType = domain.AccountType(strings.ToUpper(strings.TrimSpace(string(req.AccountType))))
	if err := workflow.ValidateAccountOpening(req); err != nil {
		return nil, err
	}
	customer, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}
	number, err := newAccountNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account number: %w", err)
	}

	account := newAccount(customer.ID, number, req, s.now())
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	s.notify(ctx, userID, domain.NotificationAccount, "Account opened",
		fmt.Sprintf("Your %s account %s is now active.", strings.ToLower(string(account.AccountType)), number), number, "ACCOUNT")
	return account, nil
}

// requiresOtp reports whether a transfer amount is above the OTP threshold.
func (s *Service) requiresOtp(amount decimal.Decimal) bool {
	return amount.GreaterThan(s.opts.TransferOtpThreshold)
}

// Transfer moves money between two accounts in one database transaction.
func (s *Service) Transfer(ctx context.Context, userID uuid.UUID, req domain.TransferRequest) (*domain.TransferResult, error) {
	req.FromAccountNumber = strings.TrimSpace(req.FromAccountNumber)
	req.ToAccountNumber = strings.TrimSpace(req.ToAccountNumber)
	req.Mode = domain.TransferMode(strings.ToUpper(strings.TrimSpace(string(req.Mode))))
	if err := workflow.ValidateTransfer(req); err != nil {
		return nil, err
	}

	customer, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The OTP is only matched here. The repository marks it used inside the
	// transfer transaction, so a rolled-back transfer leaves it valid.
	var otpID *uuid.UUID
	if s.requiresOtp(req.Amount) {
		if strings.TrimSpace(req.OtpCode) == "" {
			return nil, ErrOtpRequired
		}
		user, err := s.repo.FindUserByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		otp, err := s.matchOtp(ctx, user.Email, domain.OtpTransaction, req.OtpCode)
		if err != nil {
			return nil, err
		}
		otpID = &otp.ID
	}

	now := s.now()
	params := store.TransferParams{
		OwnerCustomerID:   customer.ID,
		FromAccountNumber: req.FromAccountNumber,
		ToAccountNumber:   req.ToAccountNumber,
		Amount:            req.Amount,
		Mode:              req.Mode,
		Description:       strings.TrimSpace(req.Description),
		DebitReference:    newReference(now),
		CreditReference:   newReference(now),
		OtpID:             otpID,
	}

	result, err := s.repo.Transfer(ctx, params)
	if errors.Is(err, store.ErrOtpNotFound) {
		err = ErrOtpInvalid
	}
	if err != nil {
		s.audit(ctx, &userID, "TRANSFER", "account", req.FromAccountNumber, domain.AuditFailure, err.Error())
		return nil, err
	}

	s.audit(ctx, &userID, "TRANSFER", "account", req.FromAccountNumber, domain.AuditSuccess,
		fmt.Sprintf("%s to %s via %s", req.Amount.StringFixed(2), req.ToAccountNumber, req.Mode))
	s.log.WithFields(logrus.Fields{
		"from":      req.FromAccountNumber,
		"to":        req.ToAccountNumber,
		"amount":    req.Amount.StringFixed(2),
		"reference": result.Debit.ReferenceNumber,
	}).Info("transfer committed")

	s.notify(ctx, userID, domain.NotificationTransaction, "Amount debited",
		fmt.Sprintf("INR %s debited from %s to %s. Available balance INR %s.",
			req.Amount.StringFixed(2), req.FromAccountNumber, req.ToAccountNumber, result.Debit.BalanceAfter.StringFixed(2)),
		result.Debit.ReferenceNumber, "TRANSACTION")
	s.notifyAccountOwner(ctx, result.Credit.AccountID, "Amount credited",
		fmt.Sprintf("INR %s credited to %s from %s.", req.Amount.StringFixed(2), req.ToAccountNumber, req.FromAccountNumber),
		result.Credit.ReferenceNumber)

	return result, nil
}

func (s *Service) notifyAccountOwner(ctx context.Context, accountID uuid.UUID, title, message, reference string) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		s.log.WithField("account_id", accountID).WithError(err).Warn("cannot resolve account owner for notification")
		return
	}
	s.notifyCustomer(ctx, account.CustomerID, domain.NotificationTransaction, title, message, reference, "TRANSACTION")
}

// ListTransactions pages the history of an account the caller owns.
func (s *Service) ListTransactions(ctx context.Context, userID, accountID uuid.UUID, req domain.PageRequest) (domain.Page[domain.Transaction], error) {
	customer, err := s.customer(ctx, userID)
	if err != nil {
		return domain.Page[domain.Transaction]{}, err
	}
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return domain.Page[domain.Transaction]{}, err
	}
	if account.CustomerID != customer.ID {
		return domain.Page[domain.Transaction]{}, store.ErrNotOwner
	}

	items, total, err := s.repo.ListTransactionsByAccount(ctx, accountID, req)
	if err != nil {
		return domain.Page[domain.Transaction]{}, fmt.Errorf("failed to list transactions: %w", err)
	}
	return domain.NewPage(items, req, total), nil
}

// Deposit records a teller cash deposit.
func (s *Service) Deposit(ctx context.Context, staffID uuid.UUID, accountNumber string, req domain.DepositRequest) (*domain.Transaction, error) {
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return nil, &workflow.ValidationError{Field: "accountNumber", Err: workflow.ErrAccountNumberRequired}
	}
	if err := workflow.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Cash deposit"
	}
	tx, err := s.repo.Deposit(ctx, store.DepositParams{
		AccountNumber: accountNumber,
		Amount:        req.Amount,
		Description:   description,
		Reference:     newReference(s.now()),
	})
	if err != nil {
		s.audit(ctx, &staffID, "DEPOSIT", "account", accountNumber, domain.AuditFailure, err.Error())
		return nil, err
	}

	s.audit(ctx, &staffID, "DEPOSIT", "account", accountNumber, domain.AuditSuccess, req.Amount.StringFixed(2))
	s.notifyAccountOwner(ctx, tx.AccountID, "Cash deposited",
		fmt.Sprintf("INR %s deposited to %s. Available balance INR %s.", req.Amount.StringFixed(2), accountNumber, tx.BalanceAfter.StringFixed(2)),
		tx.ReferenceNumber)
	return tx, nil
}

// UpdateAccountStatus moves an account through its lifecycle.
func (s *Service) UpdateAccountStatus(ctx context.Context, staffID uuid.UUID, accountNumber string, status domain.AccountStatus) (*domain.Account, error) {
	status = domain.AccountStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, &workflow.ValidationError{Field: "status", Err: fmt.Errorf("unknown account status %q", status)}
	}
	account, err := s.repo.UpdateAccountStatus(ctx, strings.TrimSpace(accountNumber), status)
	if err != nil {
		s.audit(ctx, &staffID, "ACCOUNT_STATUS", "account", accountNumber, domain.AuditFailure, err.Error())
		return nil, err
	}
	s.audit(ctx, &staffID, "ACCOUNT_STATUS", "account", accountNumber, domain.AuditSuccess, string(status))
	s.notifyCustomer(ctx, account.CustomerID, domain.NotificationAccount, "Account status changed",
		fmt.Sprintf("Account %s is now %s.", account.AccountNumber, strings.ToLower(string(account.Status))),
		account.AccountNumber, "ACCOUNT")
	return account, nil
}
