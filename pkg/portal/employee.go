package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

func (c *Client) EmployeeDashboard(ctx context.Context) (*domain.EmployeeDashboard, error) {
	if err := c.Gate(StaffRoles); err != nil {
		return nil, err
	}
	var dash domain.EmployeeDashboard
	if err := c.call(ctx, http.MethodGet, "employee/dashboard", nil, nil, &dash); err != nil {
		return nil, err
	}
	return &dash, nil
}

// VerifyKycDocument records a reviewer decision. A rejection needs a reason
// and is refused locally without one.
func (c *Client) VerifyKycDocument(ctx context.Context, req domain.KycVerificationRequest) (*domain.KycDocument, error) {
	if err := c.Gate(StaffRoles); err != nil {
		return nil, err
	}
	if req.DocumentID == uuid.Nil {
		return nil, validationError(errors.New("document id is required"))
	}
	req.Action = workflow.NormalizeAction(req.Action)
	if err := workflow.ValidateReview(req.Action, req.RejectionReason); err != nil {
		return nil, validationError(err)
	}
	var doc domain.KycDocument
	if err := c.call(ctx, http.MethodPost, "employee/kyc/verify", nil, jsonBody(req), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) ReviewLoan(ctx context.Context, loanID uuid.UUID, req domain.LoanReviewRequest) (*domain.Loan, error) {
	if err := c.Gate(StaffRoles); err != nil {
		return nil, err
	}
	if loanID == uuid.Nil {
		return nil, validationError(errors.New("loan id is required"))
	}
	req.Action = workflow.NormalizeAction(req.Action)
	if err := workflow.ValidateReview(req.Action, req.RejectionReason); err != nil {
		return nil, validationError(err)
	}
	var loan domain.Loan
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("employee/loans/%s/review", loanID), nil, jsonBody(req), &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

// Deposit credits cash to an account at the counter.
func (c *Client) Deposit(ctx context.Context, accountNumber string, req domain.DepositRequest) (*domain.Transaction, error) {
	if err := c.Gate(StaffRoles); err != nil {
		return nil, err
	}
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return nil, validationError(workflow.ErrAccountNumberRequired)
	}
	if err := workflow.ValidateAmount(req.Amount); err != nil {
		return nil, validationError(err)
	}
	var tx domain.Transaction
	path := fmt.Sprintf("employee/accounts/%s/deposit", url.PathEscape(accountNumber))
	if err := c.call(ctx, http.MethodPost, path, nil, jsonBody(req), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) UpdateAccountStatus(ctx context.Context, accountNumber string, status domain.AccountStatus) (*domain.Account, error) {
	if err := c.Gate(StaffRoles); err != nil {
		return nil, err
	}
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return nil, validationError(workflow.ErrAccountNumberRequired)
	}
	status = domain.AccountStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, validationError(fmt.Errorf("unknown account status %q", status))
	}
	var account domain.Account
	path := fmt.Sprintf("employee/accounts/%s/status", url.PathEscape(accountNumber))
	body := jsonBody(map[string]domain.AccountStatus{"status": status})
	if err := c.call(ctx, http.MethodPost, path, nil, body, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
