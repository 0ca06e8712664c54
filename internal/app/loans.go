package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/internal/store"
	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

// ListLoans returns the caller's loans.
func (s *Service) ListLoans(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error) {
	customer, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLoansByCustomer(ctx, customer.ID)
}

// ApplyLoan records a new APPLIED loan priced from the product rate table.
func (s *Service) ApplyLoan(ctx context.Context, userID uuid.UUID, req domain.LoanApplicationRequest) (*domain.Loan, error) {
	req.LoanType = domain.LoanType(strings.ToUpper(strings.TrimSpace(string(req.LoanType))))
	req.Purpose = strings.TrimSpace(req.Purpose)
	if err := workflow.ValidateLoanApplication(req); err != nil {
		return nil, err
	}

	customer, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if customer.KycStatus != domain.KycApproved {
		return nil, workflow.ErrKycNotApproved
	}

	quote, err := workflow.QuoteLoan(req.LoanType, req.PrincipalAmount, req.TenureMonths)
	if err != nil {
		return nil, err
	}
	number, err := newLoanNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate loan number: %w", err)
	}

	loan := &domain.Loan{
		ID:                uuid.New(),
		LoanNumber:        number,
		CustomerID:        customer.ID,
		LoanType:          req.LoanType,
		PrincipalAmount:   req.PrincipalAmount,
		InterestRate:      quote.InterestRate,
		TenureMonths:      req.TenureMonths,
		EmiAmount:         quote.EmiAmount,
		OutstandingAmount: req.PrincipalAmount,
		TotalInterest:     quote.TotalInterest,
		Purpose:           req.Purpose,
		Status:            domain.LoanApplied,
		CreatedAt:         s.now(),
	}
	if err := s.repo.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	s.notify(ctx, userID, domain.NotificationLoan, "Loan application received",
		fmt.Sprintf("Your %s loan application %s for INR %s is under consideration. Estimated EMI INR %s.",
			humanize(string(loan.LoanType)), loan.LoanNumber, loan.PrincipalAmount.StringFixed(2), loan.EmiAmount.StringFixed(2)),
		loan.ID.String(), "LOAN")
	return loan, nil
}

// PendingLoans pages the reviewer queue, oldest first.
func (s *Service) PendingLoans(ctx context.Context, req domain.PageRequest) (domain.Page[domain.Loan], error) {
	items, total, err := s.repo.ListPendingLoans(ctx, req)
	if err != nil {
		return domain.Page[domain.Loan]{}, fmt.Errorf("failed to list pending loans: %w", err)
	}
	return domain.NewPage(items, req, total), nil
}

// ReviewLoan applies a reviewer decision. Approval re-prices the loan.
func (s *Service) ReviewLoan(ctx context.Context, reviewerID, loanID uuid.UUID, req domain.LoanReviewRequest) (*domain.Loan, error) {
	if err := workflow.ValidateReview(req.Action, req.RejectionReason); err != nil {
		return nil, err
	}
	action := workflow.NormalizeAction(req.Action)

	loan, err := s.repo.ReviewLoan(ctx, store.LoanReview{
		LoanID:     loanID,
		ReviewerID: reviewerID,
		Action:     action,
		Reason:     req.RejectionReason,
	})
	if err != nil {
		s.audit(ctx, &reviewerID, "LOAN_"+string(action), "loan", loanID.String(), domain.AuditFailure, err.Error())
		return nil, err
	}
	s.audit(ctx, &reviewerID, "LOAN_"+string(action), "loan", loan.ID.String(), domain.AuditSuccess, string(loan.Status))

	switch loan.Status {
	case domain.LoanApproved:
		s.notifyCustomer(ctx, loan.CustomerID, domain.NotificationLoan, "Loan approved",
			fmt.Sprintf("Loan %s has been approved. EMI INR %s for %d months.", loan.LoanNumber, loan.EmiAmount.StringFixed(2), loan.TenureMonths),
			loan.ID.String(), "LOAN")
	case domain.LoanRejected:
		reason := ""
		if loan.RejectionReason != nil {
			reason = *loan.RejectionReason
		}
		s.notifyCustomer(ctx, loan.CustomerID, domain.NotificationLoan, "Loan rejected",
			fmt.Sprintf("Loan %s was rejected: %s", loan.LoanNumber, reason), loan.ID.String(), "LOAN")
	}
	return loan, nil
}

// DisburseApprovedLoans moves every APPROVED loan whose customer still has
// approved KYC to DISBURSED. It returns how many loans were disbursed.
func (s *Service) DisburseApprovedLoans(ctx context.Context) (int, error) {
	loans, err := s.repo.ListLoansByStatus(ctx, domain.LoanApproved)
	if err != nil {
		return 0, fmt.Errorf("failed to list approved loans: %w", err)
	}

	disbursed := 0
	for _, candidate := range loans {
		if err := ctx.Err(); err != nil {
			return disbursed, err
		}
		loan, err := s.repo.DisburseLoan(ctx, candidate.ID, s.now())
		if err != nil {
			entry := s.log.WithFields(logrus.Fields{"loan_id": candidate.ID, "loan_number": candidate.LoanNumber})
			if errors.Is(err, workflow.ErrKycNotApproved) || errors.Is(err, workflow.ErrInvalidTransition) {
				entry.WithError(err).Info("loan skipped for disbursement")
			} else {
				entry.WithError(err).Error("loan disbursement failed")
			}
			continue
		}
		disbursed++
		s.notifyCustomer(ctx, loan.CustomerID, domain.NotificationLoan, "Loan disbursed",
			fmt.Sprintf("INR %s for loan %s has been disbursed. First EMI is due on %s.",
				loan.PrincipalAmount.StringFixed(2), loan.LoanNumber, formatDate(loan.NextEmiDate)),
			loan.ID.String(), "LOAN")
	}
	return disbursed, nil
}

// CollectDueEmis books one EMI on every servicing loan that is due. It returns
// how many EMIs were collected.
func (s *Service) CollectDueEmis(ctx context.Context) (int, error) {
	loans, err := s.repo.ListLoansByStatus(ctx, domain.LoanDisbursed, domain.LoanActive)
	if err != nil {
		return 0, fmt.Errorf("failed to list servicing loans: %w", err)
	}

	now := s.now()
	collected := 0
	for _, candidate := range loans {
		if err := ctx.Err(); err != nil {
			return collected, err
		}
		if !workflow.IsEmiDue(candidate, now) {
			continue
		}
		loan, err := s.repo.CollectLoanEmi(ctx, candidate.ID, now)
		if err != nil {
			s.log.WithFields(logrus.Fields{"loan_id": candidate.ID, "loan_number": candidate.LoanNumber}).WithError(err).Error("emi collection failed")
			continue
		}
		if loan.OutstandingAmount.Equal(candidate.OutstandingAmount) {
			continue
		}
		collected++
		if loan.Status == domain.LoanClosed {
			s.notifyCustomer(ctx, loan.CustomerID, domain.NotificationLoan, "Loan closed",
				fmt.Sprintf("Loan %s has been fully repaid and is now closed.", loan.LoanNumber), loan.ID.String(), "LOAN")
		}
	}
	return collected, nil
}
