package workflow

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
)

func TestValidateLoanApplication_Bounds(t *testing.T) {
	tests := []struct {
		name      string
		principal int64
		tenure    int
		wantErr   error
	}{
		{name: "below_min_principal", principal: 9999, tenure: 12, wantErr: ErrPrincipalOutOfRange},
		{name: "min_principal", principal: 10_000, tenure: 12},
		{name: "max_principal", principal: 10_000_000, tenure: 360},
		{name: "above_max_principal", principal: 10_000_001, tenure: 12, wantErr: ErrPrincipalOutOfRange},
		{name: "below_min_tenure", principal: 50_000, tenure: 5, wantErr: ErrTenureOutOfRange},
		{name: "above_max_tenure", principal: 50_000, tenure: 361, wantErr: ErrTenureOutOfRange},
		{name: "typical", principal: 50_000, tenure: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLoanApplication(domain.LoanApplicationRequest{
				LoanType:        domain.LoanPersonal,
				PrincipalAmount: decimal.NewFromInt(tt.principal),
				TenureMonths:    tt.tenure,
			})
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !IsValidation(err) {
				t.Fatalf("expected a validation error, got %T", err)
			}
		})
	}
}

func TestValidateLoanApplication_UnknownType(t *testing.T) {
	err := ValidateLoanApplication(domain.LoanApplicationRequest{
		LoanType:        "YACHT",
		PrincipalAmount: decimal.NewFromInt(50_000),
		TenureMonths:    24,
	})
	if !errors.Is(err, ErrUnknownLoanType) {
		t.Fatalf("expected ErrUnknownLoanType, got %v", err)
	}
}

func TestLoanTransitionsNeverMoveBackward(t *testing.T) {
	for from, targets := range loanTransitions {
		for _, to := range targets {
			if LoanRank(to) <= LoanRank(from) {
				t.Fatalf("transition %s -> %s does not increase rank", from, to)
			}
		}
	}

	for _, from := range LoanStatuses() {
		for _, to := range LoanStatuses() {
			if LoanRank(to) < LoanRank(from) && CanTransitionLoan(from, to) {
				t.Fatalf("backward transition %s -> %s is allowed", from, to)
			}
		}
	}
}

func TestLoanTransitions_TerminalStates(t *testing.T) {
	for _, terminal := range []domain.LoanStatus{domain.LoanRejected, domain.LoanClosed} {
		for _, to := range LoanStatuses() {
			if CanTransitionLoan(terminal, to) {
				t.Fatalf("expected %s to be terminal, but %s is reachable", terminal, to)
			}
		}
	}
}

func TestReviewLoan(t *testing.T) {
	applied := domain.Loan{Status: domain.LoanApplied}

	approved, err := ReviewLoan(applied, domain.ActionApprove, "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if approved.Status != domain.LoanApproved {
		t.Fatalf("expected APPROVED, got %s", approved.Status)
	}

	if _, err := ReviewLoan(applied, domain.ActionReject, ""); !errors.Is(err, ErrRejectionReasonRequired) {
		t.Fatalf("expected ErrRejectionReasonRequired, got %v", err)
	}

	rejected, err := ReviewLoan(domain.Loan{Status: domain.LoanUnderReview}, domain.ActionReject, "income not verified")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rejected.Status != domain.LoanRejected || rejected.RejectionReason == nil || *rejected.RejectionReason != "income not verified" {
		t.Fatalf("unexpected rejected loan: %+v", rejected)
	}

	if _, err := ReviewLoan(approved, domain.ActionApprove, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected re-approval to be an invalid transition, got %v", err)
	}
	if _, err := ReviewLoan(domain.Loan{Status: domain.LoanActive}, domain.ActionReject, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected reviewer rejection of an active loan to fail, got %v", err)
	}
}

func TestTransitionLoan_ServicingPath(t *testing.T) {
	path := []domain.LoanStatus{domain.LoanApproved, domain.LoanDisbursed, domain.LoanActive, domain.LoanClosed}
	for i := 0; i+1 < len(path); i++ {
		if err := TransitionLoan(path[i], path[i+1]); err != nil {
			t.Fatalf("expected %s -> %s to be allowed, got %v", path[i], path[i+1], err)
		}
	}
	if err := TransitionLoan(domain.LoanApproved, domain.LoanApplied); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected APPROVED -> APPLIED to be refused, got %v", err)
	}
	if err := TransitionLoan(domain.LoanApproved, domain.LoanActive); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected disbursement to be required before activation, got %v", err)
	}
}
