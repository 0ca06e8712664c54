package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
)

// Policy bounds for a new loan application.
var (
	MinPrincipal = decimal.NewFromInt(10_000)
	MaxPrincipal = decimal.NewFromInt(10_000_000)
)

const (
	MinTenureMonths = 6
	MaxTenureMonths = 360
	maxPurposeLen   = 500
)

var loanTransitions = map[domain.LoanStatus][]domain.LoanStatus{
	domain.LoanApplied:     {domain.LoanUnderReview, domain.LoanApproved, domain.LoanRejected},
	domain.LoanUnderReview: {domain.LoanApproved, domain.LoanRejected},
	domain.LoanApproved:    {domain.LoanDisbursed},
	domain.LoanDisbursed:   {domain.LoanActive},
	domain.LoanActive:      {domain.LoanClosed},
	domain.LoanRejected:    nil,
	domain.LoanClosed:      nil,
}

// loanRank orders statuses along the lifecycle. Every entry in loanTransitions
// strictly increases the rank, which is what keeps the status monotone.
var loanRank = map[domain.LoanStatus]int{
	domain.LoanApplied:     0,
	domain.LoanUnderReview: 1,
	domain.LoanApproved:    2,
	domain.LoanRejected:    2,
	domain.LoanDisbursed:   3,
	domain.LoanActive:      4,
	domain.LoanClosed:      5,
}

// LoanRank exposes the lifecycle position of a status.
func LoanRank(status domain.LoanStatus) int {
	if rank, ok := loanRank[status]; ok {
		return rank
	}
	return -1
}

// LoanStatuses returns every known loan status.
func LoanStatuses() []domain.LoanStatus {
	statuses := make([]domain.LoanStatus, 0, len(loanTransitions))
	for status := range loanTransitions {
		statuses = append(statuses, status)
	}
	return statuses
}

// CanTransitionLoan reports whether the loan table allows from -> to.
func CanTransitionLoan(from, to domain.LoanStatus) bool {
	for _, next := range loanTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionLoan checks a servicing move (disbursement, activation, closure).
func TransitionLoan(from, to domain.LoanStatus) error {
	if !CanTransitionLoan(from, to) {
		return &TransitionError{Entity: "loan", From: string(from), To: string(to)}
	}
	return nil
}

// IsLoanReviewable reports whether a reviewer can still decide on the loan.
func IsLoanReviewable(status domain.LoanStatus) bool {
	return status == domain.LoanApplied || status == domain.LoanUnderReview
}

// ValidateLoanApplication enforces the policy bounds on a new application.
func ValidateLoanApplication(req domain.LoanApplicationRequest) error {
	if !req.LoanType.Valid() {
		return invalid("loanType", ErrUnknownLoanType)
	}
	if req.PrincipalAmount.LessThan(MinPrincipal) || req.PrincipalAmount.GreaterThan(MaxPrincipal) {
		return invalid("principalAmount", ErrPrincipalOutOfRange)
	}
	if req.TenureMonths < MinTenureMonths || req.TenureMonths > MaxTenureMonths {
		return invalid("tenureMonths", ErrTenureOutOfRange)
	}
	if len(req.Purpose) > maxPurposeLen {
		return invalid("purpose", ErrPurposeTooLong)
	}
	return nil
}

// ReviewLoan applies a reviewer decision to a loan still awaiting review.
func ReviewLoan(loan domain.Loan, action domain.ReviewAction, reason string) (domain.Loan, error) {
	if err := ValidateReview(action, reason); err != nil {
		return loan, err
	}

	var target domain.LoanStatus
	switch NormalizeAction(action) {
	case domain.ActionApprove:
		target = domain.LoanApproved
	case domain.ActionReject:
		target = domain.LoanRejected
	case domain.ActionReview:
		target = domain.LoanUnderReview
	}

	if !IsLoanReviewable(loan.Status) || !CanTransitionLoan(loan.Status, target) {
		return loan, &TransitionError{Entity: "loan", From: string(loan.Status), To: string(target)}
	}

	next := loan
	next.Status = target
	next.RejectionReason = nil
	if target == domain.LoanRejected {
		trimmed := strings.TrimSpace(reason)
		next.RejectionReason = &trimmed
	}
	return next, nil
}
