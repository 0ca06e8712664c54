package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanType string

const (
	LoanHome      LoanType = "HOME"
	LoanPersonal  LoanType = "PERSONAL"
	LoanCar       LoanType = "CAR"
	LoanEducation LoanType = "EDUCATION"
	LoanBusiness  LoanType = "BUSINESS"
	LoanGold      LoanType = "GOLD"
)

// Valid reports whether t is a known loan product.
func (t LoanType) Valid() bool {
	switch t {
	case LoanHome, LoanPersonal, LoanCar, LoanEducation, LoanBusiness, LoanGold:
		return true
	}
	return false
}

type LoanStatus string

const (
	LoanApplied     LoanStatus = "APPLIED"
	LoanUnderReview LoanStatus = "UNDER_REVIEW"
	LoanApproved    LoanStatus = "APPROVED"
	LoanRejected    LoanStatus = "REJECTED"
	LoanDisbursed   LoanStatus = "DISBURSED"
	LoanActive      LoanStatus = "ACTIVE"
	LoanClosed      LoanStatus = "CLOSED"
)

// Loan maps to the loans table. EMI figures are computed server-side only.
type Loan struct {
	ID                uuid.UUID       `json:"id"`
	LoanNumber        string          `json:"loanNumber"`
	CustomerID        uuid.UUID       `json:"customerId"`
	LoanType          LoanType        `json:"loanType"`
	PrincipalAmount   decimal.Decimal `json:"principalAmount"`
	InterestRate      decimal.Decimal `json:"interestRate"`
	TenureMonths      int             `json:"tenureMonths"`
	EmiAmount         decimal.Decimal `json:"emiAmount"`
	OutstandingAmount decimal.Decimal `json:"outstandingAmount"`
	TotalInterest     decimal.Decimal `json:"totalInterest"`
	Purpose           string          `json:"purpose,omitempty"`
	Status            LoanStatus      `json:"status"`
	RejectionReason   *string         `json:"rejectionReason,omitempty"`
	ReviewedBy        *uuid.UUID      `json:"reviewedBy,omitempty"`
	DisbursementDate  *time.Time      `json:"disbursementDate,omitempty"`
	NextEmiDate       *time.Time      `json:"nextEmiDate,omitempty"`
	ClosedDate        *time.Time      `json:"closedDate,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// LoanApplicationRequest is the body of POST customer/loans/apply.
type LoanApplicationRequest struct {
	LoanType        LoanType        `json:"loanType"`
	PrincipalAmount decimal.Decimal `json:"principalAmount"`
	TenureMonths    int             `json:"tenureMonths"`
	Purpose         string          `json:"purpose,omitempty"`
}

// LoanReviewRequest is the body of POST employee/loans/{id}/review.
type LoanReviewRequest struct {
	Action          ReviewAction `json:"action"`
	RejectionReason string       `json:"rejectionReason,omitempty"`
}
