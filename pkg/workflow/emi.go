package workflow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
)

var annualRates = map[domain.LoanType]decimal.Decimal{
	domain.LoanHome:      decimal.RequireFromString("8.5"),
	domain.LoanCar:       decimal.RequireFromString("9.5"),
	domain.LoanPersonal:  decimal.RequireFromString("12.5"),
	domain.LoanEducation: decimal.RequireFromString("7.5"),
	domain.LoanBusiness:  decimal.RequireFromString("11.0"),
	domain.LoanGold:      decimal.RequireFromString("10.0"),
}

// AnnualRate returns the product rate in percent per annum.
func AnnualRate(loanType domain.LoanType) (decimal.Decimal, error) {
	rate, ok := annualRates[loanType]
	if !ok {
		return decimal.Zero, invalid("loanType", ErrUnknownLoanType)
	}
	return rate, nil
}

// Quote is the repayment schedule summary for a loan.
type Quote struct {
	InterestRate  decimal.Decimal
	EmiAmount     decimal.Decimal
	TotalInterest decimal.Decimal
}

func monthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.DivRound(decimal.NewFromInt(1200), 10)
}

// ComputeEmi returns P*r*(1+r)^n / ((1+r)^n - 1) rounded half-up to paise.
func ComputeEmi(principal, annualRate decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return decimal.Zero
	}
	r := monthlyRate(annualRate)
	if r.IsZero() {
		return principal.DivRound(decimal.NewFromInt(int64(months)), 2)
	}

	growth := decimal.NewFromInt(1)
	onePlusR := growth.Add(r)
	for i := 0; i < months; i++ {
		growth = growth.Mul(onePlusR).Round(20)
	}
	numerator := principal.Mul(r).Mul(growth)
	denominator := growth.Sub(decimal.NewFromInt(1))
	return numerator.DivRound(denominator, 2)
}

// QuoteLoan prices a loan product. totalInterest is emi*n - principal.
func QuoteLoan(loanType domain.LoanType, principal decimal.Decimal, months int) (Quote, error) {
	rate, err := AnnualRate(loanType)
	if err != nil {
		return Quote{}, err
	}
	emi := ComputeEmi(principal, rate, months)
	return Quote{
		InterestRate:  rate,
		EmiAmount:     emi,
		TotalInterest: emi.Mul(decimal.NewFromInt(int64(months))).Sub(principal),
	}, nil
}

// Installment is the split of one EMI collection.
type Installment struct {
	Interest  decimal.Decimal
	Principal decimal.Decimal
}

// Disburse moves an approved loan to DISBURSED and schedules the first EMI one
// month out. kyc is the customer's aggregate status at the time of the call.
func Disburse(loan domain.Loan, kyc domain.KycStatus, now time.Time) (domain.Loan, error) {
	if kyc != domain.KycApproved {
		return loan, ErrKycNotApproved
	}
	if err := TransitionLoan(loan.Status, domain.LoanDisbursed); err != nil {
		return loan, err
	}
	next := loan
	next.Status = domain.LoanDisbursed
	disbursed := now
	firstEmi := now.AddDate(0, 1, 0)
	next.DisbursementDate = &disbursed
	next.NextEmiDate = &firstEmi
	return next, nil
}

// CollectEmi applies one installment to a serviced loan. The first collection
// activates a DISBURSED loan; the one that clears the outstanding amount closes it.
func CollectEmi(loan domain.Loan, now time.Time) (domain.Loan, Installment, error) {
	next := loan
	switch loan.Status {
	case domain.LoanDisbursed:
		if err := TransitionLoan(loan.Status, domain.LoanActive); err != nil {
			return loan, Installment{}, err
		}
		next.Status = domain.LoanActive
	case domain.LoanActive:
	default:
		return loan, Installment{}, &TransitionError{Entity: "loan", From: string(loan.Status), To: string(domain.LoanActive)}
	}

	interest := loan.OutstandingAmount.Mul(monthlyRate(loan.InterestRate)).Round(2)
	principalPart := loan.EmiAmount.Sub(interest)
	if principalPart.IsNegative() {
		principalPart = decimal.Zero
	}
	if principalPart.GreaterThanOrEqual(loan.OutstandingAmount) {
		principalPart = loan.OutstandingAmount
	}
	next.OutstandingAmount = loan.OutstandingAmount.Sub(principalPart)

	if next.OutstandingAmount.IsZero() {
		next.Status = domain.LoanClosed
		closed := now
		next.ClosedDate = &closed
		next.NextEmiDate = nil
	} else {
		due := now.AddDate(0, 1, 0)
		if loan.NextEmiDate != nil {
			due = loan.NextEmiDate.AddDate(0, 1, 0)
		}
		next.NextEmiDate = &due
	}
	return next, Installment{Interest: interest, Principal: principalPart}, nil
}

// IsEmiDue reports whether a serviced loan has an installment due at now.
func IsEmiDue(loan domain.Loan, now time.Time) bool {
	if loan.Status != domain.LoanDisbursed && loan.Status != domain.LoanActive {
		return false
	}
	return loan.NextEmiDate != nil && !loan.NextEmiDate.After(now)
}
