package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

const kycColumns = `d.id, d.customer_id, trim(c.first_name || ' ' || c.last_name), d.document_type, d.document_number,
	d.file_path, d.file_name, d.mime_type, d.status, d.rejection_reason, d.verified_by, d.verified_at, d.created_at`

func scanKycDocument(row rowScanner) (*domain.KycDocument, error) {
	var doc domain.KycDocument
	var docType, status string
	err := row.Scan(
		&doc.ID, &doc.CustomerID, &doc.CustomerName, &docType, &doc.DocumentNumber,
		&doc.FilePath, &doc.FileName, &doc.MimeType, &status, &doc.RejectionReason, &doc.VerifiedBy, &doc.VerifiedAt, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	doc.DocumentType = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func collectKycDocuments(rows pgx.Rows) ([]domain.KycDocument, error) {
	defer rows.Close()
	var docs []domain.KycDocument
	for rows.Next() {
		doc, err := scanKycDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// refreshKycStatus recomputes the customer aggregate from every document. The
// customer row must already be locked by the caller.
func refreshKycStatus(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (domain.KycStatus, error) {
	rows, err := tx.Query(ctx, `SELECT `+kycColumns+` FROM kyc_documents d
		JOIN customers c ON c.id = d.customer_id
		WHERE d.customer_id = $1`, customerID)
	if err != nil {
		return "", err
	}
	docs, err := collectKycDocuments(rows)
	if err != nil {
		return "", err
	}

	status := workflow.AggregateKycStatus(docs)
	if _, err := tx.Exec(ctx, `UPDATE customers SET kyc_status = $1 WHERE id = $2`, string(status), customerID); err != nil {
		return "", err
	}
	return status, nil
}

// CreateKycDocument stores an uploaded document and refreshes the customer's aggregate status.
func (r *PostgresRepository) CreateKycDocument(ctx context.Context, doc *domain.KycDocument) (domain.KycStatus, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockCustomerKyc(ctx, tx, doc.CustomerID); err != nil {
		return "", err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO kyc_documents (id, customer_id, document_type, document_number, file_path, file_name, mime_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, doc.ID, doc.CustomerID, string(doc.DocumentType), doc.DocumentNumber, doc.FilePath, doc.FileName, doc.MimeType,
		string(doc.Status)).Scan(&doc.CreatedAt)
	if err != nil {
		return "", mapWriteError(err)
	}

	status, err := refreshKycStatus(ctx, tx, doc.CustomerID)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return status, nil
}

// ListKycDocumentsByCustomer returns a customer's documents, newest first.
func (r *PostgresRepository) ListKycDocumentsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.KycDocument, error) {
	rows, err := r.db.Query(ctx, `SELECT `+kycColumns+` FROM kyc_documents d
		JOIN customers c ON c.id = d.customer_id
		WHERE d.customer_id = $1
		ORDER BY d.created_at DESC, d.id`, customerID)
	if err != nil {
		return nil, err
	}
	return collectKycDocuments(rows)
}

// ListPendingKycDocuments returns one page of the review queue, oldest first.
func (r *PostgresRepository) ListPendingKycDocuments(ctx context.Context, req domain.PageRequest) ([]domain.KycDocument, int, error) {
	total, err := r.CountPendingKycDocuments(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `SELECT `+kycColumns+` FROM kyc_documents d
		JOIN customers c ON c.id = d.customer_id
		WHERE d.status IN ('UPLOADED', 'UNDER_REVIEW')
		ORDER BY d.created_at, d.id
		LIMIT $1 OFFSET $2`, req.Size, req.Offset())
	if err != nil {
		return nil, 0, err
	}
	docs, err := collectKycDocuments(rows)
	return docs, total, err
}

// CountPendingKycDocuments counts documents still awaiting a decision.
func (r *PostgresRepository) CountPendingKycDocuments(ctx context.Context) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM kyc_documents WHERE status IN ('UPLOADED', 'UNDER_REVIEW')`).Scan(&total)
	return total, err
}

// ReviewKycDocument applies a reviewer decision. The document and its customer
// are locked so concurrent reviewers see at most one committed outcome.
func (r *PostgresRepository) ReviewKycDocument(ctx context.Context, review KycReview) (*domain.KycDocument, domain.KycStatus, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var customerID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT customer_id FROM kyc_documents WHERE id = $1`, review.DocumentID).Scan(&customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrDocumentNotFound
		}
		return nil, "", err
	}
	// Customer first, then document: the same order CreateKycDocument uses.
	if _, err := lockCustomerKyc(ctx, tx, customerID); err != nil {
		return nil, "", err
	}
	doc, err := scanKycDocument(tx.QueryRow(ctx, `SELECT `+kycColumns+` FROM kyc_documents d
		JOIN customers c ON c.id = d.customer_id
		WHERE d.id = $1
		FOR UPDATE OF d`, review.DocumentID))
	if err != nil {
		return nil, "", err
	}

	next, err := workflow.ReviewDocument(*doc, review.Action, review.Reason)
	if err != nil {
		return nil, "", err
	}
	at := review.At
	if at.IsZero() {
		at = nowUTC()
	}
	reviewer := review.ReviewerID
	next.VerifiedBy = &reviewer
	next.VerifiedAt = &at

	_, err = tx.Exec(ctx, `
		UPDATE kyc_documents SET status = $1, rejection_reason = $2, verified_by = $3, verified_at = $4
		WHERE id = $5
	`, string(next.Status), next.RejectionReason, next.VerifiedBy, next.VerifiedAt, next.ID)
	if err != nil {
		return nil, "", err
	}

	status, err := refreshKycStatus(ctx, tx, customerID)
	if err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return &next, status, nil
}

const loanColumns = `id, loan_number, customer_id, loan_type, principal_amount, interest_rate, tenure_months,
	emi_amount, outstanding_amount, total_interest, purpose, status, rejection_reason, reviewed_by,
	disbursement_date, next_emi_date, closed_date, created_at`

func scanLoan(row rowScanner) (*domain.Loan, error) {
	var loan domain.Loan
	var loanType, status string
	err := row.Scan(
		&loan.ID, &loan.LoanNumber, &loan.CustomerID, &loanType, &loan.PrincipalAmount, &loan.InterestRate,
		&loan.TenureMonths, &loan.EmiAmount, &loan.OutstandingAmount, &loan.TotalInterest, &loan.Purpose,
		&status, &loan.RejectionReason, &loan.ReviewedBy, &loan.DisbursementDate, &loan.NextEmiDate,
		&loan.ClosedDate, &loan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	loan.LoanType = domain.LoanType(loanType)
	loan.Status = domain.LoanStatus(status)
	return &loan, nil
}

func collectLoans(rows pgx.Rows) ([]domain.Loan, error) {
	defer rows.Close()
	var loans []domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *loan)
	}
	return loans, rows.Err()
}

func loanStatusArgs(statuses []domain.LoanStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// CreateLoan inserts a new application.
func (r *PostgresRepository) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO loans (
			id, loan_number, customer_id, loan_type, principal_amount, interest_rate, tenure_months,
			emi_amount, outstanding_amount, total_interest, purpose, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, loan.ID, loan.LoanNumber, loan.CustomerID, string(loan.LoanType), loan.PrincipalAmount, loan.InterestRate,
		loan.TenureMonths, loan.EmiAmount, loan.OutstandingAmount, loan.TotalInterest, loan.Purpose, string(loan.Status),
	).Scan(&loan.CreatedAt)
	return mapWriteError(err)
}

// ListLoansByCustomer returns a customer's loans, newest first.
func (r *PostgresRepository) ListLoansByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Loan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+loanColumns+` FROM loans WHERE customer_id = $1 ORDER BY created_at DESC, id`, customerID)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

// ListPendingLoans returns one page of the loan review queue, oldest first.
func (r *PostgresRepository) ListPendingLoans(ctx context.Context, req domain.PageRequest) ([]domain.Loan, int, error) {
	pending := []domain.LoanStatus{domain.LoanApplied, domain.LoanUnderReview}
	total, err := r.CountLoansByStatus(ctx, pending...)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `SELECT `+loanColumns+` FROM loans
		WHERE status = ANY($1)
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, loanStatusArgs(pending), req.Size, req.Offset())
	if err != nil {
		return nil, 0, err
	}
	loans, err := collectLoans(rows)
	return loans, total, err
}

// ListLoansByStatus returns every loan in one of the given states.
func (r *PostgresRepository) ListLoansByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]domain.Loan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+loanColumns+` FROM loans WHERE status = ANY($1) ORDER BY created_at, id`, loanStatusArgs(statuses))
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

// CountLoansByStatus counts loans in one of the given states.
func (r *PostgresRepository) CountLoansByStatus(ctx context.Context, statuses ...domain.LoanStatus) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM loans WHERE status = ANY($1)`, loanStatusArgs(statuses)).Scan(&total)
	return total, err
}

// FindCustomerUserIDByLoan resolves the login identity that owns a loan.
func (r *PostgresRepository) FindCustomerUserIDByLoan(ctx context.Context, loanID uuid.UUID) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT c.user_id FROM loans l JOIN customers c ON c.id = l.customer_id WHERE l.id = $1`, loanID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrLoanNotFound
		}
		return uuid.Nil, err
	}
	return userID, nil
}

// FindUserIDByCustomerID resolves the login identity behind a customer profile.
func (r *PostgresRepository) FindUserIDByCustomerID(ctx context.Context, customerID uuid.UUID) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT user_id FROM customers WHERE id = $1`, customerID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrCustomerNotFound
		}
		return uuid.Nil, err
	}
	return userID, nil
}

func lockLoan(ctx context.Context, tx pgx.Tx, loanID uuid.UUID) (*domain.Loan, error) {
	return scanLoan(tx.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, loanID))
}

func saveLoanState(ctx context.Context, tx pgx.Tx, loan *domain.Loan) error {
	_, err := tx.Exec(ctx, `
		UPDATE loans SET
			status = $1, rejection_reason = $2, reviewed_by = $3, interest_rate = $4, emi_amount = $5,
			total_interest = $6, outstanding_amount = $7, disbursement_date = $8, next_emi_date = $9, closed_date = $10
		WHERE id = $11
	`, string(loan.Status), loan.RejectionReason, loan.ReviewedBy, loan.InterestRate, loan.EmiAmount,
		loan.TotalInterest, loan.OutstandingAmount, loan.DisbursementDate, loan.NextEmiDate, loan.ClosedDate, loan.ID)
	return err
}

// ReviewLoan applies a reviewer decision under a row lock. Approval re-prices
// the loan from the current product rate.
func (r *PostgresRepository) ReviewLoan(ctx context.Context, review LoanReview) (*domain.Loan, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	loan, err := lockLoan(ctx, tx, review.LoanID)
	if err != nil {
		return nil, err
	}
	next, err := workflow.ReviewLoan(*loan, review.Action, review.Reason)
	if err != nil {
		return nil, err
	}
	if next.Status == domain.LoanApproved {
		quote, err := workflow.QuoteLoan(next.LoanType, next.PrincipalAmount, next.TenureMonths)
		if err != nil {
			return nil, err
		}
		next.InterestRate = quote.InterestRate
		next.EmiAmount = quote.EmiAmount
		next.TotalInterest = quote.TotalInterest
	}
	reviewer := review.ReviewerID
	next.ReviewedBy = &reviewer

	if err := saveLoanState(ctx, tx, &next); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &next, nil
}

// DisburseLoan moves an approved loan to DISBURSED if the customer's KYC is
// still approved at disbursement time.
func (r *PostgresRepository) DisburseLoan(ctx context.Context, loanID uuid.UUID, now time.Time) (*domain.Loan, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var customerID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT customer_id FROM loans WHERE id = $1`, loanID).Scan(&customerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	kyc, err := lockCustomerKyc(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	loan, err := lockLoan(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}

	next, err := workflow.Disburse(*loan, kyc, now)
	if err != nil {
		return nil, err
	}
	if err := saveLoanState(ctx, tx, &next); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &next, nil
}

// CollectLoanEmi applies one installment to a serviced loan.
func (r *PostgresRepository) CollectLoanEmi(ctx context.Context, loanID uuid.UUID, now time.Time) (*domain.Loan, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	loan, err := lockLoan(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if !workflow.IsEmiDue(*loan, now) {
		return loan, nil
	}
	next, _, err := workflow.CollectEmi(*loan, now)
	if err != nil {
		return nil, err
	}
	if err := saveLoanState(ctx, tx, &next); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &next, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
