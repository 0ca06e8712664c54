package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

// newIntegrationRepository connects to DATABASE_URL and applies the schema.
// Every seeded row uses fresh identifiers, so runs can share one database.
func newIntegrationRepository(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("expected pool, got %v", err)
	}
	t.Cleanup(pool.Close)
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("expected database to answer ping, got %v", err)
	}
	repo := NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("expected schema to apply, got %v", err)
	}
	return repo
}

func uniqueSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// seedCustomer registers a customer with one active savings account.
func seedCustomer(t *testing.T, repo *PostgresRepository, balance int64) (*domain.User, *domain.Customer, *domain.Account) {
	t.Helper()
	suffix := uniqueSuffix()
	user := &domain.User{
		ID: uuid.New(), Username: "it" + strings.ToLower(suffix), Email: strings.ToLower(suffix) + "@it.finsecure.in",
		PasswordHash: "x", Role: domain.RoleCustomer, Enabled: true,
	}
	customer := &domain.Customer{ID: uuid.New(), UserID: user.ID, FirstName: "Asha", LastName: suffix, KycStatus: domain.KycPending}
	account := &domain.Account{
		ID: uuid.New(), AccountNumber: "FINS" + suffix, CustomerID: customer.ID, AccountType: domain.AccountSavings,
		Balance: decimal.NewFromInt(balance), MinimumBalance: domain.DefaultMinimumBalance, Currency: domain.DefaultCurrency,
		Status: domain.AccountActive, IFSCCode: domain.DefaultIFSCCode, BranchName: domain.DefaultBranchName,
	}
	if err := repo.CreateCustomer(context.Background(), user, customer, account); err != nil {
		t.Fatalf("expected customer to be created, got %v", err)
	}
	return user, customer, account
}

func seedEmployee(t *testing.T, repo *PostgresRepository) uuid.UUID {
	t.Helper()
	user, _, _ := seedCustomer(t, repo, 0)
	return user.ID
}

func transferParams(owner uuid.UUID, from, to string, amount int64) TransferParams {
	return TransferParams{
		OwnerCustomerID:   owner,
		FromAccountNumber: from,
		ToAccountNumber:   to,
		Amount:            decimal.NewFromInt(amount),
		Mode:              domain.ModeIMPS,
		Description:       "rent",
		DebitReference:    "TXNIT" + uniqueSuffix(),
		CreditReference:   "TXNIT" + uniqueSuffix(),
	}
}

func ledger(t *testing.T, repo *PostgresRepository, account *domain.Account) []domain.Transaction {
	t.Helper()
	rows, _, err := repo.ListTransactionsByAccount(context.Background(), account.ID, domain.PageRequest{Page: 0, Size: 10})
	if err != nil {
		t.Fatalf("expected transactions, got %v", err)
	}
	return rows
}

func balanceOf(t *testing.T, repo *PostgresRepository, account *domain.Account) decimal.Decimal {
	t.Helper()
	current, err := repo.FindAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("expected account, got %v", err)
	}
	return current.Balance
}

func TestPostgresTransferWritesBothLegs(t *testing.T) {
	repo := newIntegrationRepository(t)
	_, sender, from := seedCustomer(t, repo, 10000)
	_, _, to := seedCustomer(t, repo, 0)

	result, err := repo.Transfer(context.Background(), transferParams(sender.ID, from.AccountNumber, to.AccountNumber, 5000))
	if err != nil {
		t.Fatalf("expected transfer to commit, got %v", err)
	}
	if !result.Debit.BalanceAfter.Equal(decimal.NewFromInt(5000)) || !result.Credit.BalanceAfter.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected both legs to report 5000, got debit %s credit %s", result.Debit.BalanceAfter, result.Credit.BalanceAfter)
	}

	debits := ledger(t, repo, from)
	if len(debits) != 1 || debits[0].Type != domain.TransactionDebit || !debits[0].BalanceAfter.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected one DEBIT row with balance 5000, got %+v", debits)
	}
	if debits[0].TargetAccountNumber != to.AccountNumber {
		t.Fatalf("expected debit to point at %s, got %s", to.AccountNumber, debits[0].TargetAccountNumber)
	}
	credits := ledger(t, repo, to)
	if len(credits) != 1 || credits[0].Type != domain.TransactionCredit || !credits[0].BalanceAfter.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected one CREDIT row with balance 5000, got %+v", credits)
	}
	if got := balanceOf(t, repo, from); !got.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected source balance 5000, got %s", got)
	}
	if got := balanceOf(t, repo, to); !got.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected destination balance 5000, got %s", got)
	}
}

func TestPostgresTransferRollsBack(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()

	t.Run("insufficient funds", func(t *testing.T) {
		_, sender, from := seedCustomer(t, repo, 1000)
		_, _, to := seedCustomer(t, repo, 200)

		_, err := repo.Transfer(ctx, transferParams(sender.ID, from.AccountNumber, to.AccountNumber, 5000))
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
		if rows := append(ledger(t, repo, from), ledger(t, repo, to)...); len(rows) != 0 {
			t.Fatalf("expected no ledger rows, got %d", len(rows))
		}
		if got := balanceOf(t, repo, from); !got.Equal(decimal.NewFromInt(1000)) {
			t.Fatalf("expected source balance unchanged, got %s", got)
		}
		if got := balanceOf(t, repo, to); !got.Equal(decimal.NewFromInt(200)) {
			t.Fatalf("expected destination balance unchanged, got %s", got)
		}
	})

	t.Run("used otp", func(t *testing.T) {
		user, sender, from := seedCustomer(t, repo, 20000)
		_, _, to := seedCustomer(t, repo, 0)
		otp := &domain.Otp{
			ID: uuid.New(), Email: user.Email, CodeHash: "x", Purpose: domain.OtpTransaction,
			ExpiresAt: time.Now().Add(time.Minute),
		}
		if err := repo.CreateOtp(ctx, otp); err != nil {
			t.Fatalf("expected otp to be stored, got %v", err)
		}
		if err := repo.ConsumeOtp(ctx, otp.ID); err != nil {
			t.Fatalf("expected otp to be consumed, got %v", err)
		}

		params := transferParams(sender.ID, from.AccountNumber, to.AccountNumber, 15000)
		params.OtpID = &otp.ID
		if _, err := repo.Transfer(ctx, params); !errors.Is(err, ErrOtpNotFound) {
			t.Fatalf("expected ErrOtpNotFound, got %v", err)
		}
		if rows := ledger(t, repo, from); len(rows) != 0 {
			t.Fatalf("expected no ledger rows, got %d", len(rows))
		}
		if got := balanceOf(t, repo, from); !got.Equal(decimal.NewFromInt(20000)) {
			t.Fatalf("expected source balance unchanged, got %s", got)
		}
	})

	t.Run("unused otp is spent with the transfer", func(t *testing.T) {
		user, sender, from := seedCustomer(t, repo, 20000)
		_, _, to := seedCustomer(t, repo, 0)
		otp := &domain.Otp{
			ID: uuid.New(), Email: user.Email, CodeHash: "x", Purpose: domain.OtpTransaction,
			ExpiresAt: time.Now().Add(time.Minute),
		}
		if err := repo.CreateOtp(ctx, otp); err != nil {
			t.Fatalf("expected otp to be stored, got %v", err)
		}

		params := transferParams(sender.ID, from.AccountNumber, to.AccountNumber, 15000)
		params.OtpID = &otp.ID
		if _, err := repo.Transfer(ctx, params); err != nil {
			t.Fatalf("expected transfer to commit, got %v", err)
		}
		if err := repo.ConsumeOtp(ctx, otp.ID); !errors.Is(err, ErrOtpNotFound) {
			t.Fatalf("expected otp to be used already, got %v", err)
		}
	})
}

func TestPostgresReviewRejectsDecidedRecords(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()
	reviewer := seedEmployee(t, repo)

	t.Run("kyc document", func(t *testing.T) {
		_, customer, _ := seedCustomer(t, repo, 0)
		doc := &domain.KycDocument{
			ID: uuid.New(), CustomerID: customer.ID, DocumentType: domain.DocPAN, DocumentNumber: "ABCDE1234F",
			FilePath: "kyc/it.pdf", FileName: "pan.pdf", MimeType: "application/pdf", Status: domain.DocumentUploaded,
		}
		if _, err := repo.CreateKycDocument(ctx, doc); err != nil {
			t.Fatalf("expected document to be recorded, got %v", err)
		}

		review := KycReview{DocumentID: doc.ID, ReviewerID: reviewer, Action: domain.ActionApprove}
		decided, _, err := repo.ReviewKycDocument(ctx, review)
		if err != nil {
			t.Fatalf("expected first review to commit, got %v", err)
		}
		if decided.Status != domain.DocumentApproved {
			t.Fatalf("expected APPROVED, got %s", decided.Status)
		}

		review.Action = domain.ActionReject
		review.Reason = "blurred scan"
		if _, _, err := repo.ReviewKycDocument(ctx, review); !errors.Is(err, workflow.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		docs, err := repo.ListKycDocumentsByCustomer(ctx, customer.ID)
		if err != nil || len(docs) != 1 || docs[0].Status != domain.DocumentApproved {
			t.Fatalf("expected the stored document to stay APPROVED, got %+v %v", docs, err)
		}
	})

	t.Run("loan", func(t *testing.T) {
		_, customer, _ := seedCustomer(t, repo, 0)
		loan := &domain.Loan{
			ID: uuid.New(), LoanNumber: "LNIT" + uniqueSuffix(), CustomerID: customer.ID, LoanType: domain.LoanPersonal,
			PrincipalAmount: decimal.NewFromInt(100000), InterestRate: decimal.NewFromFloat(10.5), TenureMonths: 12,
			EmiAmount: decimal.NewFromInt(8815), OutstandingAmount: decimal.NewFromInt(100000),
			TotalInterest: decimal.NewFromInt(5780), Status: domain.LoanApplied,
		}
		if err := repo.CreateLoan(ctx, loan); err != nil {
			t.Fatalf("expected loan to be recorded, got %v", err)
		}

		review := LoanReview{LoanID: loan.ID, ReviewerID: reviewer, Action: domain.ActionReject, Reason: "income not verified"}
		decided, err := repo.ReviewLoan(ctx, review)
		if err != nil {
			t.Fatalf("expected first review to commit, got %v", err)
		}
		if decided.Status != domain.LoanRejected {
			t.Fatalf("expected REJECTED, got %s", decided.Status)
		}

		review.Action = domain.ActionApprove
		review.Reason = ""
		if _, err := repo.ReviewLoan(ctx, review); !errors.Is(err, workflow.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		loans, err := repo.ListLoansByCustomer(ctx, customer.ID)
		if err != nil || len(loans) != 1 || loans[0].Status != domain.LoanRejected {
			t.Fatalf("expected the stored loan to stay REJECTED, got %+v %v", loans, err)
		}
	})
}

func TestPostgresCardIssuanceRechecksUnderLock(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()
	_, _, account := seedCustomer(t, repo, 0)

	newCard := func(cardType domain.CardType) *domain.Card {
		return &domain.Card{
			ID: uuid.New(), AccountID: account.ID, CardType: cardType, MaskedCardNumber: "XXXX-XXXX-XXXX-1234",
			CardNumberHash: "h", CvvHash: "h", CardHolderName: "ASHA", ExpiryDate: time.Now().AddDate(5, 0, 0),
			Status: domain.CardActive, OnlineEnabled: true, ContactlessEnabled: true,
		}
	}

	if err := repo.IssueDebitCard(ctx, newCard(domain.CardDebit)); err != nil {
		t.Fatalf("expected first debit card to be issued, got %v", err)
	}
	if err := repo.IssueDebitCard(ctx, newCard(domain.CardDebit)); !errors.Is(err, workflow.ErrDebitCardExists) {
		t.Fatalf("expected ErrDebitCardExists, got %v", err)
	}

	credit := newCard(domain.CardCredit)
	limit := decimal.NewFromInt(50000)
	credit.CreditLimit, credit.AvailableLimit = &limit, &limit
	if err := repo.IssueCreditCard(ctx, credit); !errors.Is(err, workflow.ErrKycNotApproved) {
		t.Fatalf("expected ErrKycNotApproved for a PENDING customer, got %v", err)
	}
}
