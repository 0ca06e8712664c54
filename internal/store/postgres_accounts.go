package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

const accountColumns = `id, account_number, customer_id, account_type, balance, minimum_balance,
	currency, status, ifsc_code, branch_name, created_at, updated_at`

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var accountType, status string
	err := row.Scan(
		&account.ID, &account.AccountNumber, &account.CustomerID, &accountType, &account.Balance,
		&account.MinimumBalance, &account.Currency, &status, &account.IFSCCode, &account.BranchName,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	account.AccountType = domain.AccountType(accountType)
	account.Status = domain.AccountStatus(status)
	return &account, nil
}

func insertAccount(ctx context.Context, tx pgx.Tx, account *domain.Account) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO accounts (
			id, account_number, customer_id, account_type, balance, minimum_balance,
			currency, status, ifsc_code, branch_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, account.ID, account.AccountNumber, account.CustomerID, string(account.AccountType), account.Balance,
		account.MinimumBalance, account.Currency, string(account.Status), account.IFSCCode, account.BranchName,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	return mapWriteError(err)
}

// CreateAccount opens a new account.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertAccount(ctx, tx, account); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindAccountByID retrieves an account by primary key.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
}

// FindAccountByNumber retrieves an account by its public number.
func (r *PostgresRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, accountNumber))
}

// ListAccountsByCustomer returns every account of a customer, oldest first.
func (r *PostgresRepository) ListAccountsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE customer_id = $1 ORDER BY created_at, id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// UpdateAccountStatus moves an account through its lifecycle under a row lock.
func (r *PostgresRepository) UpdateAccountStatus(ctx context.Context, accountNumber string, status domain.AccountStatus) (*domain.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1 FOR UPDATE`, accountNumber))
	if err != nil {
		return nil, err
	}
	if err := workflow.TransitionAccount(account.Status, status); err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at`,
		string(status), account.ID).Scan(&account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	account.Status = status

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return account, nil
}

// Transfer moves funds between two accounts in one transaction. Both rows are
// locked in account-number order so two opposing transfers cannot deadlock.
// Any failure rolls back both sides.
func (r *PostgresRepository) Transfer(ctx context.Context, params TransferParams) (*domain.TransferResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	first, second := params.FromAccountNumber, params.ToAccountNumber
	if first == second {
		return nil, workflow.ErrSameAccount
	}
	if second < first {
		first, second = second, first
	}
	locked := make(map[string]*domain.Account, 2)
	for _, number := range []string{first, second} {
		account, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1 FOR UPDATE`, number))
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", number, err)
		}
		locked[number] = account
	}
	source := locked[params.FromAccountNumber]
	destination := locked[params.ToAccountNumber]

	if source.CustomerID != params.OwnerCustomerID {
		return nil, ErrNotOwner
	}
	if source.Status != domain.AccountActive || destination.Status != domain.AccountActive {
		return nil, workflow.ErrAccountNotActive
	}
	if source.Balance.LessThan(params.Amount) {
		return nil, ErrInsufficientFunds
	}

	sourceBalance := source.Balance.Sub(params.Amount)
	destinationBalance := destination.Balance.Add(params.Amount)
	if err := setBalance(ctx, tx, source.ID, sourceBalance); err != nil {
		return nil, err
	}
	if err := setBalance(ctx, tx, destination.ID, destinationBalance); err != nil {
		return nil, err
	}

	debit := domain.Transaction{
		ID:                  uuid.New(),
		ReferenceNumber:     params.DebitReference,
		AccountID:           source.ID,
		AccountNumber:       source.AccountNumber,
		Type:                domain.TransactionDebit,
		Mode:                params.Mode,
		Amount:              params.Amount,
		BalanceAfter:        sourceBalance,
		Description:         params.Description,
		TargetAccountNumber: destination.AccountNumber,
		Status:              domain.TransactionSuccess,
	}
	credit := domain.Transaction{
		ID:                  uuid.New(),
		ReferenceNumber:     params.CreditReference,
		AccountID:           destination.ID,
		AccountNumber:       destination.AccountNumber,
		Type:                domain.TransactionCredit,
		Mode:                params.Mode,
		Amount:              params.Amount,
		BalanceAfter:        destinationBalance,
		Description:         params.Description,
		TargetAccountNumber: source.AccountNumber,
		Status:              domain.TransactionSuccess,
	}
	if err := insertTransaction(ctx, tx, &debit); err != nil {
		return nil, err
	}
	if err := insertTransaction(ctx, tx, &credit); err != nil {
		return nil, err
	}
	if params.OtpID != nil {
		tag, err := tx.Exec(ctx, `UPDATE otps SET used = TRUE WHERE id = $1 AND used = FALSE`, *params.OtpID)
		if err != nil {
			return nil, fmt.Errorf("failed to consume OTP: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrOtpNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.TransferResult{Debit: debit, Credit: credit}, nil
}

// Deposit credits cash to an account at the counter.
func (r *PostgresRepository) Deposit(ctx context.Context, params DepositParams) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1 FOR UPDATE`, params.AccountNumber))
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountActive {
		return nil, workflow.ErrAccountNotActive
	}

	balance := account.Balance.Add(params.Amount)
	if err := setBalance(ctx, tx, account.ID, balance); err != nil {
		return nil, err
	}

	row := domain.Transaction{
		ID:              uuid.New(),
		ReferenceNumber: params.Reference,
		AccountID:       account.ID,
		AccountNumber:   account.AccountNumber,
		Type:            domain.TransactionCredit,
		Mode:            domain.ModeCash,
		Amount:          params.Amount,
		BalanceAfter:    balance,
		Description:     params.Description,
		Status:          domain.TransactionSuccess,
	}
	if err := insertTransaction(ctx, tx, &row); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &row, nil
}

func setBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance decimal.Decimal) error {
	_, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`, balance, accountID)
	return err
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (
			id, reference_number, account_id, account_number, type, mode, amount,
			balance_after, description, target_account_number, status, failure_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, t.ID, t.ReferenceNumber, t.AccountID, t.AccountNumber, string(t.Type), string(t.Mode), t.Amount,
		t.BalanceAfter, t.Description, t.TargetAccountNumber, string(t.Status), t.FailureReason,
	).Scan(&t.CreatedAt)
	return mapWriteError(err)
}

const transactionColumns = `t.id, t.reference_number, t.account_id, t.account_number, t.type, t.mode, t.amount,
	t.balance_after, t.description, t.target_account_number, t.status, t.failure_reason, t.created_at`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var txType, mode, status string
	err := row.Scan(
		&t.ID, &t.ReferenceNumber, &t.AccountID, &t.AccountNumber, &txType, &mode, &t.Amount,
		&t.BalanceAfter, &t.Description, &t.TargetAccountNumber, &status, &t.FailureReason, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(txType)
	t.Mode = domain.TransferMode(mode)
	t.Status = domain.TransactionStatus(status)
	return &t, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ListTransactionsByAccount returns one page of an account's history, newest first.
func (r *PostgresRepository) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, req domain.PageRequest) ([]domain.Transaction, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions t
		WHERE t.account_id = $1
		ORDER BY t.created_at DESC, t.id
		LIMIT $2 OFFSET $3`, accountID, req.Size, req.Offset())
	if err != nil {
		return nil, 0, err
	}
	items, err := collectTransactions(rows)
	return items, total, err
}

// ListRecentTransactionsByCustomer returns the newest rows across all of a customer's accounts.
func (r *PostgresRepository) ListRecentTransactionsByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.customer_id = $1
		ORDER BY t.created_at DESC, t.id
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// lockCustomerKyc locks the customer row and returns its current aggregate status.
func lockCustomerKyc(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (domain.KycStatus, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT kyc_status FROM customers WHERE id = $1 FOR UPDATE`, customerID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrCustomerNotFound
		}
		return "", err
	}
	return domain.KycStatus(status), nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
