/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface:
 * the shared plumbing (errors, schema bootstrap, row scanners) plus the user and
 * customer queries. Accounts, workflows and notifications live in sibling files.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: NUMERIC columns scan through sql.Scanner.
 * - pkg/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrCardNotFound      = errors.New("card not found")
	ErrDocumentNotFound  = errors.New("kyc document not found")
	ErrLoanNotFound      = errors.New("loan not found")
	ErrOtpNotFound       = errors.New("otp not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotOwner          = errors.New("resource does not belong to caller")
	ErrDuplicate         = errors.New("resource already exists")
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates missing tables and indexes. Every statement is idempotent.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func mapWriteError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func nullableDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func ilikePattern(search string) string {
	search = strings.TrimSpace(search)
	if search == "" {
		return ""
	}
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(search) + "%"
}

const userColumns = `id, username, email, password_hash, role, email_verified, enabled, created_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var role string
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &role, &user.EmailVerified, &user.Enabled, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", user.ID, err)
	}
	user.Role = parsed
	return &user, nil
}

// CreateCustomer registers a user, the customer profile and the opening account in one transaction.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, user *domain.User, customer *domain.Customer, account *domain.Account) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, email_verified, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role), user.EmailVerified, user.Enabled).Scan(&user.CreatedAt)
	if err != nil {
		return mapWriteError(err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO customers (
			id, user_id, first_name, last_name, phone, date_of_birth, pan_number,
			aadhar_number, address, city, state, pin_code, kyc_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`, customer.ID, customer.UserID, customer.FirstName, customer.LastName, customer.Phone, customer.DateOfBirth,
		customer.PanNumber, customer.AadharNumber, customer.Address, customer.City, customer.State, customer.PinCode,
		string(customer.KycStatus)).Scan(&customer.CreatedAt)
	if err != nil {
		return mapWriteError(err)
	}

	if account != nil {
		if err := insertAccount(ctx, tx, account); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindUserByIdentifier resolves a login identifier, which may be a username or an email.
func (r *PostgresRepository) FindUserByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($1) LIMIT 1`
	return scanUser(r.db.QueryRow(ctx, query, strings.TrimSpace(identifier)))
}

// FindUserByID retrieves a user by primary key.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// FindUserByEmail retrieves a user by email, case-insensitively.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
}

// MarkEmailVerified flags the user's email as verified.
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, email string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET email_verified = TRUE WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

const customerColumns = `c.id, c.user_id, c.first_name, c.last_name, c.phone, c.date_of_birth, c.pan_number,
	c.aadhar_number, c.address, c.city, c.state, c.pin_code, c.kyc_status, c.created_at`

func scanCustomerInto(row rowScanner, customer *domain.Customer, extra ...any) error {
	var kyc string
	dest := []any{
		&customer.ID, &customer.UserID, &customer.FirstName, &customer.LastName, &customer.Phone,
		&customer.DateOfBirth, &customer.PanNumber, &customer.AadharNumber, &customer.Address,
		&customer.City, &customer.State, &customer.PinCode, &kyc, &customer.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	customer.KycStatus = domain.KycStatus(kyc)
	return nil
}

// FindCustomerByUserID retrieves the customer profile owned by a user.
func (r *PostgresRepository) FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*domain.Customer, error) {
	var customer domain.Customer
	err := scanCustomerInto(r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers c WHERE c.user_id = $1`, userID), &customer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// GetCustomerProfile joins the customer with its login identity.
func (r *PostgresRepository) GetCustomerProfile(ctx context.Context, userID uuid.UUID) (*domain.CustomerProfile, error) {
	var profile domain.CustomerProfile
	query := `SELECT ` + customerColumns + `, u.email, u.username, u.email_verified
		FROM customers c JOIN users u ON u.id = c.user_id
		WHERE c.user_id = $1`
	err := scanCustomerInto(r.db.QueryRow(ctx, query, userID), &profile.Customer, &profile.Email, &profile.Username, &profile.EmailVerified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// ListCustomers returns one page of the customer directory, newest first. An
// optional search matches name, email, username or phone.
func (r *PostgresRepository) ListCustomers(ctx context.Context, req domain.PageRequest) ([]domain.CustomerProfile, int, error) {
	pattern := ilikePattern(req.Search)
	where := ""
	args := []any{}
	if pattern != "" {
		where = `WHERE c.first_name ILIKE $1 OR c.last_name ILIKE $1 OR u.email ILIKE $1 OR u.username ILIKE $1 OR c.phone ILIKE $1`
		args = append(args, pattern)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM customers c JOIN users u ON u.id = c.user_id ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`SELECT %s, u.email, u.username, u.email_verified
		FROM customers c JOIN users u ON u.id = c.user_id
		%s
		ORDER BY c.created_at DESC, c.id
		LIMIT $%d OFFSET $%d`, customerColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, listQuery, append(args, req.Size, req.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var profiles []domain.CustomerProfile
	for rows.Next() {
		var profile domain.CustomerProfile
		if err := scanCustomerInto(rows, &profile.Customer, &profile.Email, &profile.Username, &profile.EmailVerified); err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, total, rows.Err()
}

// CountCustomers returns the number of registered customers.
func (r *PostgresRepository) CountCustomers(ctx context.Context) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&total)
	return total, err
}

// CreateAuditLog appends an audit row.
func (r *PostgresRepository) CreateAuditLog(ctx context.Context, entry *domain.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_logs (id, user_id, action, resource, resource_id, result, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.UserID, entry.Action, entry.Resource, entry.ResourceID, string(entry.Result), entry.Detail, entry.CreatedAt)
	return err
}
