package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

const cardColumns = `c.id, c.account_id, a.account_number, c.card_type, c.masked_card_number, c.card_number_hash,
	c.cvv_hash, c.card_holder_name, c.expiry_date, c.status, c.international_enabled, c.online_enabled,
	c.contactless_enabled, c.credit_limit, c.available_limit, c.created_at`

func scanCard(row rowScanner) (*domain.Card, error) {
	var card domain.Card
	var cardType, status string
	var creditLimit, availableLimit decimal.NullDecimal
	err := row.Scan(
		&card.ID, &card.AccountID, &card.AccountNumber, &cardType, &card.MaskedCardNumber, &card.CardNumberHash,
		&card.CvvHash, &card.CardHolderName, &card.ExpiryDate, &status, &card.InternationalEnabled, &card.OnlineEnabled,
		&card.ContactlessEnabled, &creditLimit, &availableLimit, &card.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	card.CardType = domain.CardType(cardType)
	card.Status = domain.CardStatus(status)
	card.CreditLimit = nullableDecimal(creditLimit)
	card.AvailableLimit = nullableDecimal(availableLimit)
	return &card, nil
}

func insertCard(ctx context.Context, tx pgx.Tx, card *domain.Card) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO cards (
			id, account_id, card_type, masked_card_number, card_number_hash, cvv_hash, card_holder_name,
			expiry_date, status, international_enabled, online_enabled, contactless_enabled,
			credit_limit, available_limit
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`, card.ID, card.AccountID, string(card.CardType), card.MaskedCardNumber, card.CardNumberHash, card.CvvHash,
		card.CardHolderName, card.ExpiryDate, string(card.Status), card.InternationalEnabled, card.OnlineEnabled,
		card.ContactlessEnabled, toNullDecimal(card.CreditLimit), toNullDecimal(card.AvailableLimit),
	).Scan(&card.CreatedAt)
	return mapWriteError(err)
}

// IssueDebitCard inserts a debit card after re-checking the account under lock.
// The partial unique index on cards(account_id) backs the one-per-account rule.
func (r *PostgresRepository) IssueDebitCard(ctx context.Context, card *domain.Card) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, card.AccountID))
	if err != nil {
		return err
	}

	var existing int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM cards WHERE account_id = $1 AND card_type = 'DEBIT'`, account.ID).Scan(&existing); err != nil {
		return err
	}
	if err := workflow.CheckDebitIssuance(*account, existing > 0); err != nil {
		return err
	}

	card.AccountNumber = account.AccountNumber
	if err := insertCard(ctx, tx, card); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return workflow.ErrDebitCardExists
		}
		return err
	}
	return tx.Commit(ctx)
}

// IssueCreditCard inserts a credit card after re-checking the customer's KYC under lock.
func (r *PostgresRepository) IssueCreditCard(ctx context.Context, card *domain.Card) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, card.AccountID))
	if err != nil {
		return err
	}
	if account.Status != domain.AccountActive {
		return workflow.ErrAccountNotActive
	}
	kyc, err := lockCustomerKyc(ctx, tx, account.CustomerID)
	if err != nil {
		return err
	}
	limit := decimal.Zero
	if card.CreditLimit != nil {
		limit = *card.CreditLimit
	}
	if err := workflow.CheckCreditIssuance(kyc, limit); err != nil {
		return err
	}

	card.AccountNumber = account.AccountNumber
	if err := insertCard(ctx, tx, card); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListCardsByCustomer returns the cards on every account of a customer.
func (r *PostgresRepository) ListCardsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Card, error) {
	rows, err := r.db.Query(ctx, `SELECT `+cardColumns+` FROM cards c
		JOIN accounts a ON a.id = c.account_id
		WHERE a.customer_id = $1
		ORDER BY c.created_at, c.id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// ApplyCardAction locks the card, checks ownership and applies the action.
func (r *PostgresRepository) ApplyCardAction(ctx context.Context, customerID uuid.UUID, cardID uuid.UUID, action domain.CardAction) (*domain.Card, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var owner uuid.UUID
	card, err := scanCard(tx.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards c
		JOIN accounts a ON a.id = c.account_id
		WHERE c.id = $1
		FOR UPDATE OF c`, cardID))
	if err != nil {
		return nil, err
	}
	if err := tx.QueryRow(ctx, `SELECT customer_id FROM accounts WHERE id = $1`, card.AccountID).Scan(&owner); err != nil {
		return nil, err
	}
	if owner != customerID {
		return nil, ErrNotOwner
	}

	next, err := workflow.ApplyCardAction(*card, action)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE cards SET status = $1, international_enabled = $2, online_enabled = $3
		WHERE id = $4
	`, string(next.Status), next.InternationalEnabled, next.OnlineEnabled, next.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &next, nil
}
