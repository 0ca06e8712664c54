package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/finsecure/portal-core/internal/store"
	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

// ListCards returns every card on the caller's accounts.
func (s *Service) ListCards(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	customer, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCardsByCustomer(ctx, customer.ID)
}

// IssueDebitCard issues the single debit card of an owned account. No review step.
func (s *Service) IssueDebitCard(ctx context.Context, userID, accountID uuid.UUID) (*domain.Card, error) {
	customer, account, err := s.ownedAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	card, err := s.newCard(customer, account.ID, domain.CardDebit)
	if err != nil {
		return nil, err
	}
	if err := s.repo.IssueDebitCard(ctx, card); err != nil {
		return nil, err
	}

	s.audit(ctx, &userID, "ISSUE_CARD", "card", card.ID.String(), domain.AuditSuccess, string(card.CardType))
	s.notify(ctx, userID, domain.NotificationCard, "Debit card issued",
		fmt.Sprintf("Debit card %s has been issued on account %s.", card.MaskedCardNumber, card.AccountNumber),
		card.ID.String(), "CARD")
	return card, nil
}

// IssueCreditCard issues a credit card. The customer's KYC must be APPROVED.
func (s *Service) IssueCreditCard(ctx context.Context, userID, accountID uuid.UUID, req domain.CreditCardRequest) (*domain.Card, error) {
	customer, account, err := s.ownedAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if err := workflow.CheckCreditIssuance(customer.KycStatus, req.CreditLimit); err != nil {
		return nil, err
	}

	card, err := s.newCard(customer, account.ID, domain.CardCredit)
	if err != nil {
		return nil, err
	}
	limit := req.CreditLimit.Round(2)
	available := limit
	card.CreditLimit = &limit
	card.AvailableLimit = &available

	if err := s.repo.IssueCreditCard(ctx, card); err != nil {
		return nil, err
	}

	s.audit(ctx, &userID, "ISSUE_CARD", "card", card.ID.String(), domain.AuditSuccess, string(card.CardType))
	s.notify(ctx, userID, domain.NotificationCard, "Credit card issued",
		fmt.Sprintf("Credit card %s has been issued with a limit of INR %s.", card.MaskedCardNumber, limit.StringFixed(2)),
		card.ID.String(), "CARD")
	return card, nil
}

// CardAction applies a self-service action to one of the caller's cards.
func (s *Service) CardAction(ctx context.Context, userID uuid.UUID, req domain.CardActionRequest) (*domain.Card, error) {
	if req.CardID == uuid.Nil {
		return nil, &workflow.ValidationError{Field: "cardId", Err: errors.New("card id is required")}
	}
	if err := workflow.ValidateCardAction(req.Action); err != nil {
		return nil, err
	}
	action := workflow.NormalizeCardAction(req.Action)

	customer, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}
	card, err := s.repo.ApplyCardAction(ctx, customer.ID, req.CardID, action)
	if err != nil {
		s.audit(ctx, &userID, "CARD_ACTION", "card", req.CardID.String(), domain.AuditFailure, string(action))
		return nil, err
	}

	s.audit(ctx, &userID, "CARD_ACTION", "card", card.ID.String(), domain.AuditSuccess, string(action))
	if action == domain.CardActionBlock || action == domain.CardActionUnblock {
		s.notify(ctx, userID, domain.NotificationCard, "Card "+strings.ToLower(string(card.Status)),
			fmt.Sprintf("Card %s is now %s.", card.MaskedCardNumber, strings.ToLower(string(card.Status))),
			card.ID.String(), "CARD")
	}
	return card, nil
}

func (s *Service) ownedAccount(ctx context.Context, userID, accountID uuid.UUID) (*domain.Customer, *domain.Account, error) {
	customer, err := s.customer(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if account.CustomerID != customer.ID {
		return nil, nil, store.ErrNotOwner
	}
	return customer, account, nil
}

// newCard generates a card number and CVV. Only the masked number and the
// bcrypt hashes leave this function.
func (s *Service) newCard(customer *domain.Customer, accountID uuid.UUID, cardType domain.CardType) (*domain.Card, error) {
	number, err := newCardNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate card number: %w", err)
	}
	cvv, err := randomDigits(3)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cvv: %w", err)
	}
	numberHash, err := bcrypt.GenerateFromPassword([]byte(number), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	cvvHash, err := bcrypt.GenerateFromPassword([]byte(cvv), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &domain.Card{
		ID:                 uuid.New(),
		AccountID:          accountID,
		CardType:           cardType,
		MaskedCardNumber:   MaskCardNumber(number),
		CardNumberHash:     string(numberHash),
		CvvHash:            string(cvvHash),
		CardHolderName:     strings.ToUpper(customer.FullName()),
		ExpiryDate:         now.AddDate(5, 0, 0),
		Status:             domain.CardActive,
		OnlineEnabled:      true,
		ContactlessEnabled: true,
		CreatedAt:          now,
	}, nil
}

// newCardNumber returns a 16-digit number starting with 4 with a valid Luhn check digit.
func newCardNumber() (string, error) {
	body, err := randomDigits(14)
	if err != nil {
		return "", err
	}
	partial := "4" + body
	return partial + string(rune('0'+luhnCheckDigit(partial))), nil
}

func luhnCheckDigit(partial string) int {
	sum := 0
	double := true
	for i := len(partial) - 1; i >= 0; i-- {
		d := int(partial[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// MaskCardNumber keeps the last four digits: "**** **** **** 1234".
func MaskCardNumber(number string) string {
	if len(number) < 4 {
		return "**** **** **** ****"
	}
	return "**** **** **** " + number[len(number)-4:]
}

