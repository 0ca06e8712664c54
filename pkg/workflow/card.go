package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
)

var cardTransitions = map[domain.CardStatus][]domain.CardStatus{
	domain.CardActive:  {domain.CardBlocked},
	domain.CardBlocked: {domain.CardActive},
}

// CanTransitionCard reports whether the card status table allows from -> to.
func CanTransitionCard(from, to domain.CardStatus) bool {
	for _, next := range cardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NormalizeCardAction upper-cases and trims a requested card action.
func NormalizeCardAction(raw domain.CardAction) domain.CardAction {
	return domain.CardAction(strings.ToUpper(strings.TrimSpace(string(raw))))
}

// ValidateCardAction rejects actions outside the closed set.
func ValidateCardAction(action domain.CardAction) error {
	switch NormalizeCardAction(action) {
	case domain.CardActionBlock, domain.CardActionUnblock,
		domain.CardActionEnableInternational, domain.CardActionDisableInternational,
		domain.CardActionEnableOnline, domain.CardActionDisableOnline:
		return nil
	}
	return invalid("action", ErrUnknownAction)
}

// ApplyCardAction returns the card after the action. Block state and the usage
// flags are independent: toggling a flag is allowed on a blocked card.
func ApplyCardAction(card domain.Card, action domain.CardAction) (domain.Card, error) {
	if err := ValidateCardAction(action); err != nil {
		return card, err
	}

	next := card
	switch NormalizeCardAction(action) {
	case domain.CardActionBlock:
		if !CanTransitionCard(card.Status, domain.CardBlocked) {
			return card, &TransitionError{Entity: "card", From: string(card.Status), To: string(domain.CardBlocked)}
		}
		next.Status = domain.CardBlocked
	case domain.CardActionUnblock:
		if !CanTransitionCard(card.Status, domain.CardActive) {
			return card, &TransitionError{Entity: "card", From: string(card.Status), To: string(domain.CardActive)}
		}
		next.Status = domain.CardActive
	case domain.CardActionEnableInternational:
		next.InternationalEnabled = true
	case domain.CardActionDisableInternational:
		next.InternationalEnabled = false
	case domain.CardActionEnableOnline:
		next.OnlineEnabled = true
	case domain.CardActionDisableOnline:
		next.OnlineEnabled = false
	}
	return next, nil
}

// CheckDebitIssuance validates self-service debit issuance against an owned account.
func CheckDebitIssuance(account domain.Account, hasDebitCard bool) error {
	if account.Status != domain.AccountActive {
		return ErrAccountNotActive
	}
	if hasDebitCard {
		return ErrDebitCardExists
	}
	return nil
}

// CheckCreditIssuance is the KYC gate for credit cards. It is a precondition on
// the customer, not a state of the card.
func CheckCreditIssuance(kyc domain.KycStatus, creditLimit decimal.Decimal) error {
	if !creditLimit.IsPositive() {
		return invalid("creditLimit", ErrCreditLimitRequired)
	}
	if kyc != domain.KycApproved {
		return ErrKycNotApproved
	}
	return nil
}
