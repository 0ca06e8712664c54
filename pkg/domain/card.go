package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CardType string

const (
	CardDebit  CardType = "DEBIT"
	CardCredit CardType = "CREDIT"
)

type CardStatus string

const (
	CardActive  CardStatus = "ACTIVE"
	CardBlocked CardStatus = "BLOCKED"
)

// CardAction is a self-service mutation requested on a card.
type CardAction string

const (
	CardActionBlock                CardAction = "BLOCK"
	CardActionUnblock              CardAction = "UNBLOCK"
	CardActionEnableInternational  CardAction = "ENABLE_INTERNATIONAL"
	CardActionDisableInternational CardAction = "DISABLE_INTERNATIONAL"
	CardActionEnableOnline         CardAction = "ENABLE_ONLINE"
	CardActionDisableOnline        CardAction = "DISABLE_ONLINE"
)

// Card maps to the cards table. The full card number and CVV are never stored.
type Card struct {
	ID                   uuid.UUID        `json:"id"`
	AccountID            uuid.UUID        `json:"accountId"`
	AccountNumber        string           `json:"accountNumber"`
	CardType             CardType         `json:"cardType"`
	MaskedCardNumber     string           `json:"maskedCardNumber"`
	CardNumberHash       string           `json:"-"`
	CvvHash              string           `json:"-"`
	CardHolderName       string           `json:"cardHolderName"`
	ExpiryDate           time.Time        `json:"expiryDate"`
	Status               CardStatus       `json:"status"`
	InternationalEnabled bool             `json:"internationalEnabled"`
	OnlineEnabled        bool             `json:"onlineEnabled"`
	ContactlessEnabled   bool             `json:"contactlessEnabled"`
	CreditLimit          *decimal.Decimal `json:"creditLimit,omitempty"`
	AvailableLimit       *decimal.Decimal `json:"availableLimit,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
}

// CardActionRequest is the body of POST customer/cards/action.
type CardActionRequest struct {
	CardID uuid.UUID  `json:"cardId"`
	Action CardAction `json:"action"`
}

// CreditCardRequest is the body of POST customer/cards/{accountId}/issue-credit.
type CreditCardRequest struct {
	CreditLimit decimal.Decimal `json:"creditLimit"`
}
