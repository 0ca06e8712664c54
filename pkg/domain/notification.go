package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTransaction NotificationType = "TRANSACTION"
	NotificationLoan        NotificationType = "LOAN"
	NotificationKyc         NotificationType = "KYC"
	NotificationAccount     NotificationType = "ACCOUNT"
	NotificationCard        NotificationType = "CARD"
	NotificationSecurity    NotificationType = "SECURITY"
	NotificationGeneral     NotificationType = "GENERAL"
)

// Notification maps to the notifications table.
type Notification struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"userId"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	IsRead        bool             `json:"isRead"`
	ReferenceID   string           `json:"referenceId,omitempty"`
	ReferenceType string           `json:"referenceType,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// NotificationEvent is the payload handed to the notification sink. Delivery
// (email, SMS, push) happens downstream of the broker.
type NotificationEvent struct {
	NotificationID uuid.UUID        `json:"notificationId"`
	UserID         uuid.UUID        `json:"userId"`
	Email          string           `json:"email,omitempty"`
	Type           NotificationType `json:"type"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	ReferenceID    string           `json:"referenceId,omitempty"`
	ReferenceType  string           `json:"referenceType,omitempty"`
	OccurredAt     time.Time        `json:"occurredAt"`
}

// OtpPurpose scopes a one-time password to a single flow.
type OtpPurpose string

const (
	OtpEmailVerification OtpPurpose = "EMAIL_VERIFICATION"
	OtpLogin             OtpPurpose = "LOGIN"
	OtpTransaction       OtpPurpose = "TRANSACTION"
	OtpPasswordReset     OtpPurpose = "PASSWORD_RESET"
	OtpCardActivation    OtpPurpose = "CARD_ACTIVATION"
)

// Valid reports whether p is a known purpose.
func (p OtpPurpose) Valid() bool {
	switch p {
	case OtpEmailVerification, OtpLogin, OtpTransaction, OtpPasswordReset, OtpCardActivation:
		return true
	}
	return false
}

// Otp maps to the otps table. The code itself is stored hashed.
type Otp struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	CodeHash     string     `json:"-"`
	Purpose      OtpPurpose `json:"purpose"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	Used         bool       `json:"used"`
	AttemptCount int        `json:"attemptCount"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// OtpSendRequest is the body of POST auth/otp/send.
type OtpSendRequest struct {
	Email   string     `json:"email"`
	Purpose OtpPurpose `json:"purpose"`
}

// OtpVerifyRequest is the body of POST auth/otp/verify.
type OtpVerifyRequest struct {
	Email   string     `json:"email"`
	Purpose OtpPurpose `json:"purpose"`
	Code    string     `json:"otpCode"`
}

type AuditResult string

const (
	AuditSuccess      AuditResult = "SUCCESS"
	AuditFailure      AuditResult = "FAILURE"
	AuditUnauthorized AuditResult = "UNAUTHORIZED"
)

// AuditLog maps to the audit_logs table.
type AuditLog struct {
	ID         uuid.UUID   `json:"id"`
	UserID     *uuid.UUID  `json:"userId,omitempty"`
	Action     string      `json:"action"`
	Resource   string      `json:"resource"`
	ResourceID string      `json:"resourceId,omitempty"`
	Result     AuditResult `json:"result"`
	Detail     string      `json:"detail,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}
