/**
 * @description
 * This file contains the core of the portal's business layer. The `Service`
 * struct orchestrates every customer and employee use case, coordinating the
 * repository, the notification sink, the KYC document store and the login/OTP
 * rate limiter.
 *
 * Key features:
 * - Validates requests with the pure workflow rules before touching storage.
 * - Delegates every state change to a single repository call, which re-checks
 *   the transition against the locked row.
 * - Persists a notification per user-visible event and forwards it to the sink.
 * - Writes audit rows for security-relevant actions.
 *
 * @dependencies
 * - github.com/sirupsen/logrus: Structured logging.
 * - github.com/shopspring/decimal: Money thresholds.
 * - internal/store, pkg/domain, pkg/workflow: Data access, models and rules.
 * - pkg/docstore: KYC document storage.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/internal/store"
	"github.com/finsecure/portal-core/pkg/docstore"
	"github.com/finsecure/portal-core/pkg/domain"
)

var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUserDisabled        = errors.New("user account is disabled")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrOtpRequired         = errors.New("an OTP is required for this transfer")
	ErrOtpInvalid          = errors.New("invalid OTP")
	ErrOtpExpired          = errors.New("OTP has expired")
	ErrOtpAttemptsExceeded = errors.New("too many OTP attempts")
	ErrDocumentTooLarge    = errors.New("document exceeds the upload limit")
	ErrRateLimited         = errors.New("too many requests")
)

// RateLimitError is returned when a limiter window is exhausted.
type RateLimitError struct {
	Scope             LimitScope
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: too many requests, retry after %ds", e.Scope, e.RetryAfterSeconds)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// NotificationSink forwards persisted notifications to the delivery pipeline.
type NotificationSink interface {
	PublishNotificationEvent(ctx context.Context, event domain.NotificationEvent) error
}

// RateLimiter counts login and OTP attempts.
type RateLimiter interface {
	Hit(ctx context.Context, scope LimitScope, subject string) (Attempt, error)
}

// Options carries the tunables read from configuration.
type Options struct {
	OtpTTL               time.Duration
	OtpMaxAttempts       int
	TransferOtpThreshold decimal.Decimal
	MaxUploadBytes       int64
}

func (o Options) withDefaults() Options {
	if o.OtpTTL <= 0 {
		o.OtpTTL = 5 * time.Minute
	}
	if o.OtpMaxAttempts <= 0 {
		o.OtpMaxAttempts = 5
	}
	if !o.TransferOtpThreshold.IsPositive() {
		o.TransferOtpThreshold = decimal.NewFromInt(10000)
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 5 << 20
	}
	return o
}

// Service provides the portal's business logic.
type Service struct {
	repo    store.Repository
	tokens  *TokenManager
	limiter RateLimiter
	sink    NotificationSink
	docs    docstore.Store
	opts    Options
	log     *logrus.Entry
	now     func() time.Time
}

// NewService creates a new portal service. limiter, sink and docs may be nil.
func NewService(
	repo store.Repository,
	tokens *TokenManager,
	limiter RateLimiter,
	sink NotificationSink,
	docs docstore.Store,
	opts Options,
	logger *logrus.Logger,
) *Service {
	return &Service{
		repo:    repo,
		tokens:  tokens,
		limiter: limiter,
		sink:    sink,
		docs:    docs,
		opts:    opts.withDefaults(),
		log:     logger.WithField("component", "service"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Tokens exposes the token manager to the HTTP middleware.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// notify persists a notification and hands it to the sink. Failures are logged
// and never fail the calling use case.
func (s *Service) notify(ctx context.Context, userID uuid.UUID, kind domain.NotificationType, title, message, refID, refType string) {
	if userID == uuid.Nil {
		return
	}
	n := &domain.Notification{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          kind,
		Title:         title,
		Message:       message,
		ReferenceID:   refID,
		ReferenceType: refType,
		CreatedAt:     s.now(),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.log.WithFields(logrus.Fields{"user_id": userID, "type": kind}).WithError(err).Warn("failed to persist notification")
		return
	}
	s.publish(ctx, domain.NotificationEvent{
		NotificationID: n.ID,
		UserID:         userID,
		Type:           kind,
		Title:          title,
		Message:        message,
		ReferenceID:    refID,
		ReferenceType:  refType,
		OccurredAt:     n.CreatedAt,
	})
}

func (s *Service) publish(ctx context.Context, event domain.NotificationEvent) {
	if s.sink == nil {
		return
	}
	if err := s.sink.PublishNotificationEvent(ctx, event); err != nil {
		s.log.WithFields(logrus.Fields{"notification_id": event.NotificationID, "type": event.Type}).WithError(err).Warn("failed to publish notification event")
	}
}

// notifyCustomer resolves the customer's login and notifies it.
func (s *Service) notifyCustomer(ctx context.Context, customerID uuid.UUID, kind domain.NotificationType, title, message, refID, refType string) {
	userID, err := s.repo.FindUserIDByCustomerID(ctx, customerID)
	if err != nil {
		s.log.WithField("customer_id", customerID).WithError(err).Warn("cannot resolve user for notification")
		return
	}
	s.notify(ctx, userID, kind, title, message, refID, refType)
}

func (s *Service) audit(ctx context.Context, userID *uuid.UUID, action, resource, resourceID string, result domain.AuditResult, detail string) {
	entry := &domain.AuditLog{
		ID:         uuid.New(),
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Result:     result,
		Detail:     detail,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.log.WithFields(logrus.Fields{"action": action, "resource": resource}).WithError(err).Warn("failed to write audit log")
	}
}

// throttle records an attempt. A limiter outage lets the request through.
func (s *Service) throttle(ctx context.Context, scope LimitScope, subject string) error {
	if s.limiter == nil {
		return nil
	}
	attempt, err := s.limiter.Hit(ctx, scope, subject)
	if err != nil {
		s.log.WithField("scope", scope).WithError(err).Warn("rate limiter unavailable; allowing request")
		return nil
	}
	if !attempt.Allowed() {
		return &RateLimitError{Scope: scope, RetryAfterSeconds: attempt.RetryAfterSeconds()}
	}
	return nil
}

// customer resolves the customer profile behind a login.
func (s *Service) customer(ctx context.Context, userID uuid.UUID) (*domain.Customer, error) {
	customer, err := s.repo.FindCustomerByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	return customer, nil
}

// randomDigits returns n uniformly random decimal digits.
func randomDigits(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

func newAccountNumber() (string, error) {
	digits, err := randomDigits(12)
	if err != nil {
		return "", err
	}
	return "FINS" + digits, nil
}

func newLoanNumber() (string, error) {
	digits, err := randomDigits(12)
	if err != nil {
		return "", err
	}
	return "LN" + digits, nil
}

// newReference builds a transaction reference: TXN, a UTC timestamp and six
// characters of a fresh UUID.
func newReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "TXN" + now.UTC().Format("20060102150405") + suffix
}
