package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/finsecure/portal-core/internal/store"
	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

const minPasswordLength = 8

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		return nil, &workflow.ValidationError{Field: "identifier", Err: errors.New("username or email is required")}
	}
	if req.Password == "" {
		return nil, &workflow.ValidationError{Field: "password", Err: errors.New("password is required")}
	}
	if err := s.throttle(ctx, LimitLogin, identifier); err != nil {
		return nil, err
	}

	user, err := s.repo.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.audit(ctx, nil, "LOGIN", "user", identifier, domain.AuditFailure, "unknown identifier")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.audit(ctx, &user.ID, "LOGIN", "user", user.ID.String(), domain.AuditFailure, "bad password")
		return nil, ErrInvalidCredentials
	}
	if !user.Enabled {
		s.audit(ctx, &user.ID, "LOGIN", "user", user.ID.String(), domain.AuditUnauthorized, "user disabled")
		return nil, ErrUserDisabled
	}

	token, err := s.tokens.Issue(*user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	s.audit(ctx, &user.ID, "LOGIN", "user", user.ID.String(), domain.AuditSuccess, "")
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user logged in")

	return &domain.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokens.TTL() / time.Second),
		Role:      user.Role,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
	}, nil
}

// Register creates a customer login, its profile and an opening savings account.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResponse, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	var dob *time.Time
	if strings.TrimSpace(req.DateOfBirth) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(req.DateOfBirth))
		if err != nil {
			return nil, &workflow.ValidationError{Field: "dateOfBirth", Err: errors.New("date of birth must be YYYY-MM-DD")}
		}
		dob = &parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	accountNumber, err := newAccountNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account number: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
		Enabled:      true,
		CreatedAt:    now,
	}
	customer := &domain.Customer{
		ID:           uuid.New(),
		UserID:       user.ID,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		DateOfBirth:  dob,
		PanNumber:    strings.ToUpper(strings.TrimSpace(req.PanNumber)),
		AadharNumber: strings.TrimSpace(req.AadharNumber),
		Address:      strings.TrimSpace(req.Address),
		City:         strings.TrimSpace(req.City),
		State:        strings.TrimSpace(req.State),
		PinCode:      strings.TrimSpace(req.PinCode),
		KycStatus:    domain.KycPending,
		CreatedAt:    now,
	}
	account := newAccount(customer.ID, accountNumber, domain.CreateAccountRequest{AccountType: domain.AccountSavings}, now)

	if err := s.repo.CreateCustomer(ctx, user, customer, account); err != nil {
		return nil, fmt.Errorf("failed to register customer: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "account_number": accountNumber}).Info("customer registered")

	if err := s.issueOtp(ctx, user.ID, user.Email, domain.OtpEmailVerification); err != nil {
		s.log.WithField("user_id", user.ID).WithError(err).Warn("failed to send verification OTP")
	}
	s.notify(ctx, user.ID, domain.NotificationAccount, "Welcome to FinSecure",
		fmt.Sprintf("Your savings account %s is ready.", accountNumber), accountNumber, "ACCOUNT")

	return &domain.RegisterResponse{
		UserID:        user.ID,
		Username:      user.Username,
		Email:         user.Email,
		AccountNumber: accountNumber,
	}, nil
}

func validateRegistration(req domain.RegisterRequest) error {
	username := strings.TrimSpace(req.Username)
	if len(username) < 3 || len(username) > 50 {
		return &workflow.ValidationError{Field: "username", Err: errors.New("username must be 3 to 50 characters")}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return &workflow.ValidationError{Field: "email", Err: errors.New("email is invalid")}
	}
	if len(req.Password) < minPasswordLength {
		return &workflow.ValidationError{Field: "password", Err: fmt.Errorf("password must be at least %d characters", minPasswordLength)}
	}
	if strings.TrimSpace(req.FirstName) == "" {
		return &workflow.ValidationError{Field: "firstName", Err: errors.New("first name is required")}
	}
	phone := strings.TrimSpace(req.Phone)
	if len(phone) != 10 || strings.IndexFunc(phone, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return &workflow.ValidationError{Field: "phone", Err: errors.New("phone must be 10 digits")}
	}
	return nil
}

// SendOtp issues a fresh code for email and purpose, retiring earlier ones.
func (s *Service) SendOtp(ctx context.Context, req domain.OtpSendRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return &workflow.ValidationError{Field: "email", Err: errors.New("email is invalid")}
	}
	if !req.Purpose.Valid() {
		return &workflow.ValidationError{Field: "purpose", Err: errors.New("unknown OTP purpose")}
	}
	if err := s.throttle(ctx, LimitOtpSend, email); err != nil {
		return err
	}

	var userID uuid.UUID
	if user, err := s.repo.FindUserByEmail(ctx, email); err == nil {
		userID = user.ID
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return fmt.Errorf("failed to find user: %w", err)
	}
	return s.issueOtp(ctx, userID, email, req.Purpose)
}

func (s *Service) issueOtp(ctx context.Context, userID uuid.UUID, email string, purpose domain.OtpPurpose) error {
	code, err := randomDigits(6)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := s.now()
	otp := &domain.Otp{
		ID:        uuid.New(),
		Email:     email,
		CodeHash:  string(hash),
		Purpose:   purpose,
		ExpiresAt: now.Add(s.opts.OtpTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateOtp(ctx, otp); err != nil {
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	// The code only travels to the delivery pipeline; it is never persisted in clear.
	s.publish(ctx, domain.NotificationEvent{
		NotificationID: otp.ID,
		UserID:         userID,
		Email:          email,
		Type:           domain.NotificationSecurity,
		Title:          "Your FinSecure verification code",
		Message:        fmt.Sprintf("Your %s code is %s. It expires in %d minutes.", strings.ToLower(strings.ReplaceAll(string(purpose), "_", " ")), code, int(s.opts.OtpTTL/time.Minute)),
		ReferenceID:    otp.ID.String(),
		ReferenceType:  "OTP",
		OccurredAt:     now,
	})
	return nil
}

// VerifyOtp checks a code. A verified EMAIL_VERIFICATION code marks the email verified.
func (s *Service) VerifyOtp(ctx context.Context, req domain.OtpVerifyRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return &workflow.ValidationError{Field: "email", Err: errors.New("email is required")}
	}
	if !req.Purpose.Valid() {
		return &workflow.ValidationError{Field: "purpose", Err: errors.New("unknown OTP purpose")}
	}
	if err := s.verifyOtp(ctx, email, req.Purpose, req.Code); err != nil {
		return err
	}
	if req.Purpose == domain.OtpEmailVerification {
		if err := s.repo.MarkEmailVerified(ctx, email); err != nil && !errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("failed to mark email verified: %w", err)
		}
	}
	return nil
}

func (s *Service) verifyOtp(ctx context.Context, email string, purpose domain.OtpPurpose, code string) error {
	otp, err := s.matchOtp(ctx, email, purpose, code)
	if err != nil {
		return err
	}
	if err := s.repo.ConsumeOtp(ctx, otp.ID); err != nil {
		if errors.Is(err, store.ErrOtpNotFound) {
			return ErrOtpInvalid
		}
		return fmt.Errorf("failed to consume OTP: %w", err)
	}
	return nil
}

// matchOtp checks a code against the latest unused OTP without consuming it.
// A mismatch still counts as an attempt.
func (s *Service) matchOtp(ctx context.Context, email string, purpose domain.OtpPurpose, code string) (*domain.Otp, error) {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return nil, ErrOtpInvalid
	}

	otp, err := s.repo.FindLatestOtp(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, store.ErrOtpNotFound) {
			return nil, ErrOtpInvalid
		}
		return nil, fmt.Errorf("failed to load OTP: %w", err)
	}
	if otp.Used {
		return nil, ErrOtpInvalid
	}
	if !s.now().Before(otp.ExpiresAt) {
		return nil, ErrOtpExpired
	}
	if otp.AttemptCount >= s.opts.OtpMaxAttempts {
		return nil, ErrOtpAttemptsExceeded
	}

	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)) != nil {
		attempts, err := s.repo.RecordOtpAttempt(ctx, otp.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to record OTP attempt: %w", err)
		}
		if attempts >= s.opts.OtpMaxAttempts {
			return nil, ErrOtpAttemptsExceeded
		}
		return nil, ErrOtpInvalid
	}
	return otp, nil
}

// PurgeExpiredOtps deletes codes that expired before now.
func (s *Service) PurgeExpiredOtps(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpiredOtps(ctx, s.now())
}
