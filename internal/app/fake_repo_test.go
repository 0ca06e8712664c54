package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/finsecure/portal-core/internal/logging"
	"github.com/finsecure/portal-core/internal/store"
	"github.com/finsecure/portal-core/pkg/domain"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

var errBoom = errors.New("boom")

// fakeRepo is an in-memory repository. Methods the tests do not use fall
// through to the embedded nil interface and panic.
type fakeRepo struct {
	store.Repository

	mu            sync.Mutex
	users         map[uuid.UUID]*domain.User
	customers     map[uuid.UUID]*domain.Customer
	accounts      map[string]*domain.Account
	transactions  []domain.Transaction
	loans         []domain.Loan
	cards         []domain.Card
	otps          []*domain.Otp
	notifications []domain.Notification
	audits        []domain.AuditLog

	transferCalls   int
	creditCardCalls int
	verifiedEmails  []string

	failAccounts      error
	failLoans         error
	failCards         error
	failNotifications error
	failRecent        error
	failKycDocuments  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:     make(map[uuid.UUID]*domain.User),
		customers: make(map[uuid.UUID]*domain.Customer),
		accounts:  make(map[string]*domain.Account),
	}
}

func newTestService(repo *fakeRepo) *Service {
	svc := NewService(repo, NewTokenManager("test-secret", time.Hour), nil, nil, nil, Options{}, logging.Discard())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func mustHash(raw string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

// addCustomer seeds a user, its customer profile and returns both.
func (f *fakeRepo) addCustomer(username string, kyc domain.KycStatus) (*domain.User, *domain.Customer) {
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: mustHash("correct-horse"),
		Role:         domain.RoleCustomer,
		Enabled:      true,
	}
	customer := &domain.Customer{
		ID:        uuid.New(),
		UserID:    user.ID,
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		LastName:  "Rao",
		KycStatus: kyc,
	}
	f.users[user.ID] = user
	f.customers[user.ID] = customer
	return user, customer
}

func (f *fakeRepo) addAccount(customerID uuid.UUID, number string, balance int64) *domain.Account {
	account := newAccount(customerID, number, domain.CreateAccountRequest{AccountType: domain.AccountSavings}, fixedNow)
	account.Balance = account.Balance.Add(decimalFromInt(balance))
	f.accounts[number] = account
	return account
}

func (f *fakeRepo) FindUserByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Username, identifier) || strings.EqualFold(u.Email, identifier) {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (f *fakeRepo) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, store.ErrUserNotFound
}

func (f *fakeRepo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (f *fakeRepo) MarkEmailVerified(ctx context.Context, email string) error {
	f.verifiedEmails = append(f.verifiedEmails, email)
	return nil
}

func (f *fakeRepo) CreateCustomer(ctx context.Context, user *domain.User, customer *domain.Customer, account *domain.Account) error {
	for _, u := range f.users {
		if u.Email == user.Email || u.Username == user.Username {
			return store.ErrDuplicate
		}
	}
	f.users[user.ID] = user
	f.customers[user.ID] = customer
	f.accounts[account.AccountNumber] = account
	return nil
}

func (f *fakeRepo) FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*domain.Customer, error) {
	if c, ok := f.customers[userID]; ok {
		return c, nil
	}
	return nil, store.ErrCustomerNotFound
}

func (f *fakeRepo) FindUserIDByCustomerID(ctx context.Context, customerID uuid.UUID) (uuid.UUID, error) {
	for userID, c := range f.customers {
		if c.ID == customerID {
			return userID, nil
		}
	}
	return uuid.Nil, store.ErrCustomerNotFound
}

func (f *fakeRepo) GetCustomerProfile(ctx context.Context, userID uuid.UUID) (*domain.CustomerProfile, error) {
	c, ok := f.customers[userID]
	if !ok {
		return nil, store.ErrCustomerNotFound
	}
	u := f.users[userID]
	return &domain.CustomerProfile{Customer: *c, Email: u.Email, Username: u.Username}, nil
}

func (f *fakeRepo) CountCustomers(ctx context.Context) (int, error) {
	return len(f.customers), nil
}

func (f *fakeRepo) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	for _, a := range f.accounts {
		if a.ID == accountID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (f *fakeRepo) ListAccountsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Account, error) {
	if f.failAccounts != nil {
		return nil, f.failAccounts
	}
	var out []domain.Account
	for _, a := range f.accounts {
		if a.CustomerID == customerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out, nil
}

// Transfer mirrors the store: every check happens before either balance moves.
func (f *fakeRepo) Transfer(ctx context.Context, p store.TransferParams) (*domain.TransferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferCalls++

	from, ok := f.accounts[p.FromAccountNumber]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	to, ok := f.accounts[p.ToAccountNumber]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if from.CustomerID != p.OwnerCustomerID {
		return nil, store.ErrNotOwner
	}
	if from.Balance.LessThan(p.Amount) {
		return nil, store.ErrInsufficientFunds
	}
	if p.OtpID != nil {
		if err := f.ConsumeOtp(ctx, *p.OtpID); err != nil {
			return nil, err
		}
	}

	from.Balance = from.Balance.Sub(p.Amount)
	to.Balance = to.Balance.Add(p.Amount)
	debit := domain.Transaction{
		ID: uuid.New(), ReferenceNumber: p.DebitReference, AccountID: from.ID, AccountNumber: from.AccountNumber,
		Type: domain.TransactionDebit, Mode: p.Mode, Amount: p.Amount, BalanceAfter: from.Balance,
		TargetAccountNumber: to.AccountNumber, Status: domain.TransactionSuccess,
	}
	credit := domain.Transaction{
		ID: uuid.New(), ReferenceNumber: p.CreditReference, AccountID: to.ID, AccountNumber: to.AccountNumber,
		Type: domain.TransactionCredit, Mode: p.Mode, Amount: p.Amount, BalanceAfter: to.Balance,
		TargetAccountNumber: from.AccountNumber, Status: domain.TransactionSuccess,
	}
	f.transactions = append(f.transactions, debit, credit)
	return &domain.TransferResult{Debit: debit, Credit: credit}, nil
}

func (f *fakeRepo) ListRecentTransactionsByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if f.failRecent != nil {
		return nil, f.failRecent
	}
	var out []domain.Transaction
	for i := len(f.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.transactions[i])
	}
	return out, nil
}

func (f *fakeRepo) ListCardsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Card, error) {
	if f.failCards != nil {
		return nil, f.failCards
	}
	return f.cards, nil
}

func (f *fakeRepo) IssueCreditCard(ctx context.Context, card *domain.Card) error {
	f.creditCardCalls++
	f.cards = append(f.cards, *card)
	return nil
}

func (f *fakeRepo) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	f.loans = append(f.loans, *loan)
	return nil
}

func (f *fakeRepo) ListLoansByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Loan, error) {
	if f.failLoans != nil {
		return nil, f.failLoans
	}
	return f.loans, nil
}

func (f *fakeRepo) CountLoansByStatus(ctx context.Context, statuses ...domain.LoanStatus) (int, error) {
	if f.failLoans != nil {
		return 0, f.failLoans
	}
	n := 0
	for _, l := range f.loans {
		for _, s := range statuses {
			if l.Status == s {
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeRepo) CountPendingKycDocuments(ctx context.Context) (int, error) {
	return 3, nil
}

func (f *fakeRepo) CreateNotification(ctx context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeRepo) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.failNotifications != nil {
		return 0, f.failNotifications
	}
	var n int64
	for _, note := range f.notifications {
		if note.UserID == userID && !note.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateAuditLog(ctx context.Context, entry *domain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, *entry)
	return nil
}

func (f *fakeRepo) CreateOtp(ctx context.Context, otp *domain.Otp) error {
	for _, existing := range f.otps {
		if existing.Email == otp.Email && existing.Purpose == otp.Purpose {
			existing.Used = true
		}
	}
	f.otps = append(f.otps, otp)
	return nil
}

func (f *fakeRepo) FindLatestOtp(ctx context.Context, email string, purpose domain.OtpPurpose) (*domain.Otp, error) {
	for i := len(f.otps) - 1; i >= 0; i-- {
		otp := f.otps[i]
		if otp.Email == email && otp.Purpose == purpose && !otp.Used {
			copied := *otp
			return &copied, nil
		}
	}
	return nil, store.ErrOtpNotFound
}

func (f *fakeRepo) RecordOtpAttempt(ctx context.Context, otpID uuid.UUID) (int, error) {
	for _, otp := range f.otps {
		if otp.ID == otpID {
			otp.AttemptCount++
			return otp.AttemptCount, nil
		}
	}
	return 0, store.ErrOtpNotFound
}

func (f *fakeRepo) ConsumeOtp(ctx context.Context, otpID uuid.UUID) error {
	for _, otp := range f.otps {
		if otp.ID == otpID && !otp.Used {
			otp.Used = true
			return nil
		}
	}
	return store.ErrOtpNotFound
}

func (f *fakeRepo) CreateKycDocument(ctx context.Context, doc *domain.KycDocument) (domain.KycStatus, error) {
	if f.failKycDocuments != nil {
		return "", f.failKycDocuments
	}
	return domain.KycSubmitted, nil
}

func (f *fakeRepo) lastAudit() domain.AuditLog {
	if len(f.audits) == 0 {
		return domain.AuditLog{}
	}
	return f.audits[len(f.audits)-1]
}

// recordingDocs keeps saved documents in memory.
type recordingDocs struct {
	saved   map[string][]byte
	deleted []string
}

func newRecordingDocs() *recordingDocs {
	return &recordingDocs{saved: make(map[string][]byte)}
}

func (d *recordingDocs) Save(ctx context.Context, name, mimeType string, content []byte) (string, error) {
	d.saved[name] = content
	return "mem://" + name, nil
}

func (d *recordingDocs) Delete(ctx context.Context, name, mimeType string) error {
	delete(d.saved, name)
	d.deleted = append(d.deleted, name)
	return nil
}

// recordingSink captures published events.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
	err    error
}

func (s *recordingSink) PublishNotificationEvent(ctx context.Context, event domain.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

// stubLimiter returns the same verdict for every hit.
type stubLimiter struct {
	attempt Attempt
	err     error
}

func (l stubLimiter) Hit(ctx context.Context, scope LimitScope, subject string) (Attempt, error) {
	attempt := l.attempt
	attempt.Scope = scope
	return attempt, l.err
}
