package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/finsecure/portal-core/internal/app"
	"github.com/finsecure/portal-core/internal/logging"
	"github.com/finsecure/portal-core/internal/store"
	"github.com/finsecure/portal-core/pkg/domain"
)

// stubRepo embeds the interface so only the methods a test touches need bodies.
type stubRepo struct {
	store.Repository
	users         map[string]*domain.User
	customers     map[uuid.UUID]*domain.Customer
	accounts      []domain.Account
	notifications []domain.Notification
	lastPage      domain.PageRequest
	audits        int
}

func (s *stubRepo) FindUserByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if u, ok := s.users[identifier]; ok {
		return u, nil
	}
	return nil, store.ErrUserNotFound
}

func (s *stubRepo) FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*domain.Customer, error) {
	if c, ok := s.customers[userID]; ok {
		return c, nil
	}
	return nil, store.ErrCustomerNotFound
}

func (s *stubRepo) ListAccountsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Account, error) {
	return s.accounts, nil
}

func (s *stubRepo) ListNotifications(ctx context.Context, userID uuid.UUID, req domain.PageRequest) ([]domain.Notification, int, error) {
	s.lastPage = req
	return s.notifications, len(s.notifications), nil
}

func (s *stubRepo) CreateAuditLog(ctx context.Context, entry *domain.AuditLog) error {
	s.audits++
	return nil
}

type testEnv struct {
	repo     *stubRepo
	tokens   *app.TokenManager
	handler  http.Handler
	customer *domain.User
	employee *domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	customer := &domain.User{ID: uuid.New(), Username: "asha", Email: "asha@example.com", PasswordHash: string(hash), Role: domain.RoleCustomer, Enabled: true}
	employee := &domain.User{ID: uuid.New(), Username: "neha", Email: "neha@finsecure.in", PasswordHash: string(hash), Role: domain.RoleEmployee, Enabled: true}

	repo := &stubRepo{
		users:     map[string]*domain.User{"asha": customer, "neha": employee},
		customers: map[uuid.UUID]*domain.Customer{customer.ID: {ID: uuid.New(), UserID: customer.ID}},
	}
	tokens := app.NewTokenManager("api-test-secret", time.Hour)
	logger := logging.Discard()
	svc := app.NewService(repo, tokens, nil, nil, nil, app.Options{}, logger)
	h := NewHandlers(svc, 0, logger)

	return &testEnv{
		repo:     repo,
		tokens:   tokens,
		handler:  NewRouter(h, tokens, []string{"http://localhost:3000"}, logger),
		customer: customer,
		employee: employee,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, user *domain.User) (*httptest.ResponseRecorder, domain.APIResponse[json.RawMessage]) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		token, err := e.tokens.Issue(*user)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	var envelope domain.APIResponse[json.RawMessage]
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("expected JSON envelope, got %q", rr.Body.String())
	}
	return rr, envelope
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr, envelope := env.do(t, http.MethodGet, "/api/auth/health", "", nil)
	if rr.Code != http.StatusOK || !envelope.Success {
		t.Fatalf("expected 200 success, got %d %+v", rr.Code, envelope)
	}
}

func TestLoginRoute(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "valid", body: `{"identifier":"asha","password":"correct-horse"}`, wantStatus: http.StatusOK},
		{name: "wrong password", body: `{"identifier":"asha","password":"nope"}`, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_CREDENTIALS"},
		{name: "unknown user", body: `{"identifier":"ghost","password":"correct-horse"}`, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_CREDENTIALS"},
		{name: "missing password", body: `{"identifier":"asha"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "unknown field", body: `{"identifier":"asha","password":"x","admin":true}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rr, envelope := env.do(t, http.MethodPost, "/api/auth/login", tt.body, nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if envelope.ErrorCode != tt.wantCode {
				t.Fatalf("expected error code %q, got %q", tt.wantCode, envelope.ErrorCode)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp domain.LoginResponse
			if err := json.Unmarshal(envelope.Data, &resp); err != nil {
				t.Fatalf("expected login response, got %v", err)
			}
			identity, err := env.tokens.Parse(resp.Token)
			if err != nil || identity.UserID != env.customer.ID {
				t.Fatalf("expected a token for the customer, got %+v %v", identity, err)
			}
		})
	}
}

func TestRouteGates(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name       string
		path       string
		user       *domain.User
		wantStatus int
	}{
		{name: "customer route without token", path: "/api/customer/accounts", wantStatus: http.StatusUnauthorized},
		{name: "customer route as employee", path: "/api/customer/accounts", user: env.employee, wantStatus: http.StatusForbidden},
		{name: "customer route as customer", path: "/api/customer/accounts", user: env.customer, wantStatus: http.StatusOK},
		{name: "employee route as customer", path: "/api/employee/dashboard", user: env.customer, wantStatus: http.StatusForbidden},
		{name: "employee route without token", path: "/api/employee/customers", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := env.do(t, http.MethodGet, tt.path, "", tt.user)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestAccountsListIsAlwaysAnArray(t *testing.T) {
	env := newTestEnv(t)
	rr, envelope := env.do(t, http.MethodGet, "/api/customer/accounts", "", env.customer)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if string(envelope.Data) != "[]" {
		t.Fatalf("expected an empty array, got %s", envelope.Data)
	}
}

func TestTransactionsRejectsMalformedAccountID(t *testing.T) {
	env := newTestEnv(t)
	rr, envelope := env.do(t, http.MethodGet, "/api/customer/transactions/not-a-uuid", "", env.customer)
	if rr.Code != http.StatusBadRequest || envelope.ErrorCode != "VALIDATION_ERROR" {
		t.Fatalf("expected 400 VALIDATION_ERROR, got %d %q", rr.Code, envelope.ErrorCode)
	}
}

func TestNotificationsDefaultPageSize(t *testing.T) {
	env := newTestEnv(t)
	env.repo.notifications = []domain.Notification{{ID: uuid.New(), UserID: env.customer.ID, Title: "Welcome"}}

	rr, envelope := env.do(t, http.MethodGet, "/api/customer/notifications", "", env.customer)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if env.repo.lastPage.Size != defaultNotificationPageSize {
		t.Fatalf("expected size %d, got %d", defaultNotificationPageSize, env.repo.lastPage.Size)
	}
	var page domain.Page[domain.Notification]
	if err := json.Unmarshal(envelope.Data, &page); err != nil {
		t.Fatalf("expected a page, got %v", err)
	}
	if page.TotalItems != 1 || page.TotalPages != 1 || len(page.Items) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestCorsPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
}
