package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.APIResponse[interface{}]{Success: status < 400, Data: data, Message: message, ErrorCode: code})
}

// signIn installs a session directly so tests can skip the login round trip.
func signIn(t *testing.T, c *Client, role domain.Role) domain.Identity {
	t.Helper()
	identity := domain.Identity{UserID: uuid.New(), Username: "asha", Role: role}
	if !c.Session().install(c.Session().Generation(), "token-"+string(role), identity) {
		t.Fatalf("expected the session to install")
	}
	return identity
}

func TestLogin(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("expected a JSON body, got %v", err)
		}
		switch req.Password {
		case "correct-horse":
			writeEnvelope(w, http.StatusOK, domain.LoginResponse{Token: "tok", TokenType: "Bearer", Role: domain.RoleCustomer, UserID: userID, Username: req.Identifier}, "", "Login successful")
		case "explode":
			writeEnvelope(w, http.StatusInternalServerError, nil, "INTERNAL_ERROR", "Internal server error")
		default:
			writeEnvelope(w, http.StatusUnauthorized, nil, "INVALID_CREDENTIALS", "invalid username or password")
		}
	}))
	defer srv.Close()

	t.Run("success", func(t *testing.T) {
		c := NewClient(srv.URL+"/api", nil)
		identity, err := c.Login(context.Background(), "asha", "correct-horse")
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if identity.UserID != userID || identity.Role != domain.RoleCustomer {
			t.Fatalf("unexpected identity: %+v", identity)
		}
		if !c.Session().Authenticated() {
			t.Fatalf("expected an authenticated session")
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		c := NewClient(srv.URL+"/api", nil)
		_, err := c.Login(context.Background(), "asha", "wrong")
		if !errors.Is(err, ErrBadLogin) {
			t.Fatalf("expected an authentication error, got %v", err)
		}
		var pe *Error
		if !errors.As(err, &pe) || pe.Message != "invalid username or password" {
			t.Fatalf("expected the backend message verbatim, got %v", err)
		}
		if c.Session().Authenticated() {
			t.Fatalf("expected no session after a rejected login")
		}
	})

	t.Run("server error", func(t *testing.T) {
		c := NewClient(srv.URL+"/api", nil)
		if _, err := c.Login(context.Background(), "asha", "explode"); KindOf(err) != KindTransport {
			t.Fatalf("expected a transport error, got %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		c := NewClient(srv.URL+"/api", nil)
		if _, err := c.Login(context.Background(), " ", "x"); KindOf(err) != KindValidation {
			t.Fatalf("expected a validation error, got %v", err)
		}
	})
}

func TestClientTimeoutIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeEnvelope(w, http.StatusOK, []domain.Account{}, "", "")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	signIn(t, c, domain.RoleCustomer)

	if _, err := c.Accounts(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected a transport error, got %v", err)
	}
	if !c.Session().Authenticated() {
		t.Fatalf("expected a timeout to leave the session alone")
	}
}

func TestAttachSendsBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, []domain.Card{}, "", "")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	signIn(t, c, domain.RoleCustomer)
	cards, err := c.Cards(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != "Bearer token-CUSTOMER" {
		t.Fatalf("expected bearer header, got %q", got)
	}
	if cards == nil {
		t.Fatalf("expected a non-nil slice")
	}
}

func TestGateRunsBeforeEveryCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeEnvelope(w, http.StatusOK, domain.EmployeeDashboard{}, "", "")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.EmployeeDashboard(context.Background()); KindOf(err) != KindAuthorization {
		t.Fatalf("expected an authorization error without a session, got %v", err)
	}

	signIn(t, c, domain.RoleCustomer)
	if _, err := c.EmployeeDashboard(context.Background()); KindOf(err) != KindAuthorization {
		t.Fatalf("expected a customer to be denied, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("expected no request for a denied call, got %d", n)
	}
}

func TestUnauthorizedTearsDownOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		if n == 1 || r.Header.Get("Authorization") == "" {
			writeEnvelope(w, http.StatusUnauthorized, nil, "UNAUTHORIZED", "Invalid or expired token")
			return
		}
		writeEnvelope(w, http.StatusOK, []domain.Loan{}, "", "")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	var teardowns int32
	c.Session().OnTeardown(func() { atomic.AddInt32(&teardowns, 1) })
	signIn(t, c, domain.RoleCustomer)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Loans(context.Background()); err != nil && KindOf(err) != KindAuthorization {
				t.Errorf("expected nil or an authorization error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if c.Session().Authenticated() {
		t.Fatalf("expected the token to be gone")
	}
	if _, ok := c.Session().Identity(); ok {
		t.Fatalf("expected the identity to be gone")
	}
	if n := atomic.LoadInt32(&teardowns); n != 1 {
		t.Fatalf("expected exactly one teardown, got %d", n)
	}
}

func TestStaleGenerationNeverReinstalls(t *testing.T) {
	s := NewSession()
	hooks := 0
	s.OnTeardown(func() { hooks++ })

	if !s.install(s.Generation(), "first", domain.Identity{Role: domain.RoleCustomer}) {
		t.Fatalf("expected first install to succeed")
	}
	inFlight := s.Generation()

	s.Observe(inFlight, http.StatusUnauthorized)
	if s.Authenticated() || hooks != 1 {
		t.Fatalf("expected teardown with one hook call, got authenticated=%v hooks=%d", s.Authenticated(), hooks)
	}

	if s.install(inFlight, "late", domain.Identity{Role: domain.RoleCustomer}) {
		t.Fatalf("expected a stale install to be refused")
	}
	s.Observe(inFlight, http.StatusUnauthorized)
	s.Logout()
	if s.Authenticated() || hooks != 1 {
		t.Fatalf("expected stale responses and a second logout to be no-ops, got hooks=%d", hooks)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/customer/loans", nil)
	s.Attach(req)
	if req.Header.Get("Authorization") != "" {
		t.Fatalf("expected calls after teardown to be unauthenticated")
	}
}

func TestListPagination(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		total := 3
		if r.URL.Query().Get("search") == "nobody" {
			total = 0
		}
		req := domain.PageRequest{Page: page, Size: size}
		var items []domain.CustomerProfile
		for i := req.Offset(); i < total && i < req.Offset()+size; i++ {
			items = append(items, domain.CustomerProfile{Customer: domain.Customer{FirstName: "C" + strconv.Itoa(i)}})
		}
		writeEnvelope(w, http.StatusOK, domain.NewPage(items, req, total), "", "")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	signIn(t, c, domain.RoleEmployee)
	ctx := context.Background()

	tests := []struct {
		name      string
		page      int
		filter    string
		wantItems int
		wantPages int
	}{
		{name: "first page", page: 0, wantItems: 2, wantPages: 2},
		{name: "last page", page: 1, wantItems: 1, wantPages: 2},
		{name: "page equals totalPages", page: 2, wantItems: 0, wantPages: 2},
		{name: "empty collection", page: 0, filter: "nobody", wantItems: 0, wantPages: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := List[domain.CustomerProfile](ctx, c, CustomerDirectory, tt.page, 2, tt.filter)
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if len(got.Items) != tt.wantItems || got.TotalPages != tt.wantPages {
				t.Fatalf("expected %d items over %d pages, got %d over %d", tt.wantItems, tt.wantPages, len(got.Items), got.TotalPages)
			}
			if got.Items == nil {
				t.Fatalf("expected a non-nil items slice")
			}
		})
	}

	before := atomic.LoadInt32(&hits)
	if _, err := List[domain.CustomerProfile](ctx, c, CustomerDirectory, -1, 2, ""); KindOf(err) != KindValidation {
		t.Fatalf("expected a validation error for a negative page, got %v", err)
	}
	if _, err := List[domain.CustomerProfile](ctx, c, CustomerDirectory, 0, 0, ""); KindOf(err) != KindValidation {
		t.Fatalf("expected a validation error for a zero size, got %v", err)
	}
	if atomic.LoadInt32(&hits) != before {
		t.Fatalf("expected invalid paging to stay local")
	}
}

func TestCursorFilterResetsPage(t *testing.T) {
	cur := NewCursor(20)
	if !cur.Next(3) || !cur.Next(3) || cur.Next(3) {
		t.Fatalf("expected to advance exactly twice over 3 pages, at page %d", cur.Page)
	}
	cur.SetFilter("rao")
	if cur.Page != 0 || cur.Filter != "rao" {
		t.Fatalf("expected a new filter to reset the page, got %+v", cur)
	}
	cur.Next(3)
	cur.SetFilter(" rao ")
	if cur.Page != 1 {
		t.Fatalf("expected the same filter to keep the page, got %d", cur.Page)
	}
	if !cur.Prev() || cur.Prev() {
		t.Fatalf("expected to step back once to page 0")
	}
}

func TestLocalValidationSkipsNetwork(t *testing.T) {
	var hits int32
	loanID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		switch r.URL.Path {
		case "/customer/loans/apply":
			var req domain.LoanApplicationRequest
			json.NewDecoder(r.Body).Decode(&req)
			writeEnvelope(w, http.StatusCreated, domain.Loan{ID: loanID, LoanType: req.LoanType, PrincipalAmount: req.PrincipalAmount, TenureMonths: req.TenureMonths, Status: domain.LoanApplied}, "", "")
		case "/employee/kyc/verify":
			var req domain.KycVerificationRequest
			json.NewDecoder(r.Body).Decode(&req)
			reason := req.RejectionReason
			writeEnvelope(w, http.StatusOK, domain.KycDocument{ID: req.DocumentID, Status: domain.DocumentRejected, RejectionReason: &reason}, "", "")
		default:
			writeEnvelope(w, http.StatusNotFound, nil, "NOT_FOUND", "not found")
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	customer := NewClient(srv.URL, nil)
	signIn(t, customer, domain.RoleCustomer)

	_, err := customer.ApplyLoan(ctx, domain.LoanApplicationRequest{LoanType: domain.LoanPersonal, PrincipalAmount: decimal.NewFromInt(9999), TenureMonths: 12})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected a validation error for 9999/12, got %v", err)
	}
	if _, err := customer.Transfer(ctx, domain.TransferRequest{FromAccountNumber: "FINS1", ToAccountNumber: "FINS1", Amount: decimal.NewFromInt(10), Mode: domain.TransferMode("IMPS")}); KindOf(err) != KindValidation {
		t.Fatalf("expected a validation error for a self transfer, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no request for invalid input")
	}

	loan, err := customer.ApplyLoan(ctx, domain.LoanApplicationRequest{LoanType: "personal", PrincipalAmount: decimal.NewFromInt(50000), TenureMonths: 24})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if loan.Status != domain.LoanApplied || loan.LoanType != domain.LoanPersonal {
		t.Fatalf("expected an APPLIED personal loan, got %s %s", loan.Status, loan.LoanType)
	}

	employee := NewClient(srv.URL, nil)
	signIn(t, employee, domain.RoleEmployee)
	docID := uuid.New()

	before := atomic.LoadInt32(&hits)
	if _, err := employee.VerifyKycDocument(ctx, domain.KycVerificationRequest{DocumentID: docID, Action: domain.ActionReject}); KindOf(err) != KindValidation {
		t.Fatalf("expected a rejection without reason to be refused locally, got %v", err)
	}
	if atomic.LoadInt32(&hits) != before {
		t.Fatalf("expected no request for a rejection without reason")
	}

	doc, err := employee.VerifyKycDocument(ctx, domain.KycVerificationRequest{DocumentID: docID, Action: "reject", RejectionReason: "blurry scan"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if doc.Status != domain.DocumentRejected || doc.RejectionReason == nil || *doc.RejectionReason != "blurry scan" {
		t.Fatalf("expected REJECTED with the reason, got %+v", doc)
	}
}

func TestDomainRejectionKeepsBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnprocessableEntity, nil, "KYC_NOT_APPROVED", "kyc must be approved")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	signIn(t, c, domain.RoleCustomer)
	_, err := c.IssueCreditCard(context.Background(), uuid.New(), domain.CreditCardRequest{CreditLimit: decimal.NewFromInt(50000)})

	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindDomainRejection || pe.Code != "KYC_NOT_APPROVED" || pe.Message != "kyc must be approved" {
		t.Fatalf("expected the KYC rejection verbatim, got %v", err)
	}
	if !c.Session().Authenticated() {
		t.Fatalf("expected a domain rejection to keep the session")
	}
}
