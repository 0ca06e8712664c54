package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finsecure/portal-core/internal/app"
	"github.com/finsecure/portal-core/internal/logging"
	"github.com/finsecure/portal-core/internal/store"
	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{name: "validation", err: &workflow.ValidationError{Field: "amount", Err: errors.New("must be positive")}, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR", wantMessage: "amount: must be positive"},
		{name: "wrapped not found", err: fmt.Errorf("failed to find customer: %w", store.ErrAccountNotFound), wantStatus: http.StatusNotFound, wantCode: "ACCOUNT_NOT_FOUND", wantMessage: store.ErrAccountNotFound.Error()},
		{name: "not owner", err: store.ErrNotOwner, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "insufficient funds", err: store.ErrInsufficientFunds, wantStatus: http.StatusUnprocessableEntity, wantCode: "INSUFFICIENT_BALANCE"},
		{name: "kyc", err: workflow.ErrKycNotApproved, wantStatus: http.StatusUnprocessableEntity, wantCode: "KYC_NOT_APPROVED"},
		{name: "otp required", err: app.ErrOtpRequired, wantStatus: http.StatusUnprocessableEntity, wantCode: "OTP_REQUIRED"},
		{name: "credentials", err: app.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_CREDENTIALS"},
		{name: "rate limited", err: &app.RateLimitError{Scope: "login", RetryAfterSeconds: 30}, wantStatus: http.StatusTooManyRequests, wantCode: "RATE_LIMITED"},
		{name: "unexpected", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR", wantMessage: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, message := mapError(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Fatalf("expected %d %s, got %d %s", tt.wantStatus, tt.wantCode, status, code)
			}
			if tt.wantMessage != "" && message != tt.wantMessage {
				t.Fatalf("expected message %q, got %q", tt.wantMessage, message)
			}
		})
	}
}

func TestFailSetsRetryAfter(t *testing.T) {
	h := &Handlers{log: logging.Discard().WithField("component", "api")}
	rr := httptest.NewRecorder()
	h.fail(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), &app.RateLimitError{Scope: "login", RetryAfterSeconds: 42})

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "42" {
		t.Fatalf("expected Retry-After 42, got %q", got)
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    domain.PageRequest
		wantErr bool
	}{
		{name: "defaults", query: "", want: domain.PageRequest{Page: 0, Size: 20}},
		{name: "explicit", query: "?page=2&size=5&search=%20rao%20", want: domain.PageRequest{Page: 2, Size: 5, Search: "rao"}},
		{name: "capped", query: "?size=1000", want: domain.PageRequest{Page: 0, Size: maxPageSize}},
		{name: "negative page", query: "?page=-1", wantErr: true},
		{name: "zero size", query: "?size=0", wantErr: true},
		{name: "not a number", query: "?page=two", wantErr: true},
		{name: "huge page", query: "?page=922337203685477580&size=20", want: domain.PageRequest{Page: math.MaxInt32 / 20, Size: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePage(httptest.NewRequest(http.MethodGet, "/api/employee/customers"+tt.query, nil), defaultPageSize)
			if tt.wantErr {
				if !workflow.IsValidation(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}
