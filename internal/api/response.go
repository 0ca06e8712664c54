package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/internal/app"
	"github.com/finsecure/portal-core/internal/store"
	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

const (
	defaultPageSize             = 20
	defaultNotificationPageSize = 10
	maxPageSize                 = 100
)

// writeJSON wraps data in the success envelope.
func writeJSON(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(domain.APIResponse[interface{}]{Success: true, Data: data, Message: message}); err != nil {
		http.Error(w, `{"success":false,"message":"Failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.APIResponse[interface{}]{Success: false, Message: message, ErrorCode: code})
}

type errorMapping struct {
	target error
	status int
	code   string
}

// errorTable is checked in order; the first errors.Is match wins.
var errorTable = []errorMapping{
	{app.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{app.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED"},
	{app.ErrUserDisabled, http.StatusForbidden, "USER_DISABLED"},
	{store.ErrNotOwner, http.StatusForbidden, "FORBIDDEN"},
	{store.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{store.ErrCustomerNotFound, http.StatusNotFound, "CUSTOMER_NOT_FOUND"},
	{store.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
	{store.ErrCardNotFound, http.StatusNotFound, "CARD_NOT_FOUND"},
	{store.ErrDocumentNotFound, http.StatusNotFound, "DOCUMENT_NOT_FOUND"},
	{store.ErrLoanNotFound, http.StatusNotFound, "LOAN_NOT_FOUND"},
	{workflow.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{workflow.ErrDebitCardExists, http.StatusConflict, "DEBIT_CARD_EXISTS"},
	{store.ErrDuplicate, http.StatusConflict, "DUPLICATE"},
	{workflow.ErrSameAccount, http.StatusBadRequest, "VALIDATION_ERROR"},
	{store.ErrInsufficientFunds, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
	{workflow.ErrKycNotApproved, http.StatusUnprocessableEntity, "KYC_NOT_APPROVED"},
	{workflow.ErrAccountNotActive, http.StatusUnprocessableEntity, "ACCOUNT_NOT_ACTIVE"},
	{app.ErrOtpRequired, http.StatusUnprocessableEntity, "OTP_REQUIRED"},
	{app.ErrOtpInvalid, http.StatusUnprocessableEntity, "OTP_INVALID"},
	{app.ErrOtpExpired, http.StatusUnprocessableEntity, "OTP_EXPIRED"},
	{app.ErrOtpAttemptsExceeded, http.StatusUnprocessableEntity, "OTP_ATTEMPTS_EXCEEDED"},
}

// mapError converts a service error into a status, error code and message.
// Client-side errors carry the service message verbatim.
func mapError(err error) (int, string, string) {
	if workflow.IsValidation(err) {
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	}
	var rl *app.RateLimitError
	if errors.As(err, &rl) {
		return http.StatusTooManyRequests, "RATE_LIMITED", rl.Error()
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.code, rootMessage(err, m.target)
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
}

// rootMessage drops wrapping context such as "failed to find customer: ".
func rootMessage(err, target error) string {
	var te *workflow.TransitionError
	if errors.As(err, &te) {
		return te.Error()
	}
	return target.Error()
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)
	var rl *app.RateLimitError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds))
	}
	entry := h.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path, "status": status})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Debug("request rejected")
	}
	writeError(w, status, code, message)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &workflow.ValidationError{Field: "body", Err: fmt.Errorf("invalid request body: %v", err)}
	}
	return nil
}

// parsePage reads page/size/search. Size defaults to defaultSize and is capped.
func parsePage(r *http.Request, defaultSize int) (domain.PageRequest, error) {
	q := r.URL.Query()
	req := domain.PageRequest{Page: 0, Size: defaultSize, Search: strings.TrimSpace(q.Get("search"))}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			return req, &workflow.ValidationError{Field: "page", Err: errors.New("page must be a non-negative integer")}
		}
		req.Page = page
	}
	if raw := q.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return req, &workflow.ValidationError{Field: "size", Err: errors.New("size must be a positive integer")}
		}
		req.Size = size
	}
	if req.Size > maxPageSize {
		req.Size = maxPageSize
	}
	// Pages past the last row are empty anyway; keep page*size inside int32.
	if last := math.MaxInt32 / req.Size; req.Page > last {
		req.Page = last
	}
	return req, nil
}
