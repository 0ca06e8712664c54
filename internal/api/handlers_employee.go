package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finsecure/portal-core/pkg/domain"
)

func (h *Handlers) EmployeeDashboardHandler(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.EmployeeDashboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash, "")
}

func (h *Handlers) CustomersHandler(w http.ResponseWriter, r *http.Request) {
	req, err := parsePage(r, defaultPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.service.Customers(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page, "")
}

func (h *Handlers) PendingKycHandler(w http.ResponseWriter, r *http.Request) {
	req, err := parsePage(r, defaultPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.service.PendingKycDocuments(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page, "")
}

func (h *Handlers) VerifyKycHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.KycVerificationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := h.service.VerifyKycDocument(r.Context(), callerID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc, "Document "+string(doc.Status))
}

func (h *Handlers) PendingLoansHandler(w http.ResponseWriter, r *http.Request) {
	req, err := parsePage(r, defaultPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.service.PendingLoans(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page, "")
}

func (h *Handlers) ReviewLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req domain.LoanReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	loan, err := h.service.ReviewLoan(r.Context(), callerID(r), loanID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan, "Loan "+string(loan.Status))
}

func (h *Handlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.DepositRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.service.Deposit(r.Context(), callerID(r), chi.URLParam(r, "accountNumber"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx, "Deposit successful")
}

type accountStatusRequest struct {
	Status domain.AccountStatus `json:"status"`
}

func (h *Handlers) AccountStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req accountStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	account, err := h.service.UpdateAccountStatus(r.Context(), callerID(r), chi.URLParam(r, "accountNumber"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account, "Account status updated")
}
