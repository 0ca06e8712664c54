package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finsecure/portal-core/internal/app"
	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, &workflow.ValidationError{Field: name, Err: errors.New("must be a UUID")}
	}
	return id, nil
}

func (h *Handlers) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile, "")
}

func (h *Handlers) CustomerDashboardHandler(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.CustomerDashboard(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash, "")
}

func (h *Handlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	writeJSON(w, http.StatusOK, accounts, "")
}

func (h *Handlers) OpenAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	account, err := h.service.OpenAccount(r.Context(), callerID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account, "Account opened")
}

func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.service.Transfer(r.Context(), callerID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result, "Transfer successful")
}

func (h *Handlers) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuidParam(r, "accountId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := parsePage(r, defaultPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.service.ListTransactions(r.Context(), callerID(r), accountID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page, "")
}

func (h *Handlers) ListLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if loans == nil {
		loans = []domain.Loan{}
	}
	writeJSON(w, http.StatusOK, loans, "")
}

func (h *Handlers) ApplyLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoanApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	loan, err := h.service.ApplyLoan(r.Context(), callerID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan, "Loan application submitted")
}

func (h *Handlers) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.ListCards(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if cards == nil {
		cards = []domain.Card{}
	}
	writeJSON(w, http.StatusOK, cards, "")
}

func (h *Handlers) IssueDebitCardHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuidParam(r, "accountId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	card, err := h.service.IssueDebitCard(r.Context(), callerID(r), accountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card, "Debit card issued")
}

func (h *Handlers) IssueCreditCardHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuidParam(r, "accountId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req domain.CreditCardRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	card, err := h.service.IssueCreditCard(r.Context(), callerID(r), accountID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card, "Credit card issued")
}

func (h *Handlers) CardActionHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CardActionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	card, err := h.service.CardAction(r.Context(), callerID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card, "Card updated")
}

// UploadKycHandler accepts multipart fields documentType, documentNumber and file.
func (h *Handlers) UploadKycHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, &workflow.ValidationError{Field: "file", Err: app.ErrDocumentTooLarge})
			return
		}
		h.fail(w, r, &workflow.ValidationError{Field: "body", Err: fmt.Errorf("invalid multipart form: %v", err)})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, &workflow.ValidationError{Field: "file", Err: errors.New("file is required")})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		h.fail(w, r, &workflow.ValidationError{Field: "file", Err: fmt.Errorf("cannot read file: %v", err)})
		return
	}

	doc, err := h.service.UploadKycDocument(r.Context(), callerID(r), domain.KycUpload{
		DocumentType:   domain.DocumentType(strings.TrimSpace(r.FormValue("documentType"))),
		DocumentNumber: r.FormValue("documentNumber"),
		FileName:       header.Filename,
		MimeType:       header.Header.Get("Content-Type"),
		Content:        content,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc, "Document uploaded")
}

func (h *Handlers) ListKycDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ListKycDocuments(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.KycDocument{}
	}
	writeJSON(w, http.StatusOK, docs, "")
}

func (h *Handlers) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	req, err := parsePage(r, defaultNotificationPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.service.Notifications(r.Context(), callerID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page, "")
}

func (h *Handlers) MarkAllReadHandler(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.MarkAllNotificationsRead(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated}, "All notifications marked as read")
}
