package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

// Register creates a customer login. It does not sign in.
func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResponse, error) {
	var resp domain.RegisterResponse
	if _, err := c.send(ctx, http.MethodPost, "auth/register", nil, jsonBody(req), false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SendOtp(ctx context.Context, req domain.OtpSendRequest) error {
	_, err := c.send(ctx, http.MethodPost, "auth/otp/send", nil, jsonBody(req), false, nil)
	return err
}

func (c *Client) VerifyOtp(ctx context.Context, req domain.OtpVerifyRequest) error {
	_, err := c.send(ctx, http.MethodPost, "auth/otp/verify", nil, jsonBody(req), false, nil)
	return err
}

func (c *Client) Profile(ctx context.Context) (*domain.CustomerProfile, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	var profile domain.CustomerProfile
	if err := c.call(ctx, http.MethodGet, "customer/profile", nil, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CustomerDashboard fetches a fresh snapshot. Call it again after any mutation.
func (c *Client) CustomerDashboard(ctx context.Context) (*domain.CustomerDashboard, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	var dash domain.CustomerDashboard
	if err := c.call(ctx, http.MethodGet, "customer/dashboard", nil, nil, &dash); err != nil {
		return nil, err
	}
	return &dash, nil
}

func (c *Client) Accounts(ctx context.Context) ([]domain.Account, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	accounts := []domain.Account{}
	if err := c.call(ctx, http.MethodGet, "customer/accounts", nil, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) OpenAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	req.AccountType = domain.AccountType(strings.ToUpper(strings.TrimSpace(string(req.AccountType))))
	if err := workflow.ValidateAccountOpening(req); err != nil {
		return nil, validationError(err)
	}
	var account domain.Account
	if err := c.call(ctx, http.MethodPost, "customer/accounts", nil, jsonBody(req), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Transfer moves funds between accounts. Amounts above the OTP threshold need
// req.OtpCode; the backend answers OTP_REQUIRED otherwise.
func (c *Client) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	req.FromAccountNumber = strings.TrimSpace(req.FromAccountNumber)
	req.ToAccountNumber = strings.TrimSpace(req.ToAccountNumber)
	req.Mode = domain.TransferMode(strings.ToUpper(strings.TrimSpace(string(req.Mode))))
	if err := workflow.ValidateTransfer(req); err != nil {
		return nil, validationError(err)
	}
	var result domain.TransferResult
	if err := c.call(ctx, http.MethodPost, "customer/transactions/transfer", nil, jsonBody(req), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Loans(ctx context.Context) ([]domain.Loan, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	loans := []domain.Loan{}
	if err := c.call(ctx, http.MethodGet, "customer/loans", nil, nil, &loans); err != nil {
		return nil, err
	}
	return loans, nil
}

// ApplyLoan validates the principal and tenure bounds before sending.
func (c *Client) ApplyLoan(ctx context.Context, req domain.LoanApplicationRequest) (*domain.Loan, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	req.LoanType = domain.LoanType(strings.ToUpper(strings.TrimSpace(string(req.LoanType))))
	if err := workflow.ValidateLoanApplication(req); err != nil {
		return nil, validationError(err)
	}
	var loan domain.Loan
	if err := c.call(ctx, http.MethodPost, "customer/loans/apply", nil, jsonBody(req), &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *Client) Cards(ctx context.Context) ([]domain.Card, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	cards := []domain.Card{}
	if err := c.call(ctx, http.MethodGet, "customer/cards", nil, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (c *Client) IssueDebitCard(ctx context.Context, accountID uuid.UUID) (*domain.Card, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	if accountID == uuid.Nil {
		return nil, validationError(errors.New("account id is required"))
	}
	var card domain.Card
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("customer/cards/%s/issue-debit", accountID), nil, nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// IssueCreditCard requests a credit card. The backend refuses it unless KYC is APPROVED.
func (c *Client) IssueCreditCard(ctx context.Context, accountID uuid.UUID, req domain.CreditCardRequest) (*domain.Card, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	if accountID == uuid.Nil {
		return nil, validationError(errors.New("account id is required"))
	}
	if !req.CreditLimit.IsPositive() {
		return nil, validationError(&workflow.ValidationError{Field: "creditLimit", Err: workflow.ErrCreditLimitRequired})
	}
	var card domain.Card
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("customer/cards/%s/issue-credit", accountID), nil, jsonBody(req), &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *Client) CardAction(ctx context.Context, req domain.CardActionRequest) (*domain.Card, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	if req.CardID == uuid.Nil {
		return nil, validationError(errors.New("card id is required"))
	}
	req.Action = workflow.NormalizeCardAction(req.Action)
	if err := workflow.ValidateCardAction(req.Action); err != nil {
		return nil, validationError(err)
	}
	var card domain.Card
	if err := c.call(ctx, http.MethodPost, "customer/cards/action", nil, jsonBody(req), &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// UploadKycDocument sends one document as multipart form data.
func (c *Client) UploadKycDocument(ctx context.Context, docType domain.DocumentType, documentNumber, fileName string, content []byte) (*domain.KycDocument, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	docType = domain.DocumentType(strings.ToUpper(strings.TrimSpace(string(docType))))
	if err := workflow.ValidateUpload(docType, documentNumber); err != nil {
		return nil, validationError(err)
	}
	if len(content) == 0 {
		return nil, validationError(errors.New("file is empty"))
	}

	body := &requestBody{}
	body.reader = func() (io.Reader, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := w.WriteField("documentType", string(docType)); err != nil {
			return nil, err
		}
		if err := w.WriteField("documentNumber", strings.TrimSpace(documentNumber)); err != nil {
			return nil, err
		}
		part, err := w.CreateFormFile("file", fileName)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		body.contentType = w.FormDataContentType()
		return &buf, nil
	}

	var doc domain.KycDocument
	if err := c.call(ctx, http.MethodPost, "customer/kyc/upload", nil, body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) KycDocuments(ctx context.Context) ([]domain.KycDocument, error) {
	if err := c.Gate(CustomerRoles); err != nil {
		return nil, err
	}
	docs := []domain.KycDocument{}
	if err := c.call(ctx, http.MethodGet, "customer/kyc/documents", nil, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.Gate(CustomerRoles); err != nil {
		return err
	}
	return c.call(ctx, http.MethodPut, "customer/notifications/read-all", nil, nil, nil)
}
