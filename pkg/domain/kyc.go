package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType is one of the eight accepted KYC document kinds.
type DocumentType string

const (
	DocAadhaar        DocumentType = "AADHAAR"
	DocPAN            DocumentType = "PAN"
	DocPassport       DocumentType = "PASSPORT"
	DocDrivingLicense DocumentType = "DRIVING_LICENSE"
	DocVoterID        DocumentType = "VOTER_ID"
	DocUtilityBill    DocumentType = "UTILITY_BILL"
	DocBankStatement  DocumentType = "BANK_STATEMENT"
	DocSalarySlip     DocumentType = "SALARY_SLIP"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocAadhaar, DocPAN, DocPassport, DocDrivingLicense, DocVoterID,
		DocUtilityBill, DocBankStatement, DocSalarySlip:
		return true
	}
	return false
}

type DocumentStatus string

const (
	DocumentUploaded    DocumentStatus = "UPLOADED"
	DocumentUnderReview DocumentStatus = "UNDER_REVIEW"
	DocumentApproved    DocumentStatus = "APPROVED"
	DocumentRejected    DocumentStatus = "REJECTED"
)

// ReviewAction is a reviewer decision on a KYC document or loan.
type ReviewAction string

const (
	ActionApprove ReviewAction = "APPROVE"
	ActionReject  ReviewAction = "REJECT"
	ActionReview  ReviewAction = "REVIEW"
)

// KycDocument maps to the kyc_documents table.
type KycDocument struct {
	ID              uuid.UUID      `json:"id"`
	CustomerID      uuid.UUID      `json:"customerId"`
	CustomerName    string         `json:"customerName,omitempty"`
	DocumentType    DocumentType   `json:"documentType"`
	DocumentNumber  string         `json:"documentNumber"`
	FilePath        string         `json:"filePath,omitempty"`
	FileName        string         `json:"fileName,omitempty"`
	MimeType        string         `json:"mimeType,omitempty"`
	Status          DocumentStatus `json:"status"`
	RejectionReason *string        `json:"rejectionReason,omitempty"`
	VerifiedBy      *uuid.UUID     `json:"verifiedBy,omitempty"`
	VerifiedAt      *time.Time     `json:"verifiedAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// KycUpload carries a customer upload after the multipart body has been read.
type KycUpload struct {
	DocumentType   DocumentType
	DocumentNumber string
	FileName       string
	MimeType       string
	Content        []byte
}

// KycVerificationRequest is the body of POST employee/kyc/verify.
type KycVerificationRequest struct {
	DocumentID      uuid.UUID    `json:"documentId"`
	Action          ReviewAction `json:"action"`
	RejectionReason string       `json:"rejectionReason,omitempty"`
}
