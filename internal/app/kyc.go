package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/internal/store"
	"github.com/finsecure/portal-core/pkg/docstore"
	"github.com/finsecure/portal-core/pkg/domain"
	"github.com/finsecure/portal-core/pkg/workflow"
)

// UploadKycDocument stores the file and records a new UPLOADED document. The
// customer's aggregate KYC status is recomputed in the same transaction.
func (s *Service) UploadKycDocument(ctx context.Context, userID uuid.UUID, upload domain.KycUpload) (*domain.KycDocument, error) {
	upload.DocumentType = domain.DocumentType(strings.ToUpper(strings.TrimSpace(string(upload.DocumentType))))
	if err := workflow.ValidateUpload(upload.DocumentType, upload.DocumentNumber); err != nil {
		return nil, err
	}
	if int64(len(upload.Content)) > s.opts.MaxUploadBytes {
		return nil, &workflow.ValidationError{Field: "file", Err: ErrDocumentTooLarge}
	}
	mimeType, err := docstore.DetectMimeType(upload.Content)
	if err != nil {
		return nil, &workflow.ValidationError{Field: "file", Err: err}
	}
	if s.docs == nil {
		return nil, fmt.Errorf("document store is not configured")
	}

	customer, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}

	docID := uuid.New()
	name := fmt.Sprintf("kyc/%s/%s", customer.ID, docID)
	path, err := s.docs.Save(ctx, name, mimeType, upload.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &domain.KycDocument{
		ID:             docID,
		CustomerID:     customer.ID,
		CustomerName:   customer.FullName(),
		DocumentType:   upload.DocumentType,
		DocumentNumber: strings.ToUpper(strings.TrimSpace(upload.DocumentNumber)),
		FilePath:       path,
		FileName:       filepath.Base(upload.FileName),
		MimeType:       mimeType,
		Status:         domain.DocumentUploaded,
		CreatedAt:      s.now(),
	}
	status, err := s.repo.CreateKycDocument(ctx, doc)
	if err != nil {
		// No row points at the stored file, so it must not outlive the request.
		if derr := s.docs.Delete(context.WithoutCancel(ctx), name, mimeType); derr != nil {
			s.log.WithError(derr).WithField("document", name).Warn("failed to remove orphaned kyc document")
		}
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	s.log.WithFields(logrus.Fields{"customer_id": customer.ID, "document_id": doc.ID, "kyc_status": status}).Info("kyc document uploaded")
	s.notify(ctx, userID, domain.NotificationKyc, "Document received",
		fmt.Sprintf("Your %s document has been received and is awaiting review.", humanize(string(doc.DocumentType))),
		doc.ID.String(), "KYC_DOCUMENT")
	return doc, nil
}

// ListKycDocuments returns the caller's documents.
func (s *Service) ListKycDocuments(ctx context.Context, userID uuid.UUID) ([]domain.KycDocument, error) {
	customer, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListKycDocumentsByCustomer(ctx, customer.ID)
}

// PendingKycDocuments pages the reviewer queue, oldest first.
func (s *Service) PendingKycDocuments(ctx context.Context, req domain.PageRequest) (domain.Page[domain.KycDocument], error) {
	items, total, err := s.repo.ListPendingKycDocuments(ctx, req)
	if err != nil {
		return domain.Page[domain.KycDocument]{}, fmt.Errorf("failed to list pending kyc documents: %w", err)
	}
	return domain.NewPage(items, req, total), nil
}

// VerifyKycDocument applies a reviewer decision. Concurrent reviewers are
// serialized on the document row; the loser gets an invalid transition.
func (s *Service) VerifyKycDocument(ctx context.Context, reviewerID uuid.UUID, req domain.KycVerificationRequest) (*domain.KycDocument, error) {
	if req.DocumentID == uuid.Nil {
		return nil, &workflow.ValidationError{Field: "documentId", Err: errors.New("document id is required")}
	}
	if err := workflow.ValidateReview(req.Action, req.RejectionReason); err != nil {
		return nil, err
	}
	action := workflow.NormalizeAction(req.Action)

	doc, status, err := s.repo.ReviewKycDocument(ctx, store.KycReview{
		DocumentID: req.DocumentID,
		ReviewerID: reviewerID,
		Action:     action,
		Reason:     req.RejectionReason,
		At:         s.now(),
	})
	if err != nil {
		s.audit(ctx, &reviewerID, "KYC_"+string(action), "kyc_document", req.DocumentID.String(), domain.AuditFailure, err.Error())
		return nil, err
	}
	s.audit(ctx, &reviewerID, "KYC_"+string(action), "kyc_document", doc.ID.String(), domain.AuditSuccess, string(status))

	docName := humanize(string(doc.DocumentType))
	switch doc.Status {
	case domain.DocumentApproved:
		message := fmt.Sprintf("Your %s document has been verified.", docName)
		if status == domain.KycApproved {
			message += " Your KYC is now complete."
		}
		s.notifyCustomer(ctx, doc.CustomerID, domain.NotificationKyc, "Document verified", message, doc.ID.String(), "KYC_DOCUMENT")
	case domain.DocumentRejected:
		reason := ""
		if doc.RejectionReason != nil {
			reason = *doc.RejectionReason
		}
		s.notifyCustomer(ctx, doc.CustomerID, domain.NotificationKyc, "Document rejected",
			fmt.Sprintf("Your %s document was rejected: %s", docName, reason), doc.ID.String(), "KYC_DOCUMENT")
	}
	return doc, nil
}

func humanize(enum string) string {
	return strings.ToLower(strings.ReplaceAll(enum, "_", " "))
}
