package workflow

import (
	"strings"
	"time"

	"github.com/finsecure/portal-core/pkg/domain"
)

// MinApprovedDocumentTypes is how many distinct document types must be approved
// before the customer-level KYC status becomes APPROVED.
const MinApprovedDocumentTypes = 2

var documentTransitions = map[domain.DocumentStatus][]domain.DocumentStatus{
	domain.DocumentUploaded:    {domain.DocumentUnderReview, domain.DocumentApproved, domain.DocumentRejected},
	domain.DocumentUnderReview: {domain.DocumentApproved, domain.DocumentRejected},
	domain.DocumentApproved:    nil,
	domain.DocumentRejected:    nil,
}

// CanTransitionDocument reports whether the document table allows from -> to.
func CanTransitionDocument(from, to domain.DocumentStatus) bool {
	for _, next := range documentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsDocumentReviewable reports whether a reviewer can still decide on a document.
func IsDocumentReviewable(status domain.DocumentStatus) bool {
	return len(documentTransitions[status]) > 0
}

// NormalizeAction upper-cases and trims a reviewer action.
func NormalizeAction(raw domain.ReviewAction) domain.ReviewAction {
	return domain.ReviewAction(strings.ToUpper(strings.TrimSpace(string(raw))))
}

// ValidateReview checks a reviewer decision before it is sent anywhere. A
// rejection without a reason is refused here.
func ValidateReview(action domain.ReviewAction, reason string) error {
	switch NormalizeAction(action) {
	case domain.ActionApprove, domain.ActionReview:
		return nil
	case domain.ActionReject:
		if strings.TrimSpace(reason) == "" {
			return invalid("rejectionReason", ErrRejectionReasonRequired)
		}
		return nil
	default:
		return invalid("action", ErrUnknownAction)
	}
}

// ReviewDocument applies a reviewer decision and returns the updated document.
// Verification metadata (who, when) is stamped by the caller.
func ReviewDocument(doc domain.KycDocument, action domain.ReviewAction, reason string) (domain.KycDocument, error) {
	if err := ValidateReview(action, reason); err != nil {
		return doc, err
	}

	var target domain.DocumentStatus
	switch NormalizeAction(action) {
	case domain.ActionApprove:
		target = domain.DocumentApproved
	case domain.ActionReject:
		target = domain.DocumentRejected
	case domain.ActionReview:
		target = domain.DocumentUnderReview
	}

	if !CanTransitionDocument(doc.Status, target) {
		return doc, &TransitionError{Entity: "kyc document", From: string(doc.Status), To: string(target)}
	}

	next := doc
	next.Status = target
	next.RejectionReason = nil
	if target == domain.DocumentRejected {
		trimmed := strings.TrimSpace(reason)
		next.RejectionReason = &trimmed
	}
	return next, nil
}

// ValidateUpload checks the customer-supplied fields of a new document.
func ValidateUpload(docType domain.DocumentType, documentNumber string) error {
	if !docType.Valid() {
		return invalid("documentType", ErrUnknownDocumentType)
	}
	if strings.TrimSpace(documentNumber) == "" {
		return invalid("documentNumber", ErrDocumentNumberRequired)
	}
	return nil
}

// AggregateKycStatus derives the customer-level status from every document the
// customer has uploaded. docs may be in any order.
//
// APPROVED needs MinApprovedDocumentTypes distinct approved types. Otherwise a
// document still awaiting a decision means SUBMITTED, and a customer whose most
// recent decision was a rejection is REJECTED until they upload again.
func AggregateKycStatus(docs []domain.KycDocument) domain.KycStatus {
	if len(docs) == 0 {
		return domain.KycPending
	}

	approvedTypes := make(map[domain.DocumentType]struct{})
	pending := false
	var latestDecided *domain.KycDocument
	for i := range docs {
		doc := &docs[i]
		switch doc.Status {
		case domain.DocumentApproved:
			approvedTypes[doc.DocumentType] = struct{}{}
		case domain.DocumentUploaded, domain.DocumentUnderReview:
			pending = true
			continue
		}
		if latestDecided == nil || decidedAt(doc).After(decidedAt(latestDecided)) {
			latestDecided = doc
		}
	}

	if len(approvedTypes) >= MinApprovedDocumentTypes {
		return domain.KycApproved
	}
	if pending {
		return domain.KycSubmitted
	}
	if latestDecided != nil && latestDecided.Status == domain.DocumentRejected {
		return domain.KycRejected
	}
	return domain.KycPending
}

func decidedAt(doc *domain.KycDocument) time.Time {
	if doc.VerifiedAt != nil {
		return *doc.VerifiedAt
	}
	return doc.CreatedAt
}
