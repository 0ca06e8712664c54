package portal

import (
	"errors"
	"fmt"
)

// Kind classifies a client-side failure.
type Kind int

const (
	// KindValidation is a local input failure. No request was sent.
	KindValidation Kind = iota + 1
	// KindAuthentication is a rejected login.
	KindAuthentication
	// KindAuthorization is a 401 mid-session (the session is gone) or a 403.
	KindAuthorization
	// KindDomainRejection is a 4xx business failure such as insufficient balance.
	KindDomainRejection
	// KindTransport means the outcome is unknown: timeout, connection failure,
	// 5xx or an undecodable body. Callers must re-fetch.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindDomainRejection:
		return "domain_rejection"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("portal %s error (%d %s): %s", e.Kind, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("portal %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinels below by kind and, when the sentinel sets one, by status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Kind != e.Kind {
		return false
	}
	return t.Status == 0 || t.Status == e.Status
}

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrBadLogin     = &Error{Kind: KindAuthentication}
	ErrUnauthorized = &Error{Kind: KindAuthorization, Status: 401}
	ErrForbidden    = &Error{Kind: KindAuthorization, Status: 403}
	ErrRejected     = &Error{Kind: KindDomainRejection}
	ErrTransport    = &Error{Kind: KindTransport}
)

// ErrSubmissionInFlight is returned by SubmitGuard.Do while a submission is running.
var ErrSubmissionInFlight = errors.New("a submission is already in flight")

func validationError(err error) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: err.Error(), Err: err}
}

// KindOf returns the kind of a portal error, or 0 for anything else.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
