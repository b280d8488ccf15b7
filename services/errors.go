package services

import (
	"errors"
	"fmt"
)

// Kind classifies a ServiceError
type Kind string

const (
	KindInvalidArgument    Kind = "invalid_argument"
	KindNotFound           Kind = "not_found"
	KindInsufficientStock  Kind = "insufficient_stock"
	KindAmountMismatch     Kind = "amount_mismatch"
	KindIllegalTransition  Kind = "illegal_transition"
	KindAttachmentRejected Kind = "attachment_rejected"
	KindForbidden          Kind = "forbidden"
)

// ServiceError is returned by every service operation that fails for a
// reason the caller can act on
type ServiceError struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Is matches on Kind, and on Code too when the target carries one
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

var (
	ErrInvalidArgument    = &ServiceError{Kind: KindInvalidArgument}
	ErrNotFound           = &ServiceError{Kind: KindNotFound}
	ErrInsufficientStock  = &ServiceError{Kind: KindInsufficientStock}
	ErrAmountMismatch     = &ServiceError{Kind: KindAmountMismatch}
	ErrIllegalTransition  = &ServiceError{Kind: KindIllegalTransition}
	ErrAttachmentRejected = &ServiceError{Kind: KindAttachmentRejected}
	ErrForbidden          = &ServiceError{Kind: KindForbidden}

	ErrAlreadyShipped       = &ServiceError{Kind: KindIllegalTransition, Code: "ALREADY_SHIPPED"}
	ErrMissingTrackingInfo  = &ServiceError{Kind: KindIllegalTransition, Code: "MISSING_TRACKING_INFO"}
	ErrTransactionFinalized = &ServiceError{Kind: KindIllegalTransition, Code: "TRANSACTION_FINALIZED"}
	ErrDuplicateTransaction = &ServiceError{Kind: KindIllegalTransition, Code: "DUPLICATE_TRANSACTION"}
	ErrStatusConflict       = &ServiceError{Kind: KindIllegalTransition, Code: "STATUS_CONFLICT"}
)

func invalidArgument(code, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindInvalidArgument, Code: code, Message: fmt.Sprintf(format, args...)}
}

func notFound(code, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func illegalTransition(code, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindIllegalTransition, Code: code, Message: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindForbidden, Code: "FORBIDDEN", Message: fmt.Sprintf(format, args...)}
}

// AsServiceError unwraps err into a *ServiceError if it holds one
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
