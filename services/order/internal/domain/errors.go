package domain

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine readable category of an orchestration failure.
type Kind string

const (
	KindInvalidRequest      Kind = "INVALID_REQUEST"
	KindIdentityUnavailable Kind = "IDENTITY_UNAVAILABLE"
	KindIdentityNotFound    Kind = "IDENTITY_NOT_FOUND"
	KindProductNotFound     Kind = "PRODUCT_NOT_FOUND"
	KindInsufficientStock   Kind = "INSUFFICIENT_STOCK"
	KindCatalogUnavailable  Kind = "CATALOG_UNAVAILABLE"
	KindRemoteRejected      Kind = "REMOTE_REJECTED"
	KindProtocolViolation   Kind = "PROTOCOL_VIOLATION"
	KindPersistenceFailure  Kind = "PERSISTENCE_FAILURE"
	KindOrderNotFound       Kind = "ORDER_NOT_FOUND"
	KindDuplicateRequest    Kind = "DUPLICATE_REQUEST"
	KindCanceled            Kind = "CANCELED"
)

// Retryable reports whether the same request may succeed if sent again later
// without modification.
func (k Kind) Retryable() bool {
	switch k {
	case KindIdentityUnavailable, KindCatalogUnavailable, KindPersistenceFailure:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is. Two *Error values match when their kinds match.
var (
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
	ErrIdentityUnavailable = &Error{Kind: KindIdentityUnavailable}
	ErrIdentityNotFound    = &Error{Kind: KindIdentityNotFound}
	ErrProductNotFound     = &Error{Kind: KindProductNotFound}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock}
	ErrCatalogUnavailable  = &Error{Kind: KindCatalogUnavailable}
	ErrRemoteRejected      = &Error{Kind: KindRemoteRejected}
	ErrProtocolViolation   = &Error{Kind: KindProtocolViolation}
	ErrPersistenceFailure  = &Error{Kind: KindPersistenceFailure}
	ErrOrderNotFound       = &Error{Kind: KindOrderNotFound}
	ErrDuplicateRequest    = &Error{Kind: KindDuplicateRequest}
	ErrCanceled            = &Error{Kind: KindCanceled}
)

type Error struct {
	Kind   Kind
	Detail string
	// ProductID is set for stock and product lookup failures.
	ProductID int64
	RequestID string
	Err       error
}

func NewError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func InsufficientStock(productID, available, requested int64) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Detail:    fmt.Sprintf("product %d has %d in stock, %d requested", productID, available, requested),
		ProductID: productID,
	}
}

func ProductNotFound(productID int64, err error) *Error {
	return &Error{
		Kind:      KindProductNotFound,
		Detail:    fmt.Sprintf("product %d not found", productID),
		ProductID: productID,
		Err:       err,
	}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func (e *Error) Retryable() bool {
	return e.Kind.Retryable()
}

// KindOf extracts the kind of err, or "" when err is not an orchestration error.
func KindOf(err error) Kind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}

	return ""
}
