package billing

import (
	"fmt"

	"github.com/accumanager/backend/internal/domain/shared"
)

// Domain error codes for billing operations
const (
	ErrCodeInvalidLineItem      = "INVALID_LINE_ITEM"
	ErrCodeEmptyInvoice         = "EMPTY_INVOICE"
	ErrCodeLimitExceeded        = "LIMIT_EXCEEDED"
	ErrCodeSubscriptionInactive = "SUBSCRIPTION_INACTIVE"
	ErrCodeScheduleNotActive    = "SCHEDULE_NOT_ACTIVE"
)

// Common billing errors
var (
	ErrEmptyInvoice = shared.NewDomainError(ErrCodeEmptyInvoice, "Invoice must contain at least one line item")

	ErrSubscriptionInactive = shared.NewDomainError(ErrCodeSubscriptionInactive,
		"Subscription is inactive or expired; renew the plan to continue")

	ErrScheduleNotActive = shared.NewDomainError(ErrCodeScheduleNotActive,
		"Recurring schedule is not active")
)

// NewInvalidLineItemError creates an InvalidLineItem error with a specific reason
func NewInvalidLineItemError(reason string) *shared.DomainError {
	return shared.NewDomainError(ErrCodeInvalidLineItem, reason)
}

// LimitExceededError is returned when a usage reservation would push a
// tenant's counter past its plan limit. Retrying is pointless until usage
// drops or the plan is upgraded, which distinguishes it from transient
// store failures.
type LimitExceededError struct {
	ResourceKind ResourceKind
	Current      int64
	Limit        int64
}

// Error implements the error interface
func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("plan limit reached for %s: %d of %d used", e.ResourceKind, e.Current, e.Limit)
}

// Code returns the domain error code for HTTP mapping
func (e *LimitExceededError) Code() string {
	return ErrCodeLimitExceeded
}

// NewLimitExceededError creates a new LimitExceededError
func NewLimitExceededError(kind ResourceKind, current, limit int64) *LimitExceededError {
	return &LimitExceededError{ResourceKind: kind, Current: current, Limit: limit}
}

// TransientStoreError wraps an I/O-level failure from the persistence layer.
// Nothing was committed, so the whole operation is safe to retry.
type TransientStoreError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store failure during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// NewTransientStoreError wraps err as a transient store failure
func NewTransientStoreError(op string, err error) *TransientStoreError {
	return &TransientStoreError{Op: op, Err: err}
}
