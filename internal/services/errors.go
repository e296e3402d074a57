package services

import (
	"errors"
	"fmt"

	"github.com/cesdefin/backend/internal/store"
)

// ErrorKind is the machine-readable classification of a ledger failure.
type ErrorKind string

const (
	ErrInvalidAmount     ErrorKind = "INVALID_AMOUNT"
	ErrInvalidMethod     ErrorKind = "INVALID_METHOD"
	ErrAccountNotFound   ErrorKind = "ACCOUNT_NOT_FOUND"
	ErrOriginNotFound    ErrorKind = "ORIGIN_NOT_FOUND"
	ErrTargetNotFound    ErrorKind = "TARGET_NOT_FOUND"
	ErrSelfTransfer      ErrorKind = "SELF_TRANSFER"
	ErrInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	ErrAtomicityFailure  ErrorKind = "ATOMICITY_FAILURE"
	ErrStoreUnavailable  ErrorKind = "STORE_UNAVAILABLE"
)

// LedgerError carries a machine-readable kind plus a message fit for a UI.
// Insufficient-funds errors also carry the numeric amounts explaining the
// shortfall.
type LedgerError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Available int64     `json:"available,omitempty"`
	Required  int64     `json:"required,omitempty"`
}

func (e *LedgerError) Error() string {
	return e.Message
}

// Retryable reports whether the caller may retry the operation. The core
// never retries on its own.
func (e *LedgerError) Retryable() bool {
	return e.Kind == ErrStoreUnavailable
}

func invalidAmount(amount int64) *LedgerError {
	return &LedgerError{
		Kind:    ErrInvalidAmount,
		Message: fmt.Sprintf("amount must be positive, got %d", amount),
	}
}

func insufficientFunds(available, required int64) *LedgerError {
	return &LedgerError{
		Kind:      ErrInsufficientFunds,
		Message:   fmt.Sprintf("insufficient funds: available %d, required %d", available, required),
		Available: available,
		Required:  required,
	}
}

// mapStoreError translates store failures into the ledger taxonomy so no
// raw store error leaks to the API layer. notFoundKind selects which
// not-found kind a missing account maps to for this operation.
func mapStoreError(err error, notFoundKind ErrorKind) *LedgerError {
	var notFound *store.NotFoundError
	if errors.As(err, &notFound) {
		return &LedgerError{
			Kind:    notFoundKind,
			Message: fmt.Sprintf("account %q does not exist", notFound.AccountID),
		}
	}

	var insufficient *store.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return insufficientFunds(insufficient.Available, insufficient.Required)
	}

	if errors.Is(err, store.ErrConflict) {
		return &LedgerError{
			Kind:    ErrAtomicityFailure,
			Message: "operation aborted by a concurrent update, nothing was applied",
		}
	}

	return &LedgerError{
		Kind:    ErrStoreUnavailable,
		Message: "the account store is temporarily unavailable",
	}
}
