package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the JSON error envelope for every failure the API
// returns: a human-readable message, an optional machine-readable kind,
// per-field validation details, and the shortfall amounts for
// insufficient-funds failures.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Kind      string            `json:"kind,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Available int64             `json:"available,omitempty"`
	Required  int64             `json:"required,omitempty"`
}

// ValidationHelper provides shared request validation.
type ValidationHelper struct {
	validator *validator.Validate
}

func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse writes a JSON error, expanding validator field errors
// into per-field details.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if fieldErrs, ok := validationErr.(validator.ValidationErrors); ok {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendLedgerError maps a ledger failure onto an HTTP status and writes the
// taxonomy kind plus shortfall amounts where present.
func SendLedgerError(w http.ResponseWriter, err *LedgerError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(err.Kind))

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     err.Message,
		Kind:      string(err.Kind),
		Available: err.Available,
		Required:  err.Required,
	})
}

func statusForKind(kind ErrorKind) int {
	switch kind {
	case ErrInvalidAmount, ErrInvalidMethod, ErrSelfTransfer, ErrInsufficientFunds:
		return http.StatusBadRequest
	case ErrAccountNotFound, ErrOriginNotFound, ErrTargetNotFound:
		return http.StatusNotFound
	case ErrAtomicityFailure:
		return http.StatusConflict
	case ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
