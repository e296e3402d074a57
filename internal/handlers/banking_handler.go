package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cesdefin/backend/internal/middleware"
	"github.com/cesdefin/backend/internal/models"
	"github.com/cesdefin/backend/internal/money"
	"github.com/cesdefin/backend/internal/services"
)

// BankingHandler exposes the ledger engine over HTTP. The acting account
// is always the authenticated caller; clients never name their own source
// account.
type BankingHandler struct {
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewBankingHandler(ledger *services.LedgerService) *BankingHandler {
	return &BankingHandler{
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

// Deposit credits the caller's account through a bank, card or cash
// channel, minus the channel commission.
func (h *BankingHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.DepositRequest
	if !services.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.ledger.Deposit(r.Context(), accountID, req.Amount, req.Method, req.Detail)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Deposit processed successfully",
		"data":    result,
	})
}

// Withdraw debits the caller's account and returns the withdrawal code.
func (h *BankingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.WithdrawRequest
	if !services.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.ledger.Withdraw(r.Context(), accountID, req.Amount)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Withdrawal processed successfully",
		"data":    result,
	})
}

// Transfer moves money from the caller's account to the target account.
func (h *BankingHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.TransferRequest
	if !services.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.ledger.Transfer(r.Context(), accountID, req.TargetAccount, req.Amount)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Transfer processed successfully",
		"data":    result,
	})
}

// Balance returns the caller's current balance and last-update time.
func (h *BankingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	result, err := h.ledger.Balance(r.Context(), accountID)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    result,
	})
}

// CommissionRates returns the channel rate table.
func (h *BankingHandler) CommissionRates(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    money.Rates(),
	})
}

// writeOperationError renders ledger taxonomy errors with their mapped
// status; anything else is a bug and reported as a 500.
func writeOperationError(w http.ResponseWriter, err error) {
	var ledgerErr *services.LedgerError
	if errors.As(err, &ledgerErr) {
		services.SendLedgerError(w, ledgerErr)
		return
	}
	services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
}
