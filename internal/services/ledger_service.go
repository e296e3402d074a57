package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/cesdefin/backend/internal/config"
	"github.com/cesdefin/backend/internal/models"
	"github.com/cesdefin/backend/internal/money"
	"github.com/cesdefin/backend/internal/store"
)

// LedgerService is the transaction engine: it validates ledger operations,
// computes commissions, and drives the store's atomic primitives. Balances
// are never cached across calls; every operation re-reads state under the
// store's lock.
type LedgerService struct {
	store   store.Store
	redis   *redis.Client // optional, caches withdrawal codes for teller lookup
	cfg     *config.LedgerConfig
	genCode func() string
}

func NewLedgerService(st store.Store, redisClient *redis.Client, cfg *config.LedgerConfig) *LedgerService {
	if cfg == nil {
		cfg = config.LoadLedgerConfig()
	}
	return &LedgerService{
		store:   st,
		redis:   redisClient,
		cfg:     cfg,
		genCode: generateWithdrawalCode,
	}
}

type DepositResult struct {
	Amount     int64           `json:"amount"`
	Commission int64           `json:"commission"`
	NetAmount  int64           `json:"netAmount"`
	Method     string          `json:"method"`
	NewBalance int64           `json:"newBalance"`
	Movement   models.Movement `json:"movement"`
}

type WithdrawResult struct {
	Amount         int64           `json:"amount"`
	WithdrawalCode string          `json:"withdrawalCode"`
	NewBalance     int64           `json:"newBalance"`
	Movement       models.Movement `json:"movement"`
}

type TransferResult struct {
	Amount         int64           `json:"amount"`
	Commission     int64           `json:"commission"`
	TotalDebit     int64           `json:"totalDebit"`
	TargetAccount  string          `json:"targetAccount"`
	NewBalance     int64           `json:"newBalance"`
	OriginMovement models.Movement `json:"originMovement"`
	TargetMovement models.Movement `json:"targetMovement"`
}

type BalanceResult struct {
	AccountID   string    `json:"accountId"`
	Balance     int64     `json:"balance"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Deposit credits amount minus the channel commission and appends the
// deposit record, both in one atomic store write.
func (s *LedgerService) Deposit(ctx context.Context, accountID string, amount int64, method, detail string) (*DepositResult, error) {
	if amount <= 0 {
		return nil, invalidAmount(amount)
	}
	if !money.DepositMethod(method) {
		return nil, &LedgerError{
			Kind:    ErrInvalidMethod,
			Message: fmt.Sprintf("unknown deposit method %q, valid methods: bank, card, cash", method),
		}
	}

	commission := money.Commission(amount, method)
	net := amount - commission
	mv := models.Movement{
		ID:         uuid.NewString(),
		Kind:       models.KindDeposit,
		Gross:      amount,
		Commission: commission,
		Net:        net,
		Method:     method,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}

	acct, err := s.store.AtomicUpdate(ctx, accountID, net, mv)
	if err != nil {
		return nil, mapStoreError(err, ErrAccountNotFound)
	}

	return &DepositResult{
		Amount:     amount,
		Commission: commission,
		NetAmount:  net,
		Method:     method,
		NewBalance: acct.Balance,
		Movement:   mv,
	}, nil
}

// Withdraw debits the full amount (no commission) and records a
// display-only 6-digit withdrawal code in the movement detail. The code is
// not verified by the engine; collisions are accepted.
func (s *LedgerService) Withdraw(ctx context.Context, accountID string, amount int64) (*WithdrawResult, error) {
	if amount <= 0 {
		return nil, invalidAmount(amount)
	}

	code := s.genCode()
	mv := models.Movement{
		ID:        uuid.NewString(),
		Kind:      models.KindWithdrawal,
		Gross:     -amount,
		Net:       -amount,
		Detail:    "Withdrawal code: " + code,
		CreatedAt: time.Now().UTC(),
	}

	acct, err := s.store.AtomicUpdate(ctx, accountID, -amount, mv)
	if err != nil {
		return nil, mapStoreError(err, ErrAccountNotFound)
	}

	s.cacheWithdrawalCode(ctx, code, accountID)

	return &WithdrawResult{
		Amount:         amount,
		WithdrawalCode: code,
		NewBalance:     acct.Balance,
		Movement:       mv,
	}, nil
}

// Transfer moves amount from origin to target. The transfer commission is
// charged to the origin only; both balance mutations and both movement
// appends commit together or not at all.
func (s *LedgerService) Transfer(ctx context.Context, originID, targetID string, amount int64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, invalidAmount(amount)
	}
	if originID == targetID {
		return nil, &LedgerError{
			Kind:    ErrSelfTransfer,
			Message: "cannot transfer to the same account",
		}
	}

	// Friendly existence check before locking anything; the atomic update
	// re-verifies under lock, so a race here only changes the error kind.
	if _, err := s.store.Load(ctx, targetID); err != nil {
		return nil, mapStoreError(err, ErrTargetNotFound)
	}

	commission := money.Commission(amount, money.MethodTransfer)
	totalDebit := amount + commission
	now := time.Now().UTC()

	originMv := models.Movement{
		ID:           uuid.NewString(),
		Kind:         models.KindTransfer,
		Gross:        -amount,
		Commission:   commission,
		Net:          -totalDebit,
		Method:       money.MethodTransfer,
		Detail:       "Transfer to " + targetID,
		Counterparty: targetID,
		CreatedAt:    now,
	}
	targetMv := models.Movement{
		ID:           uuid.NewString(),
		Kind:         models.KindTransfer,
		Gross:        amount,
		Net:          amount,
		Method:       money.MethodTransfer,
		Detail:       "Transfer from " + originID,
		Counterparty: originID,
		CreatedAt:    now,
	}

	err := s.store.AtomicMultiUpdate(ctx,
		store.Update{AccountID: originID, Delta: -totalDebit, Movement: originMv},
		store.Update{AccountID: targetID, Delta: amount, Movement: targetMv})
	if err != nil {
		return nil, mapTransferError(err, originID)
	}

	acct, err := s.store.Load(ctx, originID)
	if err != nil {
		return nil, mapStoreError(err, ErrOriginNotFound)
	}

	return &TransferResult{
		Amount:         amount,
		Commission:     commission,
		TotalDebit:     totalDebit,
		TargetAccount:  targetID,
		NewBalance:     acct.Balance,
		OriginMovement: originMv,
		TargetMovement: targetMv,
	}, nil
}

// Balance is an idempotent read of the current account state.
func (s *LedgerService) Balance(ctx context.Context, accountID string) (*BalanceResult, error) {
	acct, err := s.store.Load(ctx, accountID)
	if err != nil {
		return nil, mapStoreError(err, ErrAccountNotFound)
	}
	return &BalanceResult{
		AccountID:   acct.ID,
		Balance:     acct.Balance,
		LastUpdated: acct.UpdatedAt,
	}, nil
}

// mapTransferError distinguishes the two not-found sides and folds every
// other store-level abort into AtomicityFailure: the multi-account write
// either fully applied or did not happen at all.
func mapTransferError(err error, originID string) *LedgerError {
	var notFound *store.NotFoundError
	if errors.As(err, &notFound) {
		kind := ErrTargetNotFound
		if notFound.AccountID == originID {
			kind = ErrOriginNotFound
		}
		return &LedgerError{
			Kind:    kind,
			Message: fmt.Sprintf("account %q does not exist", notFound.AccountID),
		}
	}

	var insufficient *store.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return insufficientFunds(insufficient.Available, insufficient.Required)
	}

	return &LedgerError{
		Kind:    ErrAtomicityFailure,
		Message: "transfer aborted, neither account was modified",
	}
}

// cacheWithdrawalCode stores the code for teller lookup. Best effort: the
// movement record already carries the code, so a cache failure only costs
// the fast lookup path.
func (s *LedgerService) cacheWithdrawalCode(ctx context.Context, code, accountID string) {
	if s.redis == nil {
		return
	}
	key := "withdrawal_code:" + code
	if err := s.redis.Set(ctx, key, accountID, s.cfg.WithdrawalCodeTTL).Err(); err != nil {
		log.Printf("[LEDGER] Failed to cache withdrawal code: %v", err)
	}
}

func generateWithdrawalCode() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}
