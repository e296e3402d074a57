// Package store owns the durable mapping from account id to account state:
// the balance plus the ordered, append-only movement log. Mutations go
// through atomic primitives that fold the non-negative balance check and
// the log append into a single conditional write, so callers never observe
// a half-applied state.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cesdefin/backend/internal/models"
)

var (
	// ErrConflict signals a concurrent update aborted the write; nothing
	// was applied. The caller may retry.
	ErrConflict = errors.New("conflicting concurrent update")

	// ErrUnavailable wraps transient backend failures (connection loss,
	// timeouts). Nothing was applied.
	ErrUnavailable = errors.New("store unavailable")

	// ErrAccountExists is returned by CreateAccount for duplicate ids.
	ErrAccountExists = errors.New("account already exists")
)

// NotFoundError identifies which account of an operation was missing.
type NotFoundError struct {
	AccountID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("account %q not found", e.AccountID)
}

// InsufficientBalanceError is returned when an update would drive a
// balance below zero. Available is the balance observed under lock,
// Required the total the update needed.
type InsufficientBalanceError struct {
	AccountID string
	Available int64
	Required  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("account %q has insufficient balance: available %d, required %d",
		e.AccountID, e.Available, e.Required)
}

// Update is one leg of a multi-account mutation.
type Update struct {
	AccountID string
	Delta     int64
	Movement  models.Movement
}

// Store is the account store contract the ledger engine builds on.
type Store interface {
	// Load returns the current account state without its movement log.
	Load(ctx context.Context, id string) (*models.Account, error)

	// Movements returns the account's full movement log in insertion
	// order (chronological order of acceptance).
	Movements(ctx context.Context, id string) ([]models.Movement, error)

	// AtomicUpdate adjusts one balance by delta and appends the movement,
	// both or neither. Fails with InsufficientBalanceError if the balance
	// would go negative. Returns the updated account.
	AtomicUpdate(ctx context.Context, id string, delta int64, mv models.Movement) (*models.Account, error)

	// AtomicMultiUpdate applies two updates so that both commit or
	// neither does. Accounts are locked in lexicographic id order.
	AtomicMultiUpdate(ctx context.Context, first, second Update) error

	// CreateAccount creates an account with the given seed balance and an
	// empty movement log.
	CreateAccount(ctx context.Context, id string, seed int64) (*models.Account, error)
}
