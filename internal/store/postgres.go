package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cesdefin/backend/internal/models"
)

// PostgresStore keeps account state in two tables: accounts (balance +
// version) and movements (the append-only log). Row locks taken in
// lexicographic id order serialize the validate-then-mutate sequence per
// account and keep opposite-direction transfers deadlock free.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*models.Account, error) {
	var acct models.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, balance, version, created_at, updated_at
		FROM accounts
		WHERE id = $1`, id).
		Scan(&acct.ID, &acct.Balance, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{AccountID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &acct, nil
}

func (s *PostgresStore) Movements(ctx context.Context, id string) ([]models.Movement, error) {
	if _, err := s.Load(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, gross, commission, net, method, detail, counterparty, created_at
		FROM movements
		WHERE account_id = $1
		ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	movements := []models.Movement{}
	for rows.Next() {
		var mv models.Movement
		if err := rows.Scan(&mv.ID, &mv.Kind, &mv.Gross, &mv.Commission, &mv.Net,
			&mv.Method, &mv.Detail, &mv.Counterparty, &mv.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		movements = append(movements, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return movements, nil
}

func (s *PostgresStore) AtomicUpdate(ctx context.Context, id string, delta int64, mv models.Movement) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	acct, err := s.lockAccount(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	newBalance := acct.Balance + delta
	if newBalance < 0 {
		return nil, &InsufficientBalanceError{AccountID: id, Available: acct.Balance, Required: -delta}
	}

	if err := s.appendMovement(ctx, tx, id, mv); err != nil {
		return nil, err
	}
	if err := s.updateBalance(ctx, tx, id, newBalance, acct.Version); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	acct.Balance = newBalance
	acct.Version++
	acct.UpdatedAt = mv.CreatedAt
	return acct, nil
}

func (s *PostgresStore) AtomicMultiUpdate(ctx context.Context, first, second Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	// Lock accounts in consistent order to prevent deadlocks.
	firstLock, secondLock := first, second
	if first.AccountID > second.AccountID {
		firstLock, secondLock = second, first
	}

	firstAcct, err := s.lockAccount(ctx, tx, firstLock.AccountID)
	if err != nil {
		return err
	}
	secondAcct, err := s.lockAccount(ctx, tx, secondLock.AccountID)
	if err != nil {
		return err
	}

	for _, leg := range []struct {
		upd  Update
		acct *models.Account
	}{{firstLock, firstAcct}, {secondLock, secondAcct}} {
		newBalance := leg.acct.Balance + leg.upd.Delta
		if newBalance < 0 {
			return &InsufficientBalanceError{
				AccountID: leg.upd.AccountID,
				Available: leg.acct.Balance,
				Required:  -leg.upd.Delta,
			}
		}
		if err := s.appendMovement(ctx, tx, leg.upd.AccountID, leg.upd.Movement); err != nil {
			return err
		}
		if err := s.updateBalance(ctx, tx, leg.upd.AccountID, newBalance, leg.acct.Version); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, id string, seed int64) (*models.Account, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, version, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $3)`, id, seed, now)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &models.Account{ID: id, Balance: seed, Version: 1, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *PostgresStore) lockAccount(ctx context.Context, tx *sql.Tx, id string) (*models.Account, error) {
	var acct models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT id, balance, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, id).
		Scan(&acct.ID, &acct.Balance, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{AccountID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &acct, nil
}

func (s *PostgresStore) appendMovement(ctx context.Context, tx *sql.Tx, accountID string, mv models.Movement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO movements (id, account_id, kind, gross, commission, net, method, detail, counterparty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		mv.ID, accountID, mv.Kind, mv.Gross, mv.Commission, mv.Net,
		mv.Method, mv.Detail, mv.Counterparty, mv.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) updateBalance(ctx context.Context, tx *sql.Tx, id string, newBalance int64, version int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now().UTC(), id, version)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if rowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
