package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/cesdefin/backend/internal/models"
)

func accountRows(id string, balance int64, version int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "balance", "version", "created_at", "updated_at"}).
		AddRow(id, balance, version, now, now)
}

func TestPostgresStore_AtomicUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	mv := models.Movement{ID: "mv1", Kind: models.KindDeposit, Gross: 1000, Commission: 25, Net: 975, Method: "card", CreatedAt: time.Now().UTC()}

	t.Run("successful deposit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, balance, version, created_at, updated_at FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("alice").
			WillReturnRows(accountRows("alice", 500, 3))
		mock.ExpectExec("INSERT INTO movements").
			WithArgs(mv.ID, "alice", mv.Kind, mv.Gross, mv.Commission, mv.Net, mv.Method, mv.Detail, mv.Counterparty, mv.CreatedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
			WithArgs(int64(1475), sqlmock.AnyArg(), "alice", 3).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		acct, err := s.AtomicUpdate(context.Background(), "alice", 975, mv)
		assert.NoError(t, err)
		assert.Equal(t, int64(1475), acct.Balance)
		assert.Equal(t, 4, acct.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs("alice").
			WillReturnRows(accountRows("alice", 500, 3))
		mock.ExpectRollback()

		_, err := s.AtomicUpdate(context.Background(), "alice", -1500, models.Movement{ID: "mv2"})
		var insufficient *InsufficientBalanceError
		assert.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(500), insufficient.Available)
		assert.Equal(t, int64(1500), insufficient.Required)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("account not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := s.AtomicUpdate(context.Background(), "ghost", 100, models.Movement{ID: "mv3"})
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
		assert.Equal(t, "ghost", notFound.AccountID)
	})

	t.Run("optimistic lock conflict", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs("alice").
			WillReturnRows(accountRows("alice", 500, 3))
		mock.ExpectExec("INSERT INTO movements").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := s.AtomicUpdate(context.Background(), "alice", 100, models.Movement{ID: "mv4"})
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestPostgresStore_AtomicMultiUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	now := time.Now().UTC()

	originMv := models.Movement{ID: "mv-o", Kind: models.KindTransfer, Gross: -100, Commission: 1, Net: -101, Counterparty: "bob", CreatedAt: now}
	targetMv := models.Movement{ID: "mv-t", Kind: models.KindTransfer, Gross: 100, Net: 100, Counterparty: "zoe", CreatedAt: now}

	t.Run("locks accounts in id order", func(t *testing.T) {
		// Origin "zoe" sorts after target "bob"; bob must be locked first.
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("bob").
			WillReturnRows(accountRows("bob", 0, 1))
		mock.ExpectQuery("FOR UPDATE").WithArgs("zoe").
			WillReturnRows(accountRows("zoe", 500, 1))
		mock.ExpectExec("INSERT INTO movements").
			WithArgs(targetMv.ID, "bob", targetMv.Kind, targetMv.Gross, targetMv.Commission, targetMv.Net, targetMv.Method, targetMv.Detail, targetMv.Counterparty, targetMv.CreatedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(100), sqlmock.AnyArg(), "bob", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO movements").
			WithArgs(originMv.ID, "zoe", originMv.Kind, originMv.Gross, originMv.Commission, originMv.Net, originMv.Method, originMv.Detail, originMv.Counterparty, originMv.CreatedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(399), sqlmock.AnyArg(), "zoe", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := s.AtomicMultiUpdate(context.Background(),
			Update{AccountID: "zoe", Delta: -101, Movement: originMv},
			Update{AccountID: "bob", Delta: 100, Movement: targetMv})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient origin balance aborts both", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("alice").
			WillReturnRows(accountRows("alice", 50, 1))
		mock.ExpectQuery("FOR UPDATE").WithArgs("bob").
			WillReturnRows(accountRows("bob", 0, 1))
		mock.ExpectRollback()

		err := s.AtomicMultiUpdate(context.Background(),
			Update{AccountID: "alice", Delta: -101, Movement: originMv},
			Update{AccountID: "bob", Delta: 100, Movement: targetMv})
		var insufficient *InsufficientBalanceError
		assert.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "alice", insufficient.AccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing target aborts before any write", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("alice").
			WillReturnRows(accountRows("alice", 500, 1))
		mock.ExpectQuery("FOR UPDATE").WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := s.AtomicMultiUpdate(context.Background(),
			Update{AccountID: "alice", Delta: -101, Movement: originMv},
			Update{AccountID: "ghost", Delta: 100, Movement: targetMv})
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
		assert.Equal(t, "ghost", notFound.AccountID)
	})
}

func TestPostgresStore_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)

	t.Run("existing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, balance, version, created_at, updated_at FROM accounts WHERE id = \\$1").
			WithArgs("alice").
			WillReturnRows(accountRows("alice", 1200, 7))

		acct, err := s.Load(context.Background(), "alice")
		assert.NoError(t, err)
		assert.Equal(t, int64(1200), acct.Balance)
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, balance, version, created_at, updated_at FROM accounts").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := s.Load(context.Background(), "ghost")
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}
