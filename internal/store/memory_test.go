package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesdefin/backend/internal/models"
)

func mv(id string, kind models.MovementKind, gross, commission, net int64) models.Movement {
	return models.Movement{
		ID: id, Kind: kind, Gross: gross, Commission: commission, Net: net,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryStore_AtomicUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.CreateAccount(ctx, "alice", 1000)
	require.NoError(t, err)

	t.Run("applies delta and appends movement", func(t *testing.T) {
		acct, err := s.AtomicUpdate(ctx, "alice", 975, mv("m1", models.KindDeposit, 1000, 25, 975))
		require.NoError(t, err)
		assert.Equal(t, int64(1975), acct.Balance)

		movements, err := s.Movements(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, movements, 1)
	})

	t.Run("rejects overdraft with available balance", func(t *testing.T) {
		_, err := s.AtomicUpdate(ctx, "alice", -5000, mv("m2", models.KindWithdrawal, -5000, 0, -5000))
		var insufficient *InsufficientBalanceError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(1975), insufficient.Available)
		assert.Equal(t, int64(5000), insufficient.Required)

		// Nothing applied: balance and log unchanged.
		acct, err := s.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(1975), acct.Balance)
		movements, _ := s.Movements(ctx, "alice")
		assert.Len(t, movements, 1)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := s.AtomicUpdate(ctx, "ghost", 100, mv("m3", models.KindDeposit, 100, 0, 100))
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestMemoryStore_ConcurrentWithdrawalsNoOverdraft(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.CreateAccount(ctx, "alice", 1000)
	require.NoError(t, err)

	// 10 concurrent withdrawals of 300 against a balance of 1000: at most
	// 3 may succeed, the account must never go negative.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := mv(fmt.Sprintf("w%d", i), models.KindWithdrawal, -300, 0, -300)
			if _, err := s.AtomicUpdate(ctx, "alice", -300, m); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	acct, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.Balance)
	assert.GreaterOrEqual(t, acct.Balance, int64(0))
}

func TestMemoryStore_AtomicMultiUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.CreateAccount(ctx, "alice", 500)
	_, _ = s.CreateAccount(ctx, "bob", 0)

	t.Run("both legs applied together", func(t *testing.T) {
		err := s.AtomicMultiUpdate(ctx,
			Update{AccountID: "alice", Delta: -101, Movement: mv("t1", models.KindTransfer, -100, 1, -101)},
			Update{AccountID: "bob", Delta: 100, Movement: mv("t2", models.KindTransfer, 100, 0, 100)})
		require.NoError(t, err)

		alice, _ := s.Load(ctx, "alice")
		bob, _ := s.Load(ctx, "bob")
		assert.Equal(t, int64(399), alice.Balance)
		assert.Equal(t, int64(100), bob.Balance)
	})

	t.Run("insufficient funds leaves both untouched", func(t *testing.T) {
		err := s.AtomicMultiUpdate(ctx,
			Update{AccountID: "alice", Delta: -1000, Movement: mv("t3", models.KindTransfer, -995, 5, -1000)},
			Update{AccountID: "bob", Delta: 995, Movement: mv("t4", models.KindTransfer, 995, 0, 995)})
		var insufficient *InsufficientBalanceError
		require.ErrorAs(t, err, &insufficient)

		alice, _ := s.Load(ctx, "alice")
		bob, _ := s.Load(ctx, "bob")
		assert.Equal(t, int64(399), alice.Balance)
		assert.Equal(t, int64(100), bob.Balance)
		aliceMoves, _ := s.Movements(ctx, "alice")
		bobMoves, _ := s.Movements(ctx, "bob")
		assert.Len(t, aliceMoves, 1)
		assert.Len(t, bobMoves, 1)
	})

	t.Run("missing account", func(t *testing.T) {
		err := s.AtomicMultiUpdate(ctx,
			Update{AccountID: "alice", Delta: -10, Movement: mv("t5", models.KindTransfer, -10, 0, -10)},
			Update{AccountID: "ghost", Delta: 10, Movement: mv("t6", models.KindTransfer, 10, 0, 10)})
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "ghost", notFound.AccountID)
	})
}

func TestMemoryStore_OpposedTransfersDoNotDeadlock(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.CreateAccount(ctx, "alice", 10000)
	_, _ = s.CreateAccount(ctx, "bob", 10000)

	// Transfers in both directions between the same pair, concurrently.
	// Ordered lock acquisition must prevent deadlock; total money is
	// conserved because every leg pair nets to zero.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.AtomicMultiUpdate(ctx,
				Update{AccountID: "alice", Delta: -10, Movement: mv(fmt.Sprintf("a%d", i), models.KindTransfer, -10, 0, -10)},
				Update{AccountID: "bob", Delta: 10, Movement: mv(fmt.Sprintf("b%d", i), models.KindTransfer, 10, 0, 10)})
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = s.AtomicMultiUpdate(ctx,
				Update{AccountID: "bob", Delta: -10, Movement: mv(fmt.Sprintf("c%d", i), models.KindTransfer, -10, 0, -10)},
				Update{AccountID: "alice", Delta: 10, Movement: mv(fmt.Sprintf("d%d", i), models.KindTransfer, 10, 0, 10)})
		}(i)
	}
	wg.Wait()

	alice, _ := s.Load(ctx, "alice")
	bob, _ := s.Load(ctx, "bob")
	assert.Equal(t, int64(20000), alice.Balance+bob.Balance)
}

func TestMemoryStore_Conservation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.CreateAccount(ctx, "alice", 0)

	deltas := []int64{975, -300, 990, -101, 50}
	for i, d := range deltas {
		kind := models.KindDeposit
		if d < 0 {
			kind = models.KindWithdrawal
		}
		_, err := s.AtomicUpdate(ctx, "alice", d, mv(fmt.Sprintf("c%d", i), kind, d, 0, d))
		require.NoError(t, err)
	}

	acct, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	movements, err := s.Movements(ctx, "alice")
	require.NoError(t, err)

	var sum int64
	for _, m := range movements {
		sum += m.Net
	}
	assert.Equal(t, acct.Balance, sum)
}

func TestMemoryStore_CreateAccount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	acct, err := s.CreateAccount(ctx, "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.Balance)

	_, err = s.CreateAccount(ctx, "alice", 0)
	assert.True(t, errors.Is(err, ErrAccountExists))
}
