package store

import (
	"context"
	"sync"
	"time"

	"github.com/cesdefin/backend/internal/models"
)

// MemoryStore is an in-process Store keyed by account id. Each account
// carries its own mutex so unrelated accounts never contend; multi-account
// updates lock both accounts in lexicographic id order.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*memAccount
}

type memAccount struct {
	mu        sync.Mutex
	acct      models.Account
	movements []models.Movement
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*memAccount)}
}

func (s *MemoryStore) get(id string) (*memAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, &NotFoundError{AccountID: id}
	}
	return a, nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*models.Account, error) {
	a, err := s.get(id)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := a.acct
	return &cp, nil
}

func (s *MemoryStore) Movements(ctx context.Context, id string) ([]models.Movement, error) {
	a, err := s.get(id)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Movement, len(a.movements))
	copy(out, a.movements)
	return out, nil
}

func (s *MemoryStore) AtomicUpdate(ctx context.Context, id string, delta int64, mv models.Movement) (*models.Account, error) {
	a, err := s.get(id)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	newBalance := a.acct.Balance + delta
	if newBalance < 0 {
		return nil, &InsufficientBalanceError{AccountID: id, Available: a.acct.Balance, Required: -delta}
	}

	a.acct.Balance = newBalance
	a.acct.Version++
	a.acct.UpdatedAt = time.Now().UTC()
	a.movements = append(a.movements, mv)
	cp := a.acct
	return &cp, nil
}

func (s *MemoryStore) AtomicMultiUpdate(ctx context.Context, first, second Update) error {
	a, err := s.get(first.AccountID)
	if err != nil {
		return err
	}
	b, err := s.get(second.AccountID)
	if err != nil {
		return err
	}

	// Lock in lexicographic id order so opposite-direction transfers
	// between the same pair cannot deadlock.
	la, lb := a, b
	if first.AccountID > second.AccountID {
		la, lb = b, a
	}
	la.mu.Lock()
	defer la.mu.Unlock()
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if a.acct.Balance+first.Delta < 0 {
		return &InsufficientBalanceError{AccountID: first.AccountID, Available: a.acct.Balance, Required: -first.Delta}
	}
	if b.acct.Balance+second.Delta < 0 {
		return &InsufficientBalanceError{AccountID: second.AccountID, Available: b.acct.Balance, Required: -second.Delta}
	}

	now := time.Now().UTC()
	a.acct.Balance += first.Delta
	a.acct.Version++
	a.acct.UpdatedAt = now
	a.movements = append(a.movements, first.Movement)

	b.acct.Balance += second.Delta
	b.acct.Version++
	b.acct.UpdatedAt = now
	b.movements = append(b.movements, second.Movement)
	return nil
}

func (s *MemoryStore) CreateAccount(ctx context.Context, id string, seed int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; ok {
		return nil, ErrAccountExists
	}
	now := time.Now().UTC()
	a := &memAccount{acct: models.Account{ID: id, Balance: seed, Version: 1, CreatedAt: now, UpdatedAt: now}}
	s.accounts[id] = a
	cp := a.acct
	return &cp, nil
}
