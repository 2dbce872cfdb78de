package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexbrdn/wingmate-api/pkg/domain"
)

// MemoryStore is a mutex-guarded in-process store. It backs tests and the
// no-database development mode; the mutex gives TryDebit the same
// check-then-decrement atomicity the SQLite store gets from its conditional
// update.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*domain.Account)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}

	cp := *acct
	return &cp, nil
}

func (s *MemoryStore) Create(_ context.Context, id, email string, balance int) (*domain.Account, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; ok {
		return nil, ErrAccountExists
	}

	acct := &domain.Account{
		ID:        id,
		Email:     email,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[id] = acct

	cp := *acct
	return &cp, nil
}

func (s *MemoryStore) TryDebit(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return 0, ErrAccountNotFound
	}

	if acct.Balance <= 0 {
		return 0, ErrInsufficientBalance
	}

	acct.Balance--
	acct.LastUsedAt = time.Now().UTC()
	return acct.Balance, nil
}

func (s *MemoryStore) AddTokens(_ context.Context, id string, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return 0, ErrAccountNotFound
	}

	acct.Balance += n
	if acct.Balance < 0 {
		acct.Balance = 0
	}
	return acct.Balance, nil
}

func (s *MemoryStore) SetPremium(_ context.Context, id string, premium bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}

	acct.IsPremium = premium
	return nil
}

func (s *MemoryStore) Close() error { return nil }
