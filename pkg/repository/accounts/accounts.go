// Package accounts persists one balance record per user. All balance
// mutation goes through TryDebit and AddTokens; nothing else writes the
// balance column.
package accounts

import (
	"context"
	"errors"

	"github.com/alexbrdn/wingmate-api/pkg/domain"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Store is the balance store contract. TryDebit is the single serialization
// point for concurrent requests against the same account: it atomically
// re-checks the balance and decrements it by one, refusing to go negative.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Account, error)
	Create(ctx context.Context, id, email string, balance int) (*domain.Account, error)
	TryDebit(ctx context.Context, id string) (newBalance int, err error)
	AddTokens(ctx context.Context, id string, n int) (newBalance int, err error)
	SetPremium(ctx context.Context, id string, premium bool) error
	Close() error
}
