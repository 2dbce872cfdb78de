package accounts

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		DatabasePath:   filepath.Join(t.TempDir(), "test.db"),
		MigrationsPath: "../../../migrations",
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "user-1", "user@example.com", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, created.Balance)

	got, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)
	assert.Equal(t, "user@example.com", got.Email)
	assert.Equal(t, 10, got.Balance)
	assert.False(t, got.IsPremium)
	assert.True(t, got.LastUsedAt.IsZero(), "last_used_at should be unset before the first debit")

	_, err = store.Create(ctx, "user-1", "dup@example.com", 1)
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSQLiteStore_TryDebit(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "user-1", "", 2)
	require.NoError(t, err)

	newBalance, err := store.TryDebit(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, newBalance)

	newBalance, err = store.TryDebit(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, newBalance)

	_, err = store.TryDebit(ctx, "user-1")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	acct, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, acct.Balance)
	assert.False(t, acct.LastUsedAt.IsZero())

	_, err = store.TryDebit(ctx, "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSQLiteStore_TryDebit_Concurrent(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	const balance = 5
	const attempts = 20

	_, err := store.Create(ctx, "user-1", "", balance)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.TryDebit(ctx, "user-1")
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientBalance)
		}
	}
	assert.Equal(t, balance, succeeded)

	acct, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, acct.Balance)
}

func TestSQLiteStore_AddTokensAndSetPremium(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "user-1", "", 0)
	require.NoError(t, err)

	newBalance, err := store.AddTokens(ctx, "user-1", 25)
	require.NoError(t, err)
	assert.Equal(t, 25, newBalance)

	newBalance, err = store.AddTokens(ctx, "user-1", -100)
	require.NoError(t, err)
	assert.Equal(t, 0, newBalance)

	_, err = store.AddTokens(ctx, "ghost", 1)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, store.SetPremium(ctx, "user-1", true))
	acct, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, acct.IsPremium)

	assert.ErrorIs(t, store.SetPremium(ctx, "ghost", true), ErrAccountNotFound)
}
