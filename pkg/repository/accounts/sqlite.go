package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/alexbrdn/wingmate-api/pkg/domain"
)

type Config struct {
	DatabasePath   string
	MigrationsPath string
}

// SQLiteStore keeps account records in a local SQLite database. Transactions
// open with an immediate write lock (_txlock=immediate), so TryDebit's
// read-check-write runs serialized against every other writer.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", cfg.DatabasePath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.MigrationsPath != "" {
		if err := runMigrations(db, cfg.MigrationsPath); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB, path string) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

const queryGetAccount = `
	SELECT id, email, token_balance, is_premium, created_at, last_used_at
	FROM accounts
	WHERE id = ?`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, queryGetAccount, id))
}

func (s *SQLiteStore) Create(ctx context.Context, id, email string, balance int) (*domain.Account, error) {
	if id == "" {
		id = uuid.NewString()
	}

	createdAt := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, token_balance, is_premium, created_at) VALUES (?, ?, ?, 0, ?)`,
		id, email, balance, createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	return &domain.Account{ID: id, Email: email, Balance: balance, CreatedAt: createdAt}, nil
}

// TryDebit decrements the balance by one inside a write transaction. The
// balance is re-read under the transaction, so a request that passed the
// advisory pre-check but lost the race to another debit fails here with
// ErrInsufficientBalance instead of driving the balance negative.
func (s *SQLiteStore) TryDebit(ctx context.Context, id string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin debit transaction: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRowContext(ctx, `SELECT token_balance FROM accounts WHERE id = ?`, id).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	if balance <= 0 {
		return 0, ErrInsufficientBalance
	}

	newBalance := balance - 1
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET token_balance = ?, last_used_at = ? WHERE id = ? AND token_balance = ?`,
		newBalance, time.Now().UTC(), id, balance,
	)
	if err != nil {
		return 0, fmt.Errorf("debit balance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("debit balance: %w", err)
	}
	if n == 0 {
		// Guard against a concurrent writer sneaking in between the read and
		// the update; with immediate transactions this does not happen, but
		// the invariant must not depend on the locking mode.
		return 0, ErrInsufficientBalance
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit debit: %w", err)
	}

	return newBalance, nil
}

func (s *SQLiteStore) AddTokens(ctx context.Context, id string, n int) (int, error) {
	var newBalance int
	err := s.db.QueryRowContext(ctx,
		`UPDATE accounts SET token_balance = MAX(token_balance + ?, 0) WHERE id = ? RETURNING token_balance`,
		n, id,
	).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("add tokens: %w", err)
	}
	return newBalance, nil
}

func (s *SQLiteStore) SetPremium(ctx context.Context, id string, premium bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET is_premium = ? WHERE id = ?`, premium, id)
	if err != nil {
		return fmt.Errorf("set premium: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set premium: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		acct       domain.Account
		lastUsedAt sql.NullTime
	)

	err := row.Scan(&acct.ID, &acct.Email, &acct.Balance, &acct.IsPremium, &acct.CreatedAt, &lastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}

	if lastUsedAt.Valid {
		acct.LastUsedAt = lastUsedAt.Time
	}
	return &acct, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
