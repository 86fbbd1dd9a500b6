package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// AttemptStore claims idempotency keys for checkout attempts. A key is
// claimed with the order id the attempt intends to create, before the order
// row exists; failed attempts release the key so the client can retry.
type AttemptStore interface {
	// Claim binds key to orderID. When the key is already taken it returns
	// the order id of the earlier claim and claimed=false.
	Claim(ctx context.Context, key, orderID string) (existingOrderID string, claimed bool, err error)
	Release(ctx context.Context, key string) error
}

// AttemptDB is the pgxpool subset the Postgres store needs.
type AttemptDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresAttemptStore struct {
	pool AttemptDB
}

func NewPostgresAttemptStore(pool AttemptDB) *PostgresAttemptStore {
	return &PostgresAttemptStore{pool: pool}
}

func (s *PostgresAttemptStore) Claim(ctx context.Context, key, orderID string) (string, bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO checkout_attempts (idempotency_key, order_id)
		 VALUES ($1, $2)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		key, orderID)
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return orderID, true, nil
	}

	var existing string
	err = s.pool.QueryRow(ctx,
		`SELECT order_id FROM checkout_attempts WHERE idempotency_key = $1`,
		key).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		// The earlier claim was released between our insert and this read.
		return "", false, ErrAttemptInProgress
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency claim: %w", err)
	}
	return existing, false, nil
}

func (s *PostgresAttemptStore) Release(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM checkout_attempts WHERE idempotency_key = $1`, key); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// MemoryAttemptStore backs demo mode and tests.
type MemoryAttemptStore struct {
	mu     sync.Mutex
	claims map[string]string
}

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{claims: make(map[string]string)}
}

func (s *MemoryAttemptStore) Claim(ctx context.Context, key, orderID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.claims[key]; ok {
		return existing, false, nil
	}
	s.claims[key] = orderID
	return orderID, true, nil
}

func (s *MemoryAttemptStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}
