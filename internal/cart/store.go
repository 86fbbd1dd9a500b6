package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/shoply/checkout-service/internal/currency"
)

// Querier matches the query methods of *pgxpool.Pool used by the cart store.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore reads cart lines from the cart_lines table.
type PostgresStore struct {
	pool Querier
}

func NewPostgresStore(pool Querier) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Lines(ctx context.Context, userID string) ([]Line, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, quantity, unit_price, price_currency
		FROM cart_lines
		WHERE user_id = $1
		ORDER BY added_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select cart_lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ProductID, &line.Quantity,
			&line.UnitPrice.Amount, &line.UnitPrice.Currency); err != nil {
			return nil, fmt.Errorf("scan cart_line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return lines, nil
}

// MemoryStore is the in-memory cart used by demo mode and tests.
type MemoryStore struct {
	mu    sync.Mutex
	lines map[string][]Line
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lines: make(map[string][]Line)}
}

func (s *MemoryStore) Put(userID string, lines ...Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[userID] = append([]Line(nil), lines...)
}

func (s *MemoryStore) Lines(ctx context.Context, userID string) ([]Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines[userID]...), nil
}

// AddLine is a convenience for seeding demo carts with captured prices.
func (s *MemoryStore) AddLine(userID, productID string, quantity int, unitPrice currency.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[userID] = append(s.lines[userID], Line{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	})
}
