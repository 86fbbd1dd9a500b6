package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("product not found")

// DBPool matches the methods from *pgxpool.Pool that we use. This allows us
// to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository interface {
	Get(ctx context.Context, productID string) (Product, error)
	Upsert(ctx context.Context, p Product) error
	// Adjust applies a stock adjustment and returns the updated product from
	// the same atomic call.
	Adjust(ctx context.Context, productID string, adj Adjustment) (Product, error)
	// Reserve decrements stock for every line, or for none of them. The
	// decrement is a conditional update guarded by the current stock level,
	// so concurrent reservations of the last unit produce exactly one winner.
	Reserve(ctx context.Context, lines []Line) error
	// Release returns previously reserved quantities to stock.
	Release(ctx context.Context, lines []Line) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const productColumns = `id, sku, name, price, price_currency, stock`

func (r *PostgresRepository) Get(ctx context.Context, productID string) (Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1`, productID)
	return scanProduct(row)
}

func (r *PostgresRepository) Upsert(ctx context.Context, p Product) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, sku, name, price, price_currency, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			sku=EXCLUDED.sku,
			name=EXCLUDED.name,
			price=EXCLUDED.price,
			price_currency=EXCLUDED.price_currency,
			stock=EXCLUDED.stock,
			updated_at=now()
	`, p.ID, p.SKU, p.Name, p.Price.Amount, p.Price.Currency, p.Stock)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Adjust(ctx context.Context, productID string, adj Adjustment) (Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Product{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int
	if err := tx.QueryRow(ctx,
		`SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID,
	).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("lock product: %w", err)
	}

	next, err := adj.apply(current)
	if err != nil {
		return Product{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE products SET stock=$2, updated_at=now()
		WHERE id=$1
		RETURNING `+productColumns, productID, next)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Product{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Reserve(ctx context.Context, lines []Line) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, line := range lines {
		tag, err := tx.Exec(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2
		`, line.ProductID, line.Quantity)
		if err != nil {
			return fmt.Errorf("reserve %s: %w", line.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			// Guard failed: either the product is missing or stock is short.
			// The deferred rollback undoes any earlier decrements.
			available := 0
			if err := tx.QueryRow(ctx,
				`SELECT stock FROM products WHERE id=$1`, line.ProductID,
			).Scan(&available); err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("read stock for %s: %w", line.ProductID, err)
			}
			return &InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Release(ctx context.Context, lines []Line) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, line := range lines {
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET stock = stock + $2, updated_at = now()
			WHERE id = $1
		`, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("release %s: %w", line.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price.Amount, &p.Price.Currency, &p.Stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}
