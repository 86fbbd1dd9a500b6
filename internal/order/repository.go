package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("order not found")

// DBPool matches the methods from *pgxpool.Pool that we use. This allows us
// to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository persists orders. Every Mark* mutation is a single conditional
// update guarded by the transition table and returns the updated aggregate
// from the same call; there is no update-then-refetch window.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, orderID string) (*Order, error)
	GetByIntentID(ctx context.Context, intentID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// MarkProcessing stores the payment intent id and applies
	// pending -> processing. The intent id column is only written while NULL,
	// so an intent maps to at most one order.
	MarkProcessing(ctx context.Context, orderID, intentID string) (*Order, error)
	MarkPaid(ctx context.Context, orderID string) (*Order, error)
	MarkPaymentFailed(ctx context.Context, orderID string) (*Order, error)
	MarkShipped(ctx context.Context, orderID, trackingNumber string) (*Order, error)
	MarkDelivered(ctx context.Context, orderID string) (*Order, error)
	// MarkCancelled also flips payment_status to refunded when payment had
	// succeeded.
	MarkCancelled(ctx context.Context, orderID string) (*Order, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const orderColumns = `id, order_number, user_id, status, payment_status, currency,
	subtotal, tax, shipping_cost, discount, total,
	COALESCE(payment_intent_id, ''), COALESCE(tracking_number, ''),
	created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, payment_status, currency,
			subtotal, tax, shipping_cost, discount, total, payment_intent_id, tracking_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''))
		RETURNING created_at, updated_at`,
		o.ID, o.OrderNumber, o.UserID, o.Status, o.PaymentStatus, o.Currency,
		o.Subtotal, o.Tax, o.ShippingCost, o.Discount, o.Total,
		o.PaymentIntentID, o.TrackingNumber,
	).Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, price_currency)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), o.ID, it.ProductID, it.Quantity, it.UnitPrice, it.Currency,
		); err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID string) (*Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID)
	return r.scanWithItems(ctx, row)
}

func (r *PostgresRepository) GetByIntentID(ctx context.Context, intentID string) (*Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_intent_id=$1`, intentID)
	return r.scanWithItems(ctx, row)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *PostgresRepository) MarkProcessing(ctx context.Context, orderID, intentID string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status=$3, payment_intent_id=$2, updated_at=now()
		WHERE id=$1 AND status = ANY($4) AND payment_intent_id IS NULL
		RETURNING `+orderColumns,
		orderID, intentID, StatusProcessing, statusArgs(EventIntentCreated))
	return r.afterTransition(ctx, row, orderID, EventIntentCreated)
}

func (r *PostgresRepository) MarkPaid(ctx context.Context, orderID string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status=$2, payment_status=$3, updated_at=now()
		WHERE id=$1 AND status = ANY($4)
		RETURNING `+orderColumns,
		orderID, StatusPaid, PaymentPaid, statusArgs(EventPaymentSucceeded))
	return r.afterTransition(ctx, row, orderID, EventPaymentSucceeded)
}

func (r *PostgresRepository) MarkPaymentFailed(ctx context.Context, orderID string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status=$2, payment_status=$3, updated_at=now()
		WHERE id=$1 AND status = ANY($4)
		RETURNING `+orderColumns,
		orderID, StatusFailed, PaymentFailed, statusArgs(EventPaymentFailed))
	return r.afterTransition(ctx, row, orderID, EventPaymentFailed)
}

func (r *PostgresRepository) MarkShipped(ctx context.Context, orderID, trackingNumber string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status=$3, tracking_number=NULLIF($2, ''), updated_at=now()
		WHERE id=$1 AND status = ANY($4)
		RETURNING `+orderColumns,
		orderID, trackingNumber, StatusShipped, statusArgs(EventShipped))
	return r.afterTransition(ctx, row, orderID, EventShipped)
}

func (r *PostgresRepository) MarkDelivered(ctx context.Context, orderID string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status=$2, updated_at=now()
		WHERE id=$1 AND status = ANY($3)
		RETURNING `+orderColumns,
		orderID, StatusDelivered, statusArgs(EventDelivered))
	return r.afterTransition(ctx, row, orderID, EventDelivered)
}

func (r *PostgresRepository) MarkCancelled(ctx context.Context, orderID string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status=$2,
			payment_status = CASE WHEN payment_status=$3 THEN $4 ELSE payment_status END,
			updated_at=now()
		WHERE id=$1 AND status = ANY($5)
		RETURNING `+orderColumns,
		orderID, StatusCancelled, PaymentPaid, PaymentRefunded, statusArgs(EventCancelled))
	return r.afterTransition(ctx, row, orderID, EventCancelled)
}

// statusArgs renders the transition table's source statuses for ev as a
// text[] guard argument.
func statusArgs(ev Event) []string {
	froms := SourceStatuses(ev)
	out := make([]string, len(froms))
	for i, s := range froms {
		out[i] = string(s)
	}
	return out
}

// afterTransition resolves a conditional update: either the guarded row came
// back, or we diagnose whether the order is missing or the transition illegal.
func (r *PostgresRepository) afterTransition(ctx context.Context, row pgx.Row, orderID string, ev Event) (*Order, error) {
	o, err := scanOrder(row)
	if err == nil {
		o.Items, err = r.loadItems(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		return o, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	current, getErr := r.GetByID(ctx, orderID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &InvalidTransitionError{OrderID: orderID, From: current.Status, Event: ev}
}

func (r *PostgresRepository) loadItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity, unit_price, price_currency
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice, &it.Currency); err != nil {
			return nil, fmt.Errorf("scan order_item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) scanWithItems(ctx context.Context, row pgx.Row) (*Order, error) {
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	o.Items, err = r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.Currency, &o.Subtotal, &o.Tax, &o.ShippingCost, &o.Discount, &o.Total,
		&o.PaymentIntentID, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}
