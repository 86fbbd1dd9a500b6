package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository implements Repository behind one mutex. Demo mode and the
// orchestration tests run on it; transition legality comes from the same
// table the Postgres guards are built from.
type MemoryRepository struct {
	mu     sync.Mutex
	orders map[string]*Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]*Order)}
}

func (r *MemoryRepository) Create(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	r.orders[o.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, orderID string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyOf(orderID)
}

func (r *MemoryRepository) GetByIntentID(ctx context.Context, intentID string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, o := range r.orders {
		if o.PaymentIntentID == intentID && intentID != "" {
			return r.copyOf(id)
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Order
	for id, o := range r.orders {
		if o.UserID == userID {
			cp, _ := r.copyOf(id)
			out = append(out, *cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) MarkProcessing(ctx context.Context, orderID, intentID string) (*Order, error) {
	return r.apply(orderID, EventIntentCreated, func(o *Order) error {
		if o.PaymentIntentID != "" {
			return &InvalidTransitionError{OrderID: orderID, From: o.Status, Event: EventIntentCreated}
		}
		o.PaymentIntentID = intentID
		return nil
	})
}

func (r *MemoryRepository) MarkPaid(ctx context.Context, orderID string) (*Order, error) {
	return r.apply(orderID, EventPaymentSucceeded, func(o *Order) error {
		o.PaymentStatus = PaymentPaid
		return nil
	})
}

func (r *MemoryRepository) MarkPaymentFailed(ctx context.Context, orderID string) (*Order, error) {
	return r.apply(orderID, EventPaymentFailed, func(o *Order) error {
		o.PaymentStatus = PaymentFailed
		return nil
	})
}

func (r *MemoryRepository) MarkShipped(ctx context.Context, orderID, trackingNumber string) (*Order, error) {
	return r.apply(orderID, EventShipped, func(o *Order) error {
		o.TrackingNumber = trackingNumber
		return nil
	})
}

func (r *MemoryRepository) MarkDelivered(ctx context.Context, orderID string) (*Order, error) {
	return r.apply(orderID, EventDelivered, func(o *Order) error { return nil })
}

func (r *MemoryRepository) MarkCancelled(ctx context.Context, orderID string) (*Order, error) {
	return r.apply(orderID, EventCancelled, func(o *Order) error {
		if o.PaymentStatus == PaymentPaid {
			o.PaymentStatus = PaymentRefunded
		}
		return nil
	})
}

// apply runs one transition atomically: the table decides the next status,
// mutate sets the event's side fields, and the updated copy is returned.
func (r *MemoryRepository) apply(orderID string, ev Event, mutate func(*Order) error) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}

	next, err := Next(orderID, o.Status, ev)
	if err != nil {
		return nil, err
	}

	staged := *o
	staged.Items = append([]Item(nil), o.Items...)
	if err := mutate(&staged); err != nil {
		return nil, err
	}
	staged.Status = next
	staged.UpdatedAt = time.Now().UTC()

	r.orders[orderID] = &staged
	cp := staged
	cp.Items = append([]Item(nil), staged.Items...)
	return &cp, nil
}

func (r *MemoryRepository) copyOf(orderID string) (*Order, error) {
	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return &cp, nil
}
