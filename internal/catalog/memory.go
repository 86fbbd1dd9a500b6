package catalog

import (
	"context"
	"sync"
)

// MemoryRepository keeps products behind a single mutex. It backs demo mode
// and the orchestration tests; semantics mirror PostgresRepository, including
// all-or-nothing reservation.
type MemoryRepository struct {
	mu       sync.Mutex
	products map[string]Product
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{products: make(map[string]Product)}
}

func (r *MemoryRepository) Get(ctx context.Context, productID string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, p Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[p.ID] = p
	return nil
}

func (r *MemoryRepository) Adjust(ctx context.Context, productID string, adj Adjustment) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return Product{}, ErrNotFound
	}
	next, err := adj.apply(p.Stock)
	if err != nil {
		return Product{}, err
	}
	p.Stock = next
	r.products[productID] = p
	return p, nil
}

func (r *MemoryRepository) Reserve(ctx context.Context, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// First pass: validate every line before touching anything.
	for _, line := range lines {
		p, ok := r.products[line.ProductID]
		available := 0
		if ok {
			available = p.Stock
		}
		if available < line.Quantity {
			return &InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}

	for _, line := range lines {
		p := r.products[line.ProductID]
		p.Stock -= line.Quantity
		r.products[line.ProductID] = p
	}
	return nil
}

func (r *MemoryRepository) Release(ctx context.Context, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range lines {
		if p, ok := r.products[line.ProductID]; ok {
			p.Stock += line.Quantity
			r.products[line.ProductID] = p
		}
	}
	return nil
}
