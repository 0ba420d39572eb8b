package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
)

// OrderRepository keeps orders in process memory. Cancelled and soft-deleted
// orders stay stored but are hidden from reads.
type OrderRepository struct {
	mu         sync.RWMutex
	orders     map[int64]*domain.Order
	nextOrder  int64
	nextLineID int64
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[int64]*domain.Order),
	}
}

func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order repository: order is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == 0 {
		r.nextOrder++
		order.ID = r.nextOrder
		order.Version = 1
		r.assignLineIDs(order)
		r.orders[order.ID] = cloneOrder(order)
		return nil
	}

	stored, exists := r.orders[order.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if stored.Version != order.Version {
		return fmt.Errorf("%w: order %d at version %d, stored %d", domain.ErrConflict, order.ID, order.Version, stored.Version)
	}

	order.Version++
	r.assignLineIDs(order)
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok || !order.Visible() {
		return nil, domain.ErrNotFound
	}

	return cloneOrder(order), nil
}

func (r *OrderRepository) FindByAccountID(ctx context.Context, accountID int64) ([]*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0)
	for _, order := range r.orders {
		if order.AccountID == accountID && order.Visible() {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *OrderRepository) Delete(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order repository: order is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; !exists {
		return domain.ErrNotFound
	}
	delete(r.orders, order.ID)
	return nil
}

// Stored returns the raw stored order, hidden or not. Used by admin tooling
// and tests to observe soft-deleted rows.
func (r *OrderRepository) Stored(id int64) (*domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	return cloneOrder(order), ok
}

// Len reports how many orders are stored, including hidden ones.
func (r *OrderRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// assignLineIDs must be called with mu held.
func (r *OrderRepository) assignLineIDs(order *domain.Order) {
	for _, l := range order.Lines() {
		if l.ID == 0 {
			r.nextLineID++
			l.ID = r.nextLineID
		}
	}
}

func cloneOrder(order *domain.Order) *domain.Order {
	if order == nil {
		return nil
	}
	clone := order.Clone()
	return clone
}
