package inventory

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidQuantity   = errors.New("inventory: quantity must not be negative")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// InsufficientStockError carries the numbers that failed the stock check.
type InsufficientStockError struct {
	ProductID         int64
	CurrentStock      int
	OriginalQuantity  int
	RequestedQuantity int
	NetChange         int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d: current=%d original=%d requested=%d net=%d",
		e.ProductID, e.CurrentStock, e.OriginalQuantity, e.RequestedQuantity, e.NetChange)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// NewStock returns the stock left for productID once an order that held
// original units of it holds requested units instead. A positive net change
// takes units out of stock; a negative one returns them.
func NewStock(productID int64, current, original, requested int) (int, error) {
	if original < 0 || requested < 0 {
		return 0, fmt.Errorf("%w: product %d original=%d requested=%d", ErrInvalidQuantity, productID, original, requested)
	}
	net := requested - original
	if net < 0 && current > math.MaxInt+net {
		return 0, fmt.Errorf("%w: product %d stock %d cannot take back %d units", ErrInvalidQuantity, productID, current, -net)
	}
	next := current - net
	if next < 0 {
		return 0, &InsufficientStockError{
			ProductID:         productID,
			CurrentStock:      current,
			OriginalQuantity:  original,
			RequestedQuantity: requested,
			NetChange:         net,
		}
	}
	return next, nil
}

// Change is one planned stock movement for a product.
type Change struct {
	ProductID         int64
	CurrentStock      int
	OriginalQuantity  int
	RequestedQuantity int
	NewStock          int
}

// Delta is the signed number of units taken from stock by the change.
func (c Change) Delta() int { return c.CurrentStock - c.NewStock }

// Plan accumulates the stock changes of one workflow invocation so they can
// be written as a single batch.
type Plan struct {
	changes []Change
	index   map[int64]int
}

func NewPlan() *Plan {
	return &Plan{index: make(map[int64]int)}
}

// Add computes and records the change for productID. It fails without
// recording anything when the stock check fails or the product is already
// part of the plan.
func (p *Plan) Add(productID int64, current, original, requested int) error {
	if _, dup := p.index[productID]; dup {
		return fmt.Errorf("%w: product %d planned twice", ErrInvalidQuantity, productID)
	}
	next, err := NewStock(productID, current, original, requested)
	if err != nil {
		return err
	}
	p.index[productID] = len(p.changes)
	p.changes = append(p.changes, Change{
		ProductID:         productID,
		CurrentStock:      current,
		OriginalQuantity:  original,
		RequestedQuantity: requested,
		NewStock:          next,
	})
	return nil
}

// Changes returns the planned changes in insertion order.
func (p *Plan) Changes() []Change {
	return append([]Change(nil), p.changes...)
}

// Get returns the change planned for productID.
func (p *Plan) Get(productID int64) (Change, bool) {
	i, ok := p.index[productID]
	if !ok {
		return Change{}, false
	}
	return p.changes[i], true
}

func (p *Plan) Len() int { return len(p.changes) }

func (p *Plan) Empty() bool { return len(p.changes) == 0 }
