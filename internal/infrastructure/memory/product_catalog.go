package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
)

// ProductCatalog is an in-process stand-in for the product service. Stock
// writes are compare-and-swap on each product's version.
type ProductCatalog struct {
	mu       sync.RWMutex
	products map[int64]*product.Snapshot
}

func NewProductCatalog(seed ...product.Snapshot) *ProductCatalog {
	c := &ProductCatalog{
		products: make(map[int64]*product.Snapshot),
	}
	for _, p := range seed {
		c.Put(p)
	}
	return c
}

// Put inserts or replaces a product.
func (c *ProductCatalog) Put(p product.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products[p.ID] = cloneSnapshot(&p)
}

// Get returns a single product.
func (c *ProductCatalog) Get(id int64) (product.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return product.Snapshot{}, false
	}
	return *p, true
}

func (c *ProductCatalog) GetProductDetails(ctx context.Context, ids []int64) (map[int64]product.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[int64]product.Snapshot, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = *p
		}
	}
	return out, nil
}

// ApplyStockDeltas validates the whole batch before writing any of it.
func (c *ProductCatalog) ApplyStockDeltas(ctx context.Context, updates []product.StockUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[int64]struct{}, len(updates))
	for _, u := range updates {
		if _, dup := seen[u.ProductID]; dup {
			return fmt.Errorf("%w: product %d updated twice in one batch", product.ErrStockConflict, u.ProductID)
		}
		seen[u.ProductID] = struct{}{}

		p, ok := c.products[u.ProductID]
		if !ok {
			return fmt.Errorf("%w: %d", product.ErrNotFound, u.ProductID)
		}
		if p.Version != u.ExpectedVersion {
			return fmt.Errorf("%w: product %d at version %d, expected %d",
				product.ErrStockConflict, u.ProductID, p.Version, u.ExpectedVersion)
		}
		if u.NewStock < 0 {
			return fmt.Errorf("%w: product %d new stock %d", product.ErrInvalidStock, u.ProductID, u.NewStock)
		}
	}

	for _, u := range updates {
		p := c.products[u.ProductID]
		p.StockQty = u.NewStock
		p.Version++
	}
	return nil
}

func cloneSnapshot(p *product.Snapshot) *product.Snapshot {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
