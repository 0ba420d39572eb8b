package memory

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(t *testing.T, accountID int64, items ...domain.Item) *domain.Order {
	t.Helper()
	o, err := domain.New(accountID, items)
	require.NoError(t, err)
	return o
}

func TestOrderRepositorySaveAssignsIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()

	o := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 2}, domain.Item{ProductID: 2, Quantity: 1})
	require.NoError(t, repo.Save(ctx, o))

	assert.Equal(t, int64(1), o.ID)
	assert.Equal(t, int64(1), o.Version)
	for _, l := range o.Lines() {
		assert.NotZero(t, l.ID)
	}

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Quantities(), got.Quantities())

	// reads are copies
	got.ReplaceLines([]domain.Item{{ProductID: 9, Quantity: 9}})
	again, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, again.Quantities())
}

func TestOrderRepositoryOptimisticVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 2})
	require.NoError(t, repo.Save(ctx, o))

	a, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)

	require.NoError(t, a.SetStatus(2001))
	require.NoError(t, repo.Save(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	require.NoError(t, b.SetStatus(2002))
	err = repo.Save(ctx, b)
	assert.ErrorIs(t, err, domain.ErrConflict)

	stored, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Status(2001), stored.Status)
}

func TestOrderRepositoryConcurrentSaveSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 2})
	require.NoError(t, repo.Save(ctx, o))

	const writers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		copyOf := o.Clone()
		wg.Add(1)
		go func(status domain.Status) {
			defer wg.Done()
			assert.NoError(t, copyOf.SetStatus(status))
			if repo.Save(ctx, copyOf) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(domain.Status(2000 + i))
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestOrderRepositoryVisibilityFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()

	kept := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 1})
	cancelled := newOrder(t, 7, domain.Item{ProductID: 2, Quantity: 1})
	other := newOrder(t, 8, domain.Item{ProductID: 3, Quantity: 1})
	for _, o := range []*domain.Order{kept, cancelled, other} {
		require.NoError(t, repo.Save(ctx, o))
	}

	require.NoError(t, cancelled.Cancel())
	require.NoError(t, repo.Save(ctx, cancelled))

	_, err := repo.FindByID(ctx, cancelled.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := repo.FindByAccountID(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)

	stored, ok := repo.Stored(cancelled.ID)
	require.True(t, ok)
	assert.True(t, stored.Deleted)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.NotNil(t, stored.DeletedAt)
	assert.Equal(t, 3, repo.Len())
}

func TestOrderRepositoryDeletePurges(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 1})
	require.NoError(t, repo.Save(ctx, o))

	require.NoError(t, repo.Delete(ctx, o))
	_, ok := repo.Stored(o.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, repo.Delete(ctx, o), domain.ErrNotFound)
}

func TestOrderRepositoryLineReconciliation(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 2}, domain.Item{ProductID: 2, Quantity: 3})
	require.NoError(t, repo.Save(ctx, o))
	lineB := o.Lines()[1].ID

	o.ReplaceLines([]domain.Item{{ProductID: 2, Quantity: 5}, {ProductID: 3, Quantity: 1}})
	require.NoError(t, repo.Save(ctx, o))

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	lines := got.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, lineB, lines[0].ID)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, int64(3), lines[1].ProductID)
	assert.NotZero(t, lines[1].ID)
	assert.Same(t, got, lines[1].Order())
}

func TestProductCatalogCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	c := NewProductCatalog(
		product.Snapshot{ID: 1, Name: "A", Price: decimal.RequireFromString("2.50"), SaleStatus: product.SaleStatusSellable, StockQty: 10, Version: 1},
		product.Snapshot{ID: 2, Name: "B", Price: decimal.RequireFromString("1.00"), SaleStatus: product.SaleStatusSellable, StockQty: 4, Version: 1},
	)

	err := c.ApplyStockDeltas(ctx, []product.StockUpdate{
		{ProductID: 1, ExpectedVersion: 1, NewStock: 8},
		{ProductID: 2, ExpectedVersion: 1, NewStock: 3},
	})
	require.NoError(t, err)

	snaps, err := c.GetProductDetails(ctx, []int64{1, 2, 99})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 8, snaps[1].StockQty)
	assert.Equal(t, int64(2), snaps[1].Version)

	// stale version on one product rejects the whole batch
	err = c.ApplyStockDeltas(ctx, []product.StockUpdate{
		{ProductID: 1, ExpectedVersion: 2, NewStock: 0},
		{ProductID: 2, ExpectedVersion: 1, NewStock: 0},
	})
	assert.ErrorIs(t, err, product.ErrStockConflict)
	p1, _ := c.Get(1)
	assert.Equal(t, 8, p1.StockQty)

	err = c.ApplyStockDeltas(ctx, []product.StockUpdate{{ProductID: 1, ExpectedVersion: 2, NewStock: -1}})
	assert.ErrorIs(t, err, product.ErrInvalidStock)

	err = c.ApplyStockDeltas(ctx, []product.StockUpdate{{ProductID: 99, ExpectedVersion: 1, NewStock: 1}})
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestAccountDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewAccountDirectory()
	d.Put(1, account.StatusActive)

	st, err := d.GetAccountStatus(ctx, 1)
	require.NoError(t, err)
	assert.True(t, st.Active())

	_, err = d.GetAccountStatus(ctx, 2)
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestDecodeSeed(t *testing.T) {
	doc := `{
		"accounts": [{"id": 1, "status": "active"}, {"id": 2, "status": "inactive"}],
		"products": [{"id": 10, "name": "Pen", "price": "1.25", "sale_status": "sellable", "stock_qty": 5, "version": 1}]
	}`
	seed, err := DecodeSeed(strings.NewReader(doc))
	require.NoError(t, err)

	accounts := NewAccountDirectory()
	products := NewProductCatalog()
	seed.Apply(accounts, products)

	st, err := accounts.GetAccountStatus(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, account.StatusInactive, st)

	p, ok := products.Get(10)
	require.True(t, ok)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, p.Sellable())

	_, err = DecodeSeed(strings.NewReader(`{"products":[{"id":0}]}`))
	assert.Error(t, err)
}
