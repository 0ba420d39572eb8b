package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *OrderStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newOrder(t *testing.T, accountID int64, items ...domain.Item) *domain.Order {
	t.Helper()
	o, err := domain.New(accountID, items)
	require.NoError(t, err)
	return o
}

func TestSaveAndFind(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	o := newOrder(t, 7, domain.Item{ProductID: 2, Quantity: 3}, domain.Item{ProductID: 1, Quantity: 2})
	require.NoError(t, s.Save(ctx, o))
	assert.NotZero(t, o.ID)
	assert.Equal(t, int64(1), o.Version)
	for _, l := range o.Lines() {
		assert.NotZero(t, l.ID)
	}

	got, err := s.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.AccountID, got.AccountID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, o.CreateDate.UnixNano(), got.CreateDate.UnixNano())
	assert.Equal(t, map[int64]int{1: 2, 2: 3}, got.Quantities())
	for _, l := range got.Lines() {
		assert.Same(t, got, l.Order())
	}

	_, err = s.FindByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveReconcilesLines(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	o := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 2}, domain.Item{ProductID: 2, Quantity: 3})
	require.NoError(t, s.Save(ctx, o))
	lineB := o.Lines()[1].ID

	o.ReplaceLines([]domain.Item{{ProductID: 2, Quantity: 5}, {ProductID: 3, Quantity: 1}})
	require.NoError(t, o.SetStatus(2001))
	require.NoError(t, s.Save(ctx, o))
	assert.Equal(t, int64(2), o.Version)

	got, err := s.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Status(2001), got.Status)
	require.NotNil(t, got.ModifiedDate)
	lines := got.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, lineB, lines[0].ID)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, int64(3), lines[1].ProductID)

	var orphans int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM order_lines WHERE order_id = ? AND product_id = 1", o.ID).Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestSaveRewritesOnlyChangedLines(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.db.ExecContext(ctx, "CREATE TABLE line_writes (line_id INTEGER NOT NULL)")
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `CREATE TRIGGER record_line_write AFTER UPDATE ON order_lines
BEGIN INSERT INTO line_writes (line_id) VALUES (NEW.id); END`)
	require.NoError(t, err)

	o := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 2}, domain.Item{ProductID: 2, Quantity: 3})
	require.NoError(t, s.Save(ctx, o))
	lineB := o.Lines()[1].ID

	o.ReplaceLines([]domain.Item{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 4}})
	require.NoError(t, s.Save(ctx, o))

	var written []int64
	rows, err := s.db.QueryContext(ctx, "SELECT line_id FROM line_writes")
	require.NoError(t, err)
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		written = append(written, id)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []int64{lineB}, written)

	got, err := s.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2, 2: 4}, got.Quantities())
}

func TestSaveVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	o := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 2})
	require.NoError(t, s.Save(ctx, o))

	a, err := s.FindByID(ctx, o.ID)
	require.NoError(t, err)
	b, err := s.FindByID(ctx, o.ID)
	require.NoError(t, err)

	a.ReplaceLines([]domain.Item{{ProductID: 1, Quantity: 4}})
	require.NoError(t, s.Save(ctx, a))

	b.ReplaceLines([]domain.Item{{ProductID: 9, Quantity: 1}})
	err = s.Save(ctx, b)
	assert.ErrorIs(t, err, domain.ErrConflict)
	for _, l := range b.Lines() {
		if l.ProductID == 9 {
			assert.Zero(t, l.ID, "rolled back line must not get an id")
		}
	}

	got, err := s.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 4}, got.Quantities())

	ghost := got.Clone()
	ghost.ID = 12345
	assert.ErrorIs(t, s.Save(ctx, ghost), domain.ErrNotFound)
}

func TestCancelledOrdersAreHidden(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	kept := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 1})
	gone := newOrder(t, 7, domain.Item{ProductID: 2, Quantity: 1})
	require.NoError(t, s.Save(ctx, kept))
	require.NoError(t, s.Save(ctx, gone))

	require.NoError(t, gone.Cancel())
	require.NoError(t, s.Save(ctx, gone))

	_, err := s.FindByID(ctx, gone.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := s.FindByAccountID(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)

	n, err := s.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeletePurgesLines(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	o := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 1}, domain.Item{ProductID: 2, Quantity: 1})
	require.NoError(t, s.Save(ctx, o))
	require.NoError(t, s.Delete(ctx, o))

	var lines int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM order_lines").Scan(&lines))
	assert.Zero(t, lines)
	assert.ErrorIs(t, s.Delete(ctx, o), domain.ErrNotFound)
}

func TestReopenKeepsSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orders.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	o := newOrder(t, 7, domain.Item{ProductID: 1, Quantity: 1})
	require.NoError(t, s.Save(ctx, o))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	var versions int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&versions))
	assert.Equal(t, 1, versions)

	got, err := s.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantities()[1])
}
