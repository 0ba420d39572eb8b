// Package postgres is a durable OrderStore on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Connect opens a pool for url, pings it and migrates the schema.
func Connect(ctx context.Context, url string) (*OrderStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewOrderStore(pool), nil
}

func (s *OrderStore) Close() {
	s.pool.Close()
}

func (s *OrderStore) Save(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return fmt.Errorf("order store: order is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var (
		id   = o.ID
		next = o.Version + 1
	)
	if o.ID == 0 {
		next = 1
		err = tx.QueryRow(ctx, `
INSERT INTO orders (account_id, status, create_date, modified_date, deleted, deleted_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
			o.AccountID, int(o.Status), o.CreateDate, o.ModifiedDate, o.Deleted, o.DeletedAt, next).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
	} else {
		tag, err := tx.Exec(ctx, `
UPDATE orders
SET status = $1, modified_date = $2, deleted = $3, deleted_at = $4, version = $5
WHERE id = $6 AND version = $7`,
			int(o.Status), o.ModifiedDate, o.Deleted, o.DeletedAt, next, o.ID, o.Version)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", o.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check order: %w", err)
			}
			if !exists {
				return domain.ErrNotFound
			}
			return fmt.Errorf("%w: order %d at version %d", domain.ErrConflict, o.ID, o.Version)
		}
	}

	added, err := syncLines(ctx, tx, id, o)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	o.ID, o.Version = id, next
	for l, lineID := range added {
		l.ID = lineID
	}
	return nil
}

// syncLines drops orphaned lines, rewrites kept lines whose quantity changed
// and inserts new ones, all in one batch. Ids of inserted lines are returned
// rather than set so a failed commit leaves the aggregate unchanged.
func syncLines(ctx context.Context, tx pgx.Tx, orderID int64, o *domain.Order) (map[*domain.Line]int64, error) {
	lines := o.Lines()
	keep := make([]int64, 0, len(lines))
	quantities := make([]int32, 0, len(lines))
	var fresh []*domain.Line
	for _, l := range lines {
		if l.ID == 0 {
			fresh = append(fresh, l)
			continue
		}
		keep = append(keep, l.ID)
		quantities = append(quantities, int32(l.Quantity))
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM order_lines WHERE order_id = $1 AND NOT (id = ANY($2))`, orderID, keep)
	batch.Queue(`UPDATE order_lines AS l SET quantity = v.quantity
FROM unnest($1::bigint[], $2::int[]) AS v(id, quantity)
WHERE l.id = v.id AND l.order_id = $3 AND l.quantity <> v.quantity`, keep, quantities, orderID)
	for _, l := range fresh {
		batch.Queue(`INSERT INTO order_lines (order_id, product_id, quantity) VALUES ($1, $2, $3) RETURNING id`,
			orderID, l.ProductID, l.Quantity)
	}

	br := tx.SendBatch(ctx, batch)
	added := make(map[*domain.Line]int64, len(fresh))

	if _, err := br.Exec(); err != nil {
		_ = br.Close()
		return nil, fmt.Errorf("delete orphan lines: %w", err)
	}
	if _, err := br.Exec(); err != nil {
		_ = br.Close()
		return nil, fmt.Errorf("update lines: %w", err)
	}
	for _, l := range fresh {
		var id int64
		if err := br.QueryRow().Scan(&id); err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("insert line for product %d: %w", l.ProductID, err)
		}
		added[l] = id
	}
	if err := br.Close(); err != nil {
		return nil, err
	}
	return added, nil
}

func (s *OrderStore) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	orders, err := s.query(ctx, "WHERE id = $1 AND NOT deleted AND status <> $2", id, int(domain.StatusCancelled))
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	return orders[0], nil
}

func (s *OrderStore) FindByAccountID(ctx context.Context, accountID int64) ([]*domain.Order, error) {
	return s.query(ctx, "WHERE account_id = $1 AND NOT deleted AND status <> $2", accountID, int(domain.StatusCancelled))
}

func (s *OrderStore) Delete(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return fmt.Errorf("order store: order is required")
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM orders WHERE id = $1", o.ID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *OrderStore) query(ctx context.Context, where string, args ...any) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, account_id, status, create_date, modified_date, deleted, deleted_at, version
FROM orders `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []*domain.Order
		ids    []int64
		byID   = make(map[int64]*domain.Order)
	)
	for rows.Next() {
		var (
			o      domain.Order
			status int
		)
		if err := rows.Scan(&o.ID, &o.AccountID, &status, &o.CreateDate, &o.ModifiedDate, &o.Deleted, &o.DeletedAt, &o.Version); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = domain.Status(status)
		o.CreateDate = o.CreateDate.UTC()
		o.ModifiedDate = utc(o.ModifiedDate)
		o.DeletedAt = utc(o.DeletedAt)
		orders = append(orders, &o)
		ids = append(ids, o.ID)
		byID[o.ID] = &o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	rows.Close()
	if len(orders) == 0 {
		return []*domain.Order{}, nil
	}

	lineRows, err := s.pool.Query(ctx, `
SELECT id, order_id, product_id, quantity
FROM order_lines
WHERE order_id = ANY($1)
ORDER BY order_id, product_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var (
			id, orderID, productID int64
			qty                    int
		)
		if err := lineRows.Scan(&id, &orderID, &productID, &qty); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.AttachLine(id, productID, qty)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	return orders, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
