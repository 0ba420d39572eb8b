// Package sqlite is a durable OrderStore on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// OrderStore persists orders and their lines in two tables. Line
// reconciliation happens inside the transaction that bumps the order version.
type OrderStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*OrderStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single connection: keeps :memory: databases alive and serialises writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &OrderStore{db: db}, nil
}

func (s *OrderStore) Close() error {
	return s.db.Close()
}

func (s *OrderStore) Save(ctx context.Context, o *domain.Order) (err error) {
	if o == nil {
		return fmt.Errorf("order store: order is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	next := o.Version + 1
	if o.ID == 0 {
		next = 1
		res, err := tx.ExecContext(ctx, `
INSERT INTO orders (account_id, status, create_date, modified_date, deleted, deleted_at, version)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.AccountID, int(o.Status), o.CreateDate.UnixNano(), nullTime(o.ModifiedDate), o.Deleted, nullTime(o.DeletedAt), next)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read order id: %w", err)
		}
		added, err := insertLines(ctx, tx, id, o)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		o.ID, o.Version = id, next
		added.assign()
		return nil
	}

	res, err := tx.ExecContext(ctx, `
UPDATE orders
SET status = ?, modified_date = ?, deleted = ?, deleted_at = ?, version = ?
WHERE id = ? AND version = ?`,
		int(o.Status), nullTime(o.ModifiedDate), o.Deleted, nullTime(o.DeletedAt), next, o.ID, o.Version)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err = tx.QueryRowContext(ctx, "SELECT 1 FROM orders WHERE id = ?", o.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check order: %w", err)
		}
		return fmt.Errorf("%w: order %d at version %d", domain.ErrConflict, o.ID, o.Version)
	}

	added, err := syncLines(ctx, tx, o)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	o.Version = next
	added.assign()
	return nil
}

// lineIDs holds ids for freshly inserted lines until the transaction commits.
type lineIDs map[*domain.Line]int64

func (a lineIDs) assign() {
	for l, id := range a {
		l.ID = id
	}
}

// syncLines deletes orphaned lines, rewrites kept lines whose quantity
// changed and inserts new ones.
func syncLines(ctx context.Context, tx *sql.Tx, o *domain.Order) (lineIDs, error) {
	kept := make(map[int64]int)
	for _, l := range o.Lines() {
		if l.ID != 0 {
			kept[l.ID] = l.Quantity
		}
	}

	rows, err := tx.QueryContext(ctx, "SELECT id, quantity FROM order_lines WHERE order_id = ?", o.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lines: %w", err)
	}
	var orphans, dirty []int64
	for rows.Next() {
		var id int64
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		want, ok := kept[id]
		switch {
		case !ok:
			orphans = append(orphans, id)
		case want != qty:
			dirty = append(dirty, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list lines: %w", err)
	}
	rows.Close()

	for _, id := range orphans {
		if _, err := tx.ExecContext(ctx, "DELETE FROM order_lines WHERE id = ?", id); err != nil {
			return nil, fmt.Errorf("failed to delete line %d: %w", id, err)
		}
	}
	for _, id := range dirty {
		if _, err := tx.ExecContext(ctx, "UPDATE order_lines SET quantity = ? WHERE id = ? AND order_id = ?", kept[id], id, o.ID); err != nil {
			return nil, fmt.Errorf("failed to update line %d: %w", id, err)
		}
	}
	return insertLines(ctx, tx, o.ID, o)
}

// insertLines writes the lines that have no id yet.
func insertLines(ctx context.Context, tx *sql.Tx, orderID int64, o *domain.Order) (lineIDs, error) {
	added := make(lineIDs)
	for _, l := range o.Lines() {
		if l.ID != 0 {
			continue
		}
		res, err := tx.ExecContext(ctx, "INSERT INTO order_lines (order_id, product_id, quantity) VALUES (?, ?, ?)", orderID, l.ProductID, l.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to insert line for product %d: %w", l.ProductID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read line id: %w", err)
		}
		added[l] = id
	}
	return added, nil
}

func (s *OrderStore) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	orders, err := s.query(ctx, "WHERE id = ? AND deleted = 0 AND status <> ?", id, int(domain.StatusCancelled))
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	return orders[0], nil
}

func (s *OrderStore) FindByAccountID(ctx context.Context, accountID int64) ([]*domain.Order, error) {
	return s.query(ctx, "WHERE account_id = ? AND deleted = 0 AND status <> ?", accountID, int(domain.StatusCancelled))
}

// Delete purges the order; its lines go with it through the cascade.
func (s *OrderStore) Delete(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return fmt.Errorf("order store: order is required")
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", o.ID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountAll counts stored orders including hidden ones.
func (s *OrderStore) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

func (s *OrderStore) query(ctx context.Context, where string, args ...any) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, account_id, status, create_date, modified_date, deleted, deleted_at, version
FROM orders `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	var orders []*domain.Order
	for rows.Next() {
		var (
			o         domain.Order
			status    int
			created   int64
			modified  sql.NullInt64
			deletedAt sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &o.AccountID, &status, &created, &modified, &o.Deleted, &deletedAt, &o.Version); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Status = domain.Status(status)
		o.CreateDate = time.Unix(0, created).UTC()
		o.ModifiedDate = fromNull(modified)
		o.DeletedAt = fromNull(deletedAt)
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	rows.Close()

	out := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		if err := s.loadLines(ctx, o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *OrderStore) loadLines(ctx context.Context, o *domain.Order) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, product_id, quantity FROM order_lines WHERE order_id = ? ORDER BY product_id", o.ID)
	if err != nil {
		return fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, productID int64
			qty           int
		)
		if err := rows.Scan(&id, &productID, &qty); err != nil {
			return fmt.Errorf("failed to scan line: %w", err)
		}
		o.AttachLine(id, productID, qty)
	}
	return rows.Err()
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
