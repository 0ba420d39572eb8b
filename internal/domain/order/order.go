package order

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("order: not found")
	ErrConflict       = errors.New("order: concurrent modification")
	ErrInvalidRequest = errors.New("order: invalid request")
	ErrInvalidState   = errors.New("order: invalid state for operation")
)

// Status is the numeric order status code shared with the rest of the shop.
type Status int

const (
	StatusPending   Status = 1001
	StatusCancelled Status = 1003
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Item is a requested (productID, quantity) pair.
type Item struct {
	ProductID int64
	Quantity  int
}

// Order is the aggregate root. It exclusively owns its lines.
type Order struct {
	ID           int64
	AccountID    int64
	Status       Status
	CreateDate   time.Time
	ModifiedDate *time.Time
	Deleted      bool
	DeletedAt    *time.Time
	// Version is bumped by the store on every successful save.
	Version int64

	lines []*Line
}

// Line is an order line. The back-reference to the owning order is not
// exported and never participates in String or encoding.
type Line struct {
	ID        int64
	ProductID int64
	Quantity  int

	order *Order
}

// New builds a pending order for accountID with one line per item.
func New(accountID int64, items []Item) (*Order, error) {
	if accountID <= 0 {
		return nil, fmt.Errorf("%w: account id must be positive", ErrInvalidRequest)
	}
	if err := ValidateItems(items); err != nil {
		return nil, err
	}
	o := &Order{
		AccountID:  accountID,
		Status:     StatusPending,
		CreateDate: time.Now().UTC(),
	}
	for _, it := range items {
		o.addLine(it.ProductID, it.Quantity)
	}
	return o, nil
}

// ValidateItems rejects empty lists, non-positive ids or quantities and
// duplicate product ids.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrInvalidRequest)
	}
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return fmt.Errorf("%w: product id must be positive", ErrInvalidRequest)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for product %d must be greater than zero", ErrInvalidRequest, it.ProductID)
		}
		if _, dup := seen[it.ProductID]; dup {
			return fmt.Errorf("%w: duplicate product %d", ErrInvalidRequest, it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
	}
	return nil
}

// Lines returns the order's lines sorted by product id. The slice is a copy;
// the lines themselves are owned by the order.
func (o *Order) Lines() []*Line {
	out := append([]*Line(nil), o.lines...)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// Quantities maps product id to the quantity currently held by the order.
func (o *Order) Quantities() map[int64]int {
	m := make(map[int64]int, len(o.lines))
	for _, l := range o.lines {
		m[l.ProductID] = l.Quantity
	}
	return m
}

// ProductIDs returns the distinct product ids referenced by the order, ascending.
func (o *Order) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.lines))
	for _, l := range o.lines {
		ids = append(ids, l.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ReplaceLines reconciles the line collection against items: lines without an
// incoming entry are released, surviving lines get the new quantity and new
// product ids get a fresh line owned by this order.
func (o *Order) ReplaceLines(items []Item) {
	incoming := make(map[int64]int, len(items))
	for _, it := range items {
		incoming[it.ProductID] = it.Quantity
	}

	kept := o.lines[:0]
	for _, l := range o.lines {
		q, ok := incoming[l.ProductID]
		if !ok {
			l.order = nil
			continue
		}
		l.Quantity = q
		kept = append(kept, l)
		delete(incoming, l.ProductID)
	}
	o.lines = kept

	added := make([]int64, 0, len(incoming))
	for id := range incoming {
		added = append(added, id)
	}
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	for _, id := range added {
		o.addLine(id, incoming[id])
	}
}

// SetStatus overwrites the status with a caller supplied code.
func (o *Order) SetStatus(s Status) error {
	if err := validateUpdateStatus(s); err != nil {
		return err
	}
	o.Status = s
	o.touch()
	return nil
}

// Cancel soft-deletes the order. Only pending orders can be cancelled.
func (o *Order) Cancel() error {
	if err := o.CheckCancellable(); err != nil {
		return err
	}
	now := time.Now().UTC()
	o.Status = StatusCancelled
	o.Deleted = true
	o.DeletedAt = &now
	o.ModifiedDate = &now
	return nil
}

// Visible reports whether the order passes the normal read filter.
func (o *Order) Visible() bool {
	return !o.Deleted && o.Status != StatusCancelled
}

// AttachLine appends a persisted line to the order. Used by stores when
// rehydrating the aggregate.
func (o *Order) AttachLine(id, productID int64, quantity int) *Line {
	l := o.addLine(productID, quantity)
	l.ID = id
	return l
}

// Clone returns a deep copy with back-references rewired to the copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.ModifiedDate = cloneTime(o.ModifiedDate)
	c.DeletedAt = cloneTime(o.DeletedAt)
	c.lines = make([]*Line, 0, len(o.lines))
	for _, l := range o.lines {
		nl := *l
		nl.order = &c
		c.lines = append(c.lines, &nl)
	}
	return &c
}

func (o *Order) String() string {
	parts := make([]string, 0, len(o.lines))
	for _, l := range o.Lines() {
		parts = append(parts, l.String())
	}
	return fmt.Sprintf("Order{id=%d account=%d status=%s version=%d lines=[%s]}",
		o.ID, o.AccountID, o.Status, o.Version, strings.Join(parts, " "))
}

func (o *Order) addLine(productID int64, quantity int) *Line {
	l := &Line{ProductID: productID, Quantity: quantity, order: o}
	o.lines = append(o.lines, l)
	return l
}

func (o *Order) touch() {
	now := time.Now().UTC()
	o.ModifiedDate = &now
}

// Order returns the owning order, or nil once the line has been released.
func (l *Line) Order() *Order { return l.order }

func (l *Line) String() string {
	return fmt.Sprintf("Line{id=%d product=%d qty=%d}", l.ID, l.ProductID, l.Quantity)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
