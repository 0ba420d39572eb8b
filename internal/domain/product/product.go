package product

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("product: not found")
	ErrNotSellable   = errors.New("product: not sellable")
	ErrStockConflict = errors.New("product: stock changed concurrently")
	ErrInvalidStock  = errors.New("product: stock must not be negative")
)

// SaleStatus tells whether new orders may be placed against a product.
type SaleStatus string

const (
	SaleStatusSellable    SaleStatus = "sellable"
	SaleStatusNotSellable SaleStatus = "not_sellable"
)

// Snapshot is a read-only view of a product owned by the product service.
type Snapshot struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	SaleStatus SaleStatus      `json:"sale_status"`
	StockQty   int             `json:"stock_qty"`
	// Version changes on every stock write and guards ApplyStockDeltas.
	Version int64 `json:"version"`
}

func (s Snapshot) Sellable() bool { return s.SaleStatus == SaleStatusSellable }

// StockUpdate sets a product's stock to NewStock provided its version is
// still ExpectedVersion.
type StockUpdate struct {
	ProductID       int64 `json:"product_id"`
	ExpectedVersion int64 `json:"expected_version"`
	NewStock        int   `json:"new_stock"`
}

// NotSellableError reports the product that blocked an order.
type NotSellableError struct {
	ProductID int64
}

func (e *NotSellableError) Error() string {
	return fmt.Sprintf("product: %d is not sellable", e.ProductID)
}

func (e *NotSellableError) Is(target error) bool { return target == ErrNotSellable }
