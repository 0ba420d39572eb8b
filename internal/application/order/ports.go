package order

import (
	"context"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
)

// AccountGateway reads account state owned by the account service.
type AccountGateway interface {
	// GetAccountStatus returns account.ErrNotFound when the account does not exist.
	GetAccountStatus(ctx context.Context, accountID int64) (account.Status, error)
}

// ProductGateway reads products and writes stock on the product service.
type ProductGateway interface {
	// GetProductDetails returns the snapshots found; unknown ids are absent.
	GetProductDetails(ctx context.Context, ids []int64) (map[int64]product.Snapshot, error)
	// ApplyStockDeltas applies all updates or none of them, failing with
	// product.ErrStockConflict when any expected version is stale.
	ApplyStockDeltas(ctx context.Context, updates []product.StockUpdate) error
}
