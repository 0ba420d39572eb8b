package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
)

const compensationAttempts = 3

// stockUpdates turns a plan into version-guarded absolute stock writes.
func stockUpdates(plan *inventory.Plan, snapshots map[int64]product.Snapshot) []product.StockUpdate {
	changes := plan.Changes()
	updates := make([]product.StockUpdate, 0, len(changes))
	for _, c := range changes {
		updates = append(updates, product.StockUpdate{
			ProductID:       c.ProductID,
			ExpectedVersion: snapshots[c.ProductID].Version,
			NewStock:        c.NewStock,
		})
	}
	return updates
}

// applyPlan writes the plan as one batch. An empty plan is a no-op.
func (in *instrumented) applyPlan(ctx context.Context, products ProductGateway, operation string, plan *inventory.Plan, snapshots map[int64]product.Snapshot) error {
	if plan.Empty() {
		return nil
	}
	err := products.ApplyStockDeltas(ctx, stockUpdates(plan, snapshots))
	if err == nil {
		return nil
	}
	if errors.Is(err, product.ErrStockConflict) {
		in.conflicts.Add(1, observability.L("operation", operation))
	}
	return wrapGatewayError(err)
}

// compensate reverses an applied plan after the order could not be persisted.
// Current versions are re-read on every attempt because the batch that is
// being undone bumped them. It runs detached from ctx cancellation so a
// client disconnect does not leave stock held by an order that never existed.
func (in *instrumented) compensate(ctx context.Context, products ProductGateway, operation string, plan *inventory.Plan, logger observability.Logger) {
	if plan.Empty() {
		return
	}
	ctx = context.WithoutCancel(ctx)

	changes := plan.Changes()
	ids := make([]int64, 0, len(changes))
	for _, c := range changes {
		ids = append(ids, c.ProductID)
	}

	var lastErr error
	for attempt := 1; attempt <= compensationAttempts; attempt++ {
		lastErr = in.reverse(ctx, products, ids, plan)
		if lastErr == nil {
			logger.Warn("stock_compensated",
				observability.F("operation", operation),
				observability.F("products", ids),
				observability.F("attempt", attempt),
			)
			return
		}
		if errors.Is(lastErr, product.ErrStockConflict) {
			in.conflicts.Add(1, observability.L("operation", operation+".compensate"))
		}
	}

	deltas := make(map[int64]int, len(changes))
	for _, c := range changes {
		deltas[c.ProductID] = c.Delta()
	}
	logger.Error("stock_compensation_failed",
		observability.F("operation", operation),
		observability.F("unrestored_deltas", deltas),
		observability.F("attempts", compensationAttempts),
		observability.F("error", lastErr.Error()),
	)
}

func (in *instrumented) reverse(ctx context.Context, products ProductGateway, ids []int64, plan *inventory.Plan) error {
	current, err := products.GetProductDetails(ctx, ids)
	if err != nil {
		return err
	}
	undo := inventory.NewPlan()
	for _, c := range plan.Changes() {
		snap, ok := current[c.ProductID]
		if !ok {
			return productNotFound(c.ProductID)
		}
		// swapping original and requested gives back exactly what was taken
		if err := undo.Add(c.ProductID, snap.StockQty, c.RequestedQuantity, c.OriginalQuantity); err != nil {
			return fmt.Errorf("reverse product %d: %w", c.ProductID, err)
		}
	}
	return products.ApplyStockDeltas(ctx, stockUpdates(undo, current))
}

// fetchProducts loads snapshots for ids in one batch.
func fetchProducts(ctx context.Context, products ProductGateway, ids []int64) (map[int64]product.Snapshot, error) {
	if len(ids) == 0 {
		return map[int64]product.Snapshot{}, nil
	}
	snaps, err := products.GetProductDetails(ctx, ids)
	if err != nil {
		return nil, wrapGatewayError(err)
	}
	if snaps == nil {
		snaps = map[int64]product.Snapshot{}
	}
	return snaps, nil
}

// statusFor maps an error to the stable status text reported on spans and logs.
func statusFor(err error) string {
	var notSellable *product.NotSellableError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	case errors.As(err, &notSellable):
		return "PRODUCT_NOT_SELLABLE"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, inventory.ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	case errors.Is(err, product.ErrStockConflict):
		return "STOCK_CONFLICT"
	case errors.Is(err, product.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, account.ErrNotFound):
		return "ACCOUNT_NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "ORDER_CONFLICT"
	case errors.Is(err, ErrNotFound):
		return "ORDER_NOT_FOUND"
	case errors.Is(err, ErrGateway):
		return "GATEWAY_FAILED"
	case errors.Is(err, ErrRepository):
		return "REPOSITORY_FAILED"
	default:
		return "INTERNAL"
	}
}
