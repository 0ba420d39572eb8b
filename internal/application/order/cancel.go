package order

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

type CancelOrderInput struct {
	OrderID int64
}

type CancelOrderResult struct {
	OrderID int64
	// Restored lists the quantities handed back to stock.
	Restored []domain.Item
}

// CancelOrderUseCase returns an order's stock and soft-deletes it.
type CancelOrderUseCase struct {
	instrumented
	repo      domain.Repository
	products  ProductGateway
	publisher domoutbox.Publisher
}

var _ application.UseCase[CancelOrderInput, CancelOrderResult] = (*CancelOrderUseCase)(nil)

func NewCancelOrderUseCase(
	repo domain.Repository,
	products ProductGateway,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CancelOrderUseCase {
	return &CancelOrderUseCase{
		instrumented: newInstrumented(tel),
		repo:         repo,
		products:     products,
		publisher:    publisher,
	}
}

func (uc *CancelOrderUseCase) Execute(ctx context.Context, cmd CancelOrderInput) (res CancelOrderResult, err error) {
	ctx, ex := uc.begin(ctx, useCaseOrderCancel, "CancelOrder",
		attribute.Int64("order.id", cmd.OrderID),
	)
	defer func() { uc.finish(ex, err) }()

	if cmd.OrderID <= 0 {
		return res, ex.fail("ORDER_ID_INVALID", fmt.Errorf("%w: order id must be positive", domain.ErrInvalidRequest))
	}
	if err := ctx.Err(); err != nil {
		return res, ex.fail("CONTEXT_CANCELED", err)
	}

	// cancelled orders are invisible, so a second cancel reports not found
	o, err := uc.repo.FindByID(ctx, cmd.OrderID)
	if err != nil {
		err = wrapRepositoryError(err)
		return res, ex.fail(statusFor(err), err)
	}
	if err := o.CheckCancellable(); err != nil {
		return res, ex.fail("ORDER_NOT_CANCELLABLE", err)
	}

	lines := o.Lines()
	snaps, err := fetchProducts(ctx, uc.products, o.ProductIDs())
	if err != nil {
		return res, ex.fail(statusFor(err), err)
	}

	plan := inventory.NewPlan()
	restored := make([]domain.Item, 0, len(lines))
	for _, l := range lines {
		snap, ok := snaps[l.ProductID]
		if !ok {
			return res, ex.fail("PRODUCT_NOT_FOUND", productNotFound(l.ProductID))
		}
		if err := plan.Add(l.ProductID, snap.StockQty, l.Quantity, 0); err != nil {
			return res, ex.fail(statusFor(err), err)
		}
		restored = append(restored, domain.Item{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	if err := o.Cancel(); err != nil {
		return res, ex.fail("ORDER_NOT_CANCELLABLE", err)
	}
	if err := uc.applyPlan(ctx, uc.products, useCaseOrderCancel, plan, snaps); err != nil {
		return res, ex.fail(statusFor(err), err)
	}
	if err := uc.repo.Save(ctx, o); err != nil {
		uc.compensate(ctx, uc.products, useCaseOrderCancel, plan, ex.logger)
		err = wrapRepositoryError(err)
		return res, ex.fail(statusFor(err), err)
	}

	uc.publish(ctx, uc.publisher, ex, domain.NewOrderCancelledEvent(o))

	return CancelOrderResult{OrderID: o.ID, Restored: restored}, nil
}
