package order

import (
	"context"
	"fmt"
	"sort"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// UpdateOrderInput replaces an order's status and its full line list.
type UpdateOrderInput struct {
	OrderID int64
	Status  domain.Status
	Items   []domain.Item
}

type UpdateOrderResult struct {
	OrderID int64
	Status  domain.Status
	Version int64
}

// UpdateOrderUseCase reconciles an order's lines and moves stock by the
// net difference per product.
type UpdateOrderUseCase struct {
	instrumented
	repo      domain.Repository
	products  ProductGateway
	publisher domoutbox.Publisher
}

var _ application.UseCase[UpdateOrderInput, UpdateOrderResult] = (*UpdateOrderUseCase)(nil)

func NewUpdateOrderUseCase(
	repo domain.Repository,
	products ProductGateway,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *UpdateOrderUseCase {
	return &UpdateOrderUseCase{
		instrumented: newInstrumented(tel),
		repo:         repo,
		products:     products,
		publisher:    publisher,
	}
}

func (uc *UpdateOrderUseCase) Execute(ctx context.Context, cmd UpdateOrderInput) (res UpdateOrderResult, err error) {
	ctx, ex := uc.begin(ctx, useCaseOrderUpdate, "UpdateOrder",
		attribute.Int64("order.id", cmd.OrderID),
		attribute.Int("order.status", int(cmd.Status)),
		attribute.Int("order.items", len(cmd.Items)),
	)
	defer func() { uc.finish(ex, err) }()

	if cmd.OrderID <= 0 {
		return res, ex.fail("ORDER_ID_INVALID", fmt.Errorf("%w: order id must be positive", domain.ErrInvalidRequest))
	}
	if err := domain.ValidateStatus(cmd.Status); err != nil {
		return res, ex.fail("STATUS_INVALID", err)
	}
	if err := domain.ValidateItems(cmd.Items); err != nil {
		return res, ex.fail("ITEMS_INVALID", err)
	}
	if err := ctx.Err(); err != nil {
		return res, ex.fail("CONTEXT_CANCELED", err)
	}

	o, err := uc.repo.FindByID(ctx, cmd.OrderID)
	if err != nil {
		err = wrapRepositoryError(err)
		return res, ex.fail(statusFor(err), err)
	}
	if err := o.CheckUpdatable(); err != nil {
		return res, ex.fail("ORDER_NOT_UPDATABLE", err)
	}

	original := o.Quantities()
	requested := make(map[int64]int, len(cmd.Items))
	for _, it := range cmd.Items {
		requested[it.ProductID] = it.Quantity
	}
	union := unionIDs(original, requested)

	snaps, err := fetchProducts(ctx, uc.products, union)
	if err != nil {
		return res, ex.fail(statusFor(err), err)
	}

	changed := make([]int64, 0, len(union))
	for _, id := range union {
		if original[id] == requested[id] {
			continue
		}
		snap, ok := snaps[id]
		if !ok {
			return res, ex.fail("PRODUCT_NOT_FOUND", productNotFound(id))
		}
		if requested[id] > original[id] && !snap.Sellable() {
			return res, ex.fail("PRODUCT_NOT_SELLABLE", &product.NotSellableError{ProductID: id})
		}
		changed = append(changed, id)
	}

	plan := inventory.NewPlan()
	for _, id := range changed {
		if err := plan.Add(id, snaps[id].StockQty, original[id], requested[id]); err != nil {
			return res, ex.fail(statusFor(err), err)
		}
	}
	ex.note("stock_changes", plan.Len())

	o.ReplaceLines(cmd.Items)
	if err := o.SetStatus(cmd.Status); err != nil {
		return res, ex.fail("STATUS_INVALID", err)
	}

	if err := uc.applyPlan(ctx, uc.products, useCaseOrderUpdate, plan, snaps); err != nil {
		return res, ex.fail(statusFor(err), err)
	}
	if err := uc.repo.Save(ctx, o); err != nil {
		uc.compensate(ctx, uc.products, useCaseOrderUpdate, plan, ex.logger)
		err = wrapRepositoryError(err)
		return res, ex.fail(statusFor(err), err)
	}

	uc.publish(ctx, uc.publisher, ex, domain.NewOrderUpdatedEvent(o))

	return UpdateOrderResult{OrderID: o.ID, Status: o.Status, Version: o.Version}, nil
}

// unionIDs returns every product id present in either map, ascending.
func unionIDs(a, b map[int64]int) []int64 {
	ids := make([]int64, 0, len(a)+len(b))
	for id := range a {
		ids = append(ids, id)
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
