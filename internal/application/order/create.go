package order

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

type CreateOrderInput struct {
	AccountID int64
	Items     []domain.Item
}

type CreateOrderResult struct {
	OrderID int64
	Status  domain.Status
	// Skipped lists requested products that do not exist and were left out.
	Skipped []int64
}

// CreateOrderUseCase places a new order and reserves its stock.
type CreateOrderUseCase struct {
	instrumented
	repo      domain.Repository
	accounts  AccountGateway
	products  ProductGateway
	publisher domoutbox.Publisher
}

var _ application.UseCase[CreateOrderInput, CreateOrderResult] = (*CreateOrderUseCase)(nil)

func NewCreateOrderUseCase(
	repo domain.Repository,
	accounts AccountGateway,
	products ProductGateway,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		instrumented: newInstrumented(tel),
		repo:         repo,
		accounts:     accounts,
		products:     products,
		publisher:    publisher,
	}
}

// Execute validates the account and products, reserves stock and persists
// the order. Nothing is written unless every check passes.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (res CreateOrderResult, err error) {
	ctx, ex := uc.begin(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.Int64("order.account_id", cmd.AccountID),
		attribute.Int("order.items", len(cmd.Items)),
	)
	defer func() { uc.finish(ex, err) }()

	if cmd.AccountID <= 0 {
		return res, ex.fail("ACCOUNT_ID_INVALID", fmt.Errorf("%w: account id must be positive", domain.ErrInvalidRequest))
	}
	if err := domain.ValidateItems(cmd.Items); err != nil {
		return res, ex.fail("ITEMS_INVALID", err)
	}
	if err := ctx.Err(); err != nil {
		return res, ex.fail("CONTEXT_CANCELED", err)
	}

	status, err := uc.accounts.GetAccountStatus(ctx, cmd.AccountID)
	if err != nil {
		err = wrapGatewayError(err)
		return res, ex.fail(statusFor(err), err)
	}
	if !status.Active() {
		return res, ex.fail("ACCOUNT_INACTIVE", fmt.Errorf("%w: %d", account.ErrInactive, cmd.AccountID))
	}

	ids := make([]int64, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		ids = append(ids, it.ProductID)
	}
	snaps, err := fetchProducts(ctx, uc.products, ids)
	if err != nil {
		return res, ex.fail(statusFor(err), err)
	}

	kept := make([]domain.Item, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		if _, ok := snaps[it.ProductID]; !ok {
			res.Skipped = append(res.Skipped, it.ProductID)
			continue
		}
		kept = append(kept, it)
	}
	if len(res.Skipped) > 0 {
		ex.note("skipped_products", res.Skipped)
	}
	if len(kept) == 0 {
		return res, ex.fail("PRODUCT_NOT_FOUND", fmt.Errorf("%w: none of the requested products exist", product.ErrNotFound))
	}

	// Every product must be sellable before any stock is checked.
	for _, it := range kept {
		if !snaps[it.ProductID].Sellable() {
			return res, ex.fail("PRODUCT_NOT_SELLABLE", &product.NotSellableError{ProductID: it.ProductID})
		}
	}

	plan := inventory.NewPlan()
	for _, it := range kept {
		if err := plan.Add(it.ProductID, snaps[it.ProductID].StockQty, 0, it.Quantity); err != nil {
			return res, ex.fail(statusFor(err), err)
		}
	}

	o, err := domain.New(cmd.AccountID, kept)
	if err != nil {
		return res, ex.fail("ITEMS_INVALID", err)
	}

	if err := uc.applyPlan(ctx, uc.products, useCaseOrderCreate, plan, snaps); err != nil {
		return res, ex.fail(statusFor(err), err)
	}
	if err := uc.repo.Save(ctx, o); err != nil {
		uc.compensate(ctx, uc.products, useCaseOrderCreate, plan, ex.logger)
		return res, ex.fail("REPOSITORY_SAVE_FAILED", wrapRepositoryError(err))
	}

	ex.span.SetAttributes(attribute.Int64("order.id", o.ID))
	ex.note("order_id", o.ID)
	uc.publish(ctx, uc.publisher, ex, domain.NewOrderCreatedEvent(o))

	res.OrderID = o.ID
	res.Status = o.Status
	return res, nil
}
