package order

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// LineDetail is an order line joined with its product.
type LineDetail struct {
	LineID    int64           `json:"line_id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderDetail is the read model returned by detail and list queries.
type OrderDetail struct {
	OrderID      int64           `json:"order_id"`
	AccountID    int64           `json:"account_id"`
	Status       domain.Status   `json:"status"`
	StatusName   string          `json:"status_name"`
	CreateDate   time.Time       `json:"create_date"`
	ModifiedDate *time.Time      `json:"modified_date,omitempty"`
	Version      int64           `json:"version"`
	Lines        []LineDetail    `json:"lines"`
	Total        decimal.Decimal `json:"total"`
}

type GetOrderDetailInput struct {
	OrderID int64
}

type ListOrdersByAccountInput struct {
	AccountID int64
}

// GetOrderDetailUseCase reads one visible order with prices resolved.
type GetOrderDetailUseCase struct {
	instrumented
	repo     domain.Repository
	products ProductGateway
}

var _ application.UseCase[GetOrderDetailInput, OrderDetail] = (*GetOrderDetailUseCase)(nil)

func NewGetOrderDetailUseCase(repo domain.Repository, products ProductGateway, tel observability.Observability) *GetOrderDetailUseCase {
	return &GetOrderDetailUseCase{
		instrumented: newInstrumented(tel),
		repo:         repo,
		products:     products,
	}
}

func (uc *GetOrderDetailUseCase) Execute(ctx context.Context, q GetOrderDetailInput) (res OrderDetail, err error) {
	ctx, ex := uc.begin(ctx, useCaseOrderDetail, "GetOrderDetail",
		attribute.Int64("order.id", q.OrderID),
	)
	defer func() { uc.finish(ex, err) }()

	if q.OrderID <= 0 {
		return res, ex.fail("ORDER_ID_INVALID", fmt.Errorf("%w: order id must be positive", domain.ErrInvalidRequest))
	}

	o, err := uc.repo.FindByID(ctx, q.OrderID)
	if err != nil {
		err = wrapRepositoryError(err)
		return res, ex.fail(statusFor(err), err)
	}
	snaps, err := fetchProducts(ctx, uc.products, o.ProductIDs())
	if err != nil {
		return res, ex.fail(statusFor(err), err)
	}
	res, err = detailOf(o, snaps)
	if err != nil {
		return res, ex.fail(statusFor(err), err)
	}
	return res, nil
}

// ListOrdersByAccountUseCase reads every visible order of an account.
type ListOrdersByAccountUseCase struct {
	instrumented
	repo     domain.Repository
	products ProductGateway
}

var _ application.UseCase[ListOrdersByAccountInput, []OrderDetail] = (*ListOrdersByAccountUseCase)(nil)

func NewListOrdersByAccountUseCase(repo domain.Repository, products ProductGateway, tel observability.Observability) *ListOrdersByAccountUseCase {
	return &ListOrdersByAccountUseCase{
		instrumented: newInstrumented(tel),
		repo:         repo,
		products:     products,
	}
}

func (uc *ListOrdersByAccountUseCase) Execute(ctx context.Context, q ListOrdersByAccountInput) (res []OrderDetail, err error) {
	ctx, ex := uc.begin(ctx, useCaseOrderList, "ListOrdersByAccount",
		attribute.Int64("order.account_id", q.AccountID),
	)
	defer func() { uc.finish(ex, err) }()

	if q.AccountID <= 0 {
		return nil, ex.fail("ACCOUNT_ID_INVALID", fmt.Errorf("%w: account id must be positive", domain.ErrInvalidRequest))
	}

	orders, err := uc.repo.FindByAccountID(ctx, q.AccountID)
	if err != nil {
		err = wrapRepositoryError(err)
		return nil, ex.fail(statusFor(err), err)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })

	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, o := range orders {
		for _, id := range o.ProductIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	snaps, err := fetchProducts(ctx, uc.products, ids)
	if err != nil {
		return nil, ex.fail(statusFor(err), err)
	}

	res = make([]OrderDetail, 0, len(orders))
	for _, o := range orders {
		d, err := detailOf(o, snaps)
		if err != nil {
			return nil, ex.fail(statusFor(err), err)
		}
		res = append(res, d)
	}
	ex.note("orders", len(res))
	return res, nil
}

// detailOf joins o with product snapshots. Totals are computed here, at read
// time, from the current price.
func detailOf(o *domain.Order, snaps map[int64]product.Snapshot) (OrderDetail, error) {
	lines := o.Lines()
	d := OrderDetail{
		OrderID:      o.ID,
		AccountID:    o.AccountID,
		Status:       o.Status,
		StatusName:   o.Status.String(),
		CreateDate:   o.CreateDate,
		ModifiedDate: o.ModifiedDate,
		Version:      o.Version,
		Lines:        make([]LineDetail, 0, len(lines)),
		Total:        decimal.Zero,
	}
	for _, l := range lines {
		snap, ok := snaps[l.ProductID]
		if !ok {
			return OrderDetail{}, productNotFound(l.ProductID)
		}
		sub := snap.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		d.Lines = append(d.Lines, LineDetail{
			LineID:    l.ID,
			ProductID: l.ProductID,
			Name:      snap.Name,
			UnitPrice: snap.Price,
			Quantity:  l.Quantity,
			Subtotal:  sub,
		})
		d.Total = d.Total.Add(sub)
	}
	return d, nil
}
