package order

import (
	"context"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
)

// Service exposes the order workflow to the presentation layer.
type Service struct {
	create application.UseCase[CreateOrderInput, CreateOrderResult]
	update application.UseCase[UpdateOrderInput, UpdateOrderResult]
	cancel application.UseCase[CancelOrderInput, CancelOrderResult]
	detail application.UseCase[GetOrderDetailInput, OrderDetail]
	list   application.UseCase[ListOrdersByAccountInput, []OrderDetail]
}

func NewService(
	repo domain.Repository,
	accounts AccountGateway,
	products ProductGateway,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Service {
	return &Service{
		create: NewCreateOrderUseCase(repo, accounts, products, publisher, tel),
		update: NewUpdateOrderUseCase(repo, products, publisher, tel),
		cancel: NewCancelOrderUseCase(repo, products, publisher, tel),
		detail: NewGetOrderDetailUseCase(repo, products, tel),
		list:   NewListOrdersByAccountUseCase(repo, products, tel),
	}
}

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	return s.create.Execute(ctx, in)
}

func (s *Service) UpdateOrder(ctx context.Context, in UpdateOrderInput) (UpdateOrderResult, error) {
	return s.update.Execute(ctx, in)
}

func (s *Service) CancelOrder(ctx context.Context, orderID int64) (CancelOrderResult, error) {
	return s.cancel.Execute(ctx, CancelOrderInput{OrderID: orderID})
}

func (s *Service) GetOrderDetail(ctx context.Context, orderID int64) (OrderDetail, error) {
	return s.detail.Execute(ctx, GetOrderDetailInput{OrderID: orderID})
}

func (s *Service) ListOrdersByAccount(ctx context.Context, accountID int64) ([]OrderDetail, error) {
	return s.list.Execute(ctx, ListOrdersByAccountInput{AccountID: accountID})
}
