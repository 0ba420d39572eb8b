package httppresentation

import (
	"context"
	"errors"
	"net/http"

	appOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, domainOrder.ErrInvalidRequest),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, account.ErrInactive),
		errors.Is(err, product.ErrNotSellable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, domainOrder.ErrInvalidState),
		errors.Is(err, domainOrder.ErrConflict),
		errors.Is(err, product.ErrStockConflict),
		errors.Is(err, product.ErrInvalidStock):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, appOrder.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusOf(err), err)
}
