package order

import (
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
)

var (
	ErrNotFound   = domain.ErrNotFound
	ErrConflict   = domain.ErrConflict
	ErrRepository = errors.New("order: repository failure")
	ErrGateway    = errors.New("order: gateway failure")
)

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

// wrapGatewayError keeps business errors reported by a gateway intact and
// marks everything else as an infrastructure failure.
func wrapGatewayError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, product.ErrStockConflict),
		errors.Is(err, product.ErrInvalidStock):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}
}

func productNotFound(id int64) error {
	return fmt.Errorf("%w: %d", product.ErrNotFound, id)
}
