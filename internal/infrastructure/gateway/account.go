package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
)

const (
	peerAccount        = "account-service"
	endpointGetAccount = "GET /accounts/{id}"
)

// AccountClient reads account status from the account service.
type AccountClient struct {
	client
}

func NewAccountClient(baseURL string, hc *http.Client, tel observability.Observability) *AccountClient {
	return &AccountClient{client: newClient(baseURL, peerAccount, hc, tel)}
}

type accountResponse struct {
	ID     int64          `json:"id"`
	Status account.Status `json:"status"`
}

func (c *AccountClient) GetAccountStatus(ctx context.Context, accountID int64) (account.Status, error) {
	var body accountResponse
	code, msg, err := c.do(ctx, http.MethodGet, endpointGetAccount, "/accounts/"+strconv.FormatInt(accountID, 10), nil, &body)
	if err != nil {
		return "", err
	}
	switch {
	case code == http.StatusNotFound:
		return "", fmt.Errorf("%w: %d", account.ErrNotFound, accountID)
	case code < 200 || code >= 300:
		return "", &StatusError{Endpoint: endpointGetAccount, Code: code, Body: msg}
	}
	switch body.Status {
	case account.StatusActive, account.StatusInactive:
		return body.Status, nil
	default:
		return "", fmt.Errorf("gateway: account %d has unknown status %q", accountID, body.Status)
	}
}
