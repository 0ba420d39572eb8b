package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
)

// AccountDirectory is an in-process stand-in for the account service.
type AccountDirectory struct {
	mu       sync.RWMutex
	accounts map[int64]account.Status
}

func NewAccountDirectory() *AccountDirectory {
	return &AccountDirectory{
		accounts: make(map[int64]account.Status),
	}
}

func (d *AccountDirectory) Put(id int64, status account.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[id] = status
}

func (d *AccountDirectory) GetAccountStatus(ctx context.Context, accountID int64) (account.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	status, ok := d.accounts[accountID]
	if !ok {
		return "", fmt.Errorf("%w: %d", account.ErrNotFound, accountID)
	}
	return status, nil
}
