package account

import "errors"

var (
	ErrNotFound = errors.New("account: not found")
	ErrInactive = errors.New("account: inactive")
)

// Status is the account status as reported by the account service.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Active() bool { return s == StatusActive }
