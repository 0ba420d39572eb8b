package order

import "fmt"

// orderState captures which lifecycle operations a status permits.
type orderState interface {
	Status() Status
	cancellable() bool
	updatable() bool
}

type pendingState struct{}

func (pendingState) Status() Status    { return StatusPending }
func (pendingState) cancellable() bool { return true }
func (pendingState) updatable() bool   { return true }

type cancelledState struct{}

func (cancelledState) Status() Status    { return StatusCancelled }
func (cancelledState) cancellable() bool { return false }
func (cancelledState) updatable() bool   { return false }

// customState covers application-defined codes set through UpdateOrder.
// Such orders can still be edited but are no longer cancellable.
type customState struct{ code Status }

func (s customState) Status() Status  { return s.code }
func (customState) cancellable() bool { return false }
func (customState) updatable() bool   { return true }

func stateOf(s Status) orderState {
	switch s {
	case StatusPending:
		return pendingState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return customState{code: s}
	}
}

// CheckUpdatable returns ErrInvalidState when the order can no longer be edited.
func (o *Order) CheckUpdatable() error {
	if !stateOf(o.Status).updatable() {
		return fmt.Errorf("%w: cannot update order in %s", ErrInvalidState, o.Status)
	}
	return nil
}

func validateUpdateStatus(s Status) error {
	if s <= 0 {
		return fmt.Errorf("%w: status code must be positive", ErrInvalidRequest)
	}
	if s == StatusCancelled {
		return fmt.Errorf("%w: use cancel to cancel an order", ErrInvalidRequest)
	}
	return nil
}

// ValidateStatus exposes the update status rule to callers that validate
// before touching the aggregate.
func ValidateStatus(s Status) error { return validateUpdateStatus(s) }

// CheckCancellable returns ErrInvalidState unless the order is pending.
func (o *Order) CheckCancellable() error {
	if !stateOf(o.Status).cancellable() {
		return fmt.Errorf("%w: cannot cancel order in %s", ErrInvalidState, o.Status)
	}
	return nil
}
