package loyalty

import (
	"errors"
	"fmt"
)

var (
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRewardNotFound      = errors.New("reward not found")
	ErrRedemptionNotFound  = errors.New("redemption not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrMissingCustomerRef  = errors.New("customer_id or customer_email is required")
)

// InsufficientPointsError is a domain outcome, not a system failure: the
// customer simply cannot afford the reward. Handlers surface the numbers so
// the caller can act on them.
type InsufficientPointsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: required=%d available=%d", e.Required, e.Available)
}

func (e *InsufficientPointsError) Shortage() int64 {
	return e.Required - e.Available
}
