package http

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/perkhub/loyalty-gateway/internal/service/loyalty"
)

func errJSON(c echo.Context, status int, reason, description string) error {
	return c.JSON(status, map[string]string{
		"error":       reason,
		"description": description,
	})
}

// serviceError maps domain errors to stable machine-readable responses.
// Status codes: 400 invalid input / insufficient balance, 404 missing entity,
// 500 everything else.
func serviceError(c echo.Context, err error) error {
	var insufficient *loyalty.InsufficientPointsError
	if errors.As(err, &insufficient) {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":       "insufficient_points",
			"description": "customer balance is not enough for this reward",
			"required":    insufficient.Required,
			"available":   insufficient.Available,
			"shortage":    insufficient.Shortage(),
		})
	}

	switch {
	case errors.Is(err, loyalty.ErrCustomerNotFound):
		return errJSON(c, http.StatusNotFound, "customer_not_found", "no such customer for this business")
	case errors.Is(err, loyalty.ErrTransactionNotFound):
		return errJSON(c, http.StatusNotFound, "transaction_not_found", "no such transaction for this business")
	case errors.Is(err, loyalty.ErrRewardNotFound):
		return errJSON(c, http.StatusNotFound, "reward_not_found", "no such reward for this business")
	case errors.Is(err, loyalty.ErrRedemptionNotFound):
		return errJSON(c, http.StatusNotFound, "redemption_not_found", "no such redemption for this business")
	case errors.Is(err, loyalty.ErrInvalidAmount):
		return errJSON(c, http.StatusBadRequest, "invalid_amount", "amount must be a positive integer of minor currency units")
	case errors.Is(err, loyalty.ErrMissingCustomerRef):
		return errJSON(c, http.StatusBadRequest, "missing_customer", "customer_id or customer_email is required")
	}

	log.Errorf("mutation failed: %v", err)

	return errJSON(c, http.StatusInternalServerError, "internal", "db error")
}

// outcomeOf buckets a service error for metrics: domain rejections vs real
// failures.
func outcomeOf(err error) string {
	var insufficient *loyalty.InsufficientPointsError
	switch {
	case errors.As(err, &insufficient),
		errors.Is(err, loyalty.ErrCustomerNotFound),
		errors.Is(err, loyalty.ErrTransactionNotFound),
		errors.Is(err, loyalty.ErrRewardNotFound),
		errors.Is(err, loyalty.ErrRedemptionNotFound),
		errors.Is(err, loyalty.ErrInvalidAmount),
		errors.Is(err, loyalty.ErrMissingCustomerRef):
		return "rejected"
	default:
		return "error"
	}
}
