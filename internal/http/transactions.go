package http

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/perkhub/loyalty-gateway/internal/http/middleware"
	"github.com/perkhub/loyalty-gateway/internal/metrics"
	"github.com/perkhub/loyalty-gateway/internal/service/loyalty"
)

type createTransactionReq struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	Amount        int64  `json:"amount"` // minor currency units
	Date          string `json:"date"`   // RFC3339, optional
}

func createTransactionHandler(svc *loyalty.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		var req createTransactionReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad_request", "malformed JSON body")
		}

		var date *time.Time
		if req.Date != "" {
			d, err := time.Parse(time.RFC3339, req.Date)
			if err != nil {
				return errJSON(c, http.StatusBadRequest, "invalid_date", "date must be RFC3339")
			}
			date = &d
		}

		res, err := svc.CreateTransaction(c.Request().Context(), bizID, loyalty.CreateTransactionInput{
			Customer: loyalty.CustomerRef{ID: req.CustomerID, Email: req.CustomerEmail},
			Amount:   req.Amount,
			Date:     date,
		})
		if err != nil {
			metrics.MutationsTotal.WithLabelValues("transaction_create", outcomeOf(err)).Inc()
			return serviceError(c, err)
		}

		metrics.MutationsTotal.WithLabelValues("transaction_create", "ok").Inc()

		return c.JSON(http.StatusCreated, map[string]any{
			"transaction_id": res.Transaction.ID,
			"customer_id":    res.Transaction.CustomerID,
			"amount":         res.Transaction.Amount,
			"points_awarded": res.PointsAwarded,
			"new_balance":    res.NewBalance,
			"date":           res.Transaction.Date.Format(time.RFC3339),
		})
	}
}

type updateTransactionReq struct {
	Amount int64 `json:"amount"`
}

func updateTransactionHandler(svc *loyalty.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		var req updateTransactionReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad_request", "malformed JSON body")
		}

		res, err := svc.UpdateTransaction(c.Request().Context(), bizID, c.Param("id"), req.Amount)
		if err != nil {
			metrics.MutationsTotal.WithLabelValues("transaction_update", outcomeOf(err)).Inc()
			return serviceError(c, err)
		}

		metrics.MutationsTotal.WithLabelValues("transaction_update", "ok").Inc()

		return c.JSON(http.StatusOK, map[string]any{
			"transaction_id": res.Transaction.ID,
			"customer_id":    res.Transaction.CustomerID,
			"amount":         res.Transaction.Amount,
			"points_delta":   res.PointsDelta,
			"new_balance":    res.NewBalance,
		})
	}
}

func deleteTransactionHandler(svc *loyalty.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		res, err := svc.DeleteTransaction(c.Request().Context(), bizID, c.Param("id"))
		if err != nil {
			metrics.MutationsTotal.WithLabelValues("transaction_delete", outcomeOf(err)).Inc()
			return serviceError(c, err)
		}

		metrics.MutationsTotal.WithLabelValues("transaction_delete", "ok").Inc()

		return c.JSON(http.StatusOK, map[string]any{
			"deleted":         true,
			"points_reversed": res.PointsReversed,
			"new_balance":     res.NewBalance,
		})
	}
}
