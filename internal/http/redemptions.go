package http

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/perkhub/loyalty-gateway/internal/http/middleware"
	"github.com/perkhub/loyalty-gateway/internal/metrics"
	"github.com/perkhub/loyalty-gateway/internal/service/loyalty"
)

type createRedemptionReq struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	RewardID      string `json:"reward_id"`
}

func createRedemptionHandler(svc *loyalty.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		var req createRedemptionReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad_request", "malformed JSON body")
		}
		if req.RewardID == "" {
			return errJSON(c, http.StatusBadRequest, "bad_request", "reward_id is required")
		}

		res, err := svc.CreateRedemption(c.Request().Context(), bizID, loyalty.CreateRedemptionInput{
			Customer: loyalty.CustomerRef{ID: req.CustomerID, Email: req.CustomerEmail},
			RewardID: req.RewardID,
		})
		if err != nil {
			metrics.MutationsTotal.WithLabelValues("redemption_create", outcomeOf(err)).Inc()
			return serviceError(c, err)
		}

		metrics.MutationsTotal.WithLabelValues("redemption_create", "ok").Inc()

		return c.JSON(http.StatusCreated, map[string]any{
			"redemption_id":   res.Redemption.ID,
			"customer_id":     res.Redemption.CustomerID,
			"reward_id":       res.Redemption.RewardID,
			"points_deducted": res.PointsDeducted,
			"new_balance":     res.NewBalance,
			"date":            res.Redemption.Date.Format(time.RFC3339),
		})
	}
}

func deleteRedemptionHandler(svc *loyalty.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		res, err := svc.DeleteRedemption(c.Request().Context(), bizID, c.Param("id"))
		if err != nil {
			metrics.MutationsTotal.WithLabelValues("redemption_delete", outcomeOf(err)).Inc()
			return serviceError(c, err)
		}

		metrics.MutationsTotal.WithLabelValues("redemption_delete", "ok").Inc()

		return c.JSON(http.StatusOK, map[string]any{
			"deleted":         true,
			"points_restored": res.PointsRestored,
			"new_balance":     res.NewBalance,
		})
	}
}
