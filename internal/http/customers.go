package http

import (
	"net/http"
	"net/mail"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/perkhub/loyalty-gateway/internal/http/middleware"
	"github.com/perkhub/loyalty-gateway/internal/metrics"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/service/loyalty"
)

type upsertCustomerReq struct {
	Email string  `json:"email"`
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
}

func customerJSON(c model.Customer, created bool) map[string]any {
	out := map[string]any{
		"id":     c.ID,
		"email":  c.Email,
		"name":   c.Name,
		"phone":  c.Phone,
		"points": c.Points,
	}
	out["created"] = created
	return out
}

// upsertCustomerHandler creates or updates a customer keyed by email.
// Idempotent by construction: retries land on the same row.
func upsertCustomerHandler(svc *loyalty.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		var req upsertCustomerReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad_request", "malformed JSON body")
		}

		req.Email = strings.TrimSpace(req.Email)
		req.Name = strings.TrimSpace(req.Name)
		if req.Email == "" || req.Name == "" {
			return errJSON(c, http.StatusBadRequest, "bad_request", "email and name are required")
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return errJSON(c, http.StatusBadRequest, "invalid_email", "email is not a valid address")
		}

		res, err := svc.UpsertCustomer(c.Request().Context(), bizID, loyalty.UpsertCustomerInput{
			Email: req.Email,
			Name:  req.Name,
			Phone: req.Phone,
		})
		if err != nil {
			metrics.MutationsTotal.WithLabelValues("customer_upsert", outcomeOf(err)).Inc()
			return serviceError(c, err)
		}

		metrics.MutationsTotal.WithLabelValues("customer_upsert", "ok").Inc()

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		return c.JSON(status, customerJSON(res.Customer, res.Created))
	}
}

func getCustomerHandler(svc *loyalty.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		cust, err := svc.GetCustomer(c.Request().Context(), bizID, c.Param("id"))
		if err != nil {
			return serviceError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"id":     cust.ID,
			"email":  cust.Email,
			"name":   cust.Name,
			"phone":  cust.Phone,
			"points": cust.Points,
		})
	}
}
