package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/perkhub/loyalty-gateway/internal/http/middleware"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"github.com/perkhub/loyalty-gateway/internal/util"
)

type registerWebhookReq struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// registerWebhookHandler creates a webhook registration. The signing secret
// is generated here and returned in this response only; it is never
// retrievable again.
func registerWebhookHandler(webhooks repository.WebhooksRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		var req registerWebhookReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad_request", "malformed JSON body")
		}

		u, err := url.Parse(strings.TrimSpace(req.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errJSON(c, http.StatusBadRequest, "invalid_url", "url must be an absolute http(s) URL")
		}
		if len(req.Events) == 0 {
			return errJSON(c, http.StatusBadRequest, "bad_request", "events is required")
		}

		names := make([]model.EventName, 0, len(req.Events))
		for _, raw := range req.Events {
			name := model.EventName(strings.TrimSpace(raw))
			if !name.Valid() {
				return errJSON(c, http.StatusBadRequest, "invalid_event", "unknown event name: "+raw)
			}
			names = append(names, name)
		}
		eventsJSON, err := json.Marshal(names)
		if err != nil {
			return errJSON(c, http.StatusInternalServerError, "internal", "encode events")
		}

		w := model.Webhook{
			ID:         util.New(),
			BusinessID: bizID,
			URL:        u.String(),
			Secret:     util.NewSecret(32),
			Events:     string(eventsJSON),
			IsActive:   true,
		}
		if err := webhooks.Insert(c.Request().Context(), w); err != nil {
			log.Errorf("insert webhook failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "internal", "db error")
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"id":     w.ID,
			"url":    w.URL,
			"events": names,
			"secret": w.Secret, // shown once
		})
	}
}

func listWebhooksHandler(webhooks repository.WebhooksRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		rows, err := webhooks.List(c.Request().Context(), bizID)
		if err != nil {
			log.Errorf("list webhooks failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "internal", "db error")
		}

		out := make([]map[string]any, 0, len(rows))
		for _, w := range rows {
			// secret deliberately omitted
			out = append(out, map[string]any{
				"id":        w.ID,
				"url":       w.URL,
				"events":    w.EventList(),
				"is_active": w.IsActive,
			})
		}
		return c.JSON(http.StatusOK, map[string]any{"count": len(out), "results": out})
	}
}

func deleteWebhookHandler(webhooks repository.WebhooksRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		deleted, err := webhooks.Delete(c.Request().Context(), bizID, c.Param("id"))
		if err != nil {
			log.Errorf("delete webhook failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "internal", "db error")
		}
		if !deleted {
			return errJSON(c, http.StatusNotFound, "webhook_not_found", "no such webhook for this business")
		}

		return c.JSON(http.StatusOK, map[string]any{"deleted": true})
	}
}
