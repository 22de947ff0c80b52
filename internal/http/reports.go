package http

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/perkhub/loyalty-gateway/internal/http/middleware"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
)

// listEventsHandler serves the ClickHouse-backed event history: every event
// the business emitted, as archived by the archiver worker.
func listEventsHandler(archive repository.EventArchiveRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var event model.EventName
		if raw := strings.TrimSpace(c.QueryParam("event")); raw != "" {
			tmp := model.EventName(raw)
			if tmp.Valid() && tmp != model.EventWildcard {
				event = tmp
			}
		}

		rows, err := archive.ListByBusiness(c.Request().Context(), bizID, event, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
