package http

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/perkhub/loyalty-gateway/internal/http/middleware"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"github.com/perkhub/loyalty-gateway/internal/util"
)

type createRewardReq struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	PointsRequired int64  `json:"points_required"`
}

func rewardJSON(rw model.Reward) map[string]any {
	return map[string]any{
		"id":              rw.ID,
		"title":           rw.Title,
		"description":     rw.Description,
		"points_required": rw.PointsRequired,
	}
}

func createRewardHandler(rewards repository.RewardsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		var req createRewardReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad_request", "malformed JSON body")
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return errJSON(c, http.StatusBadRequest, "bad_request", "title is required")
		}
		if req.PointsRequired <= 0 {
			return errJSON(c, http.StatusBadRequest, "invalid_points_required", "points_required must be positive")
		}

		rw := model.Reward{
			ID:             util.New(),
			BusinessID:     bizID,
			Title:          req.Title,
			Description:    strings.TrimSpace(req.Description),
			PointsRequired: req.PointsRequired,
		}
		if err := rewards.Insert(c.Request().Context(), rw); err != nil {
			log.Errorf("insert reward failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "internal", "db error")
		}

		return c.JSON(http.StatusCreated, rewardJSON(rw))
	}
}

func listRewardsHandler(rewards repository.RewardsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		rows, err := rewards.List(c.Request().Context(), bizID)
		if err != nil {
			log.Errorf("list rewards failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "internal", "db error")
		}

		out := make([]map[string]any, 0, len(rows))
		for _, rw := range rows {
			out = append(out, rewardJSON(rw))
		}
		return c.JSON(http.StatusOK, map[string]any{"count": len(out), "results": out})
	}
}

// deleteRewardHandler refuses to delete a reward with redemptions pointing at
// it; the rows would lose their referent.
func deleteRewardHandler(rewards repository.RewardsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		bizID, ok := middleware.BusinessIDFromCtx(c)
		if !ok || bizID <= 0 {
			return errJSON(c, http.StatusUnauthorized, "unauthorized", "missing business identity")
		}

		id := c.Param("id")
		referenced, err := rewards.HasRedemptions(c.Request().Context(), bizID, id)
		if err != nil {
			log.Errorf("redemption guard failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "internal", "db error")
		}
		if referenced {
			return errJSON(c, http.StatusConflict, "reward_in_use", "reward has redemptions and cannot be deleted")
		}

		deleted, err := rewards.Delete(c.Request().Context(), bizID, id)
		if err != nil {
			log.Errorf("delete reward failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "internal", "db error")
		}
		if !deleted {
			return errJSON(c, http.StatusNotFound, "reward_not_found", "no such reward for this business")
		}

		return c.JSON(http.StatusOK, map[string]any{"deleted": true})
	}
}
