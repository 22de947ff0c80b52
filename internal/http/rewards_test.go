package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

type fakeRewardsRepo struct {
	rewards    []model.Reward
	redeemedBy map[string]int64 // reward id -> business that redeemed it
}

func (f *fakeRewardsRepo) GetByID(ctx context.Context, businessID int64, id string) (*model.Reward, error) {
	for _, rw := range f.rewards {
		if rw.ID == id && rw.BusinessID == businessID {
			return &rw, nil
		}
	}
	return nil, nil
}
func (f *fakeRewardsRepo) List(ctx context.Context, businessID int64) ([]model.Reward, error) {
	var out []model.Reward
	for _, rw := range f.rewards {
		if rw.BusinessID == businessID {
			out = append(out, rw)
		}
	}
	return out, nil
}
func (f *fakeRewardsRepo) Insert(ctx context.Context, rw model.Reward) error {
	f.rewards = append(f.rewards, rw)
	return nil
}
func (f *fakeRewardsRepo) HasRedemptions(ctx context.Context, businessID int64, id string) (bool, error) {
	return f.redeemedBy[id] == businessID, nil
}
func (f *fakeRewardsRepo) Delete(ctx context.Context, businessID int64, id string) (bool, error) {
	for i, rw := range f.rewards {
		if rw.ID == id && rw.BusinessID == businessID {
			f.rewards = append(f.rewards[:i], f.rewards[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func deleteRewardCtx(t *testing.T, bizID int64, rewardID string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/v1/rewards/"+rewardID, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("business_id", bizID)
	c.SetParamNames("id")
	c.SetParamValues(rewardID)
	return c, rec
}

// Deleting another tenant's reward must read as absent, never as in-use: the
// redemption guard is business-scoped, so a foreign id answers 404, not 409.
func TestDeleteRewardForeignTenantIs404(t *testing.T) {
	repo := &fakeRewardsRepo{
		rewards:    []model.Reward{{ID: "rw1", BusinessID: 8, Title: "Free Espresso", PointsRequired: 50}},
		redeemedBy: map[string]int64{"rw1": 8}, // redeemed, but by business 8
	}

	c, rec := deleteRewardCtx(t, 7, "rw1")
	if err := deleteRewardHandler(repo)(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for a foreign reward", rec.Code)
	}
	if len(repo.rewards) != 1 {
		t.Fatal("foreign reward must not be deleted")
	}
}

func TestDeleteRewardInUseIs409(t *testing.T) {
	repo := &fakeRewardsRepo{
		rewards:    []model.Reward{{ID: "rw1", BusinessID: 7, Title: "Free Espresso", PointsRequired: 50}},
		redeemedBy: map[string]int64{"rw1": 7},
	}

	c, rec := deleteRewardCtx(t, 7, "rw1")
	if err := deleteRewardHandler(repo)(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 for a redeemed reward", rec.Code)
	}
	if len(repo.rewards) != 1 {
		t.Fatal("redeemed reward must not be deleted")
	}
}

func TestDeleteRewardUnreferenced(t *testing.T) {
	repo := &fakeRewardsRepo{
		rewards:    []model.Reward{{ID: "rw1", BusinessID: 7, Title: "Free Espresso", PointsRequired: 50}},
		redeemedBy: map[string]int64{},
	}

	c, rec := deleteRewardCtx(t, 7, "rw1")
	if err := deleteRewardHandler(repo)(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(repo.rewards) != 0 {
		t.Fatal("reward should be gone")
	}
}
