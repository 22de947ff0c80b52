package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/perkhub/loyalty-gateway/internal/idempotency"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

// fakeIdemRepo drives the store through every Begin outcome without MySQL.
type fakeIdemRepo struct {
	existing  *model.IdempotencyRecord
	insertErr error

	completed *model.IdempotencyRecord
	deleted   bool
}

func (f *fakeIdemRepo) InsertInFlight(ctx context.Context, businessID int64, key string) (bool, *model.IdempotencyRecord, error) {
	if f.insertErr != nil {
		return false, nil, f.insertErr
	}
	if f.existing != nil {
		return false, f.existing, nil
	}
	return true, nil, nil
}

func (f *fakeIdemRepo) Complete(ctx context.Context, businessID int64, key string, status int, body []byte, ttlHours int) error {
	f.completed = &model.IdempotencyRecord{
		BusinessID:     businessID,
		IdemKey:        key,
		Status:         model.IdemCompleted,
		ResponseStatus: status,
		ResponseBody:   body,
	}
	return nil
}

func (f *fakeIdemRepo) Delete(ctx context.Context, businessID int64, key string) error {
	f.deleted = true
	return nil
}

func (f *fakeIdemRepo) DeleteExpired(ctx context.Context) (int64, error) { return 0, nil }

func runIdem(t *testing.T, repo *fakeIdemRepo, key string, bizID int64, next echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/transactions", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if bizID > 0 {
		c.Set("business_id", bizID)
	}

	store := idempotency.NewStore(repo, time.Hour, nil)
	err := IdempotencyMiddleware(store)(next)(c)
	return rec, err
}

func TestIdempotencyNoHeaderPassesThrough(t *testing.T) {
	repo := &fakeIdemRepo{}
	called := false
	rec, err := runIdem(t, repo, "", 1, func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusCreated)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("handler not called")
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if repo.completed != nil {
		t.Fatal("nothing should be cached without a key")
	}
}

func TestIdempotencyOwnedCachesSuccess(t *testing.T) {
	repo := &fakeIdemRepo{}
	rec, err := runIdem(t, repo, "idem-1", 7, func(c echo.Context) error {
		return c.JSON(http.StatusCreated, map[string]string{"transaction_id": "t1"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if repo.completed == nil {
		t.Fatal("successful response not cached")
	}
	if repo.completed.ResponseStatus != http.StatusCreated {
		t.Errorf("cached status = %d", repo.completed.ResponseStatus)
	}
	if string(repo.completed.ResponseBody) != rec.Body.String() {
		t.Errorf("cached body %q != served body %q", repo.completed.ResponseBody, rec.Body.String())
	}
	if repo.completed.BusinessID != 7 || repo.completed.IdemKey != "idem-1" {
		t.Errorf("cached under %d/%q", repo.completed.BusinessID, repo.completed.IdemKey)
	}
	if repo.deleted {
		t.Fatal("claim should not have been released")
	}
}

func TestIdempotencyHandlerFailureReleasesClaim(t *testing.T) {
	repo := &fakeIdemRepo{}
	rec, err := runIdem(t, repo, "idem-1", 7, func(c echo.Context) error {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !repo.deleted {
		t.Fatal("failed mutation must release the claim so the client can retry")
	}
	if repo.completed != nil {
		t.Fatal("failed response must not be cached")
	}
}

func TestIdempotencyReplay(t *testing.T) {
	repo := &fakeIdemRepo{existing: &model.IdempotencyRecord{
		Status:         model.IdemCompleted,
		ResponseStatus: http.StatusCreated,
		ResponseBody:   []byte(`{"transaction_id":"t1"}`),
	}}

	called := false
	rec, err := runIdem(t, repo, "idem-1", 7, func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusCreated)
	})
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("replay must not re-run the handler")
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want cached 201", rec.Code)
	}
	if rec.Body.String() != `{"transaction_id":"t1"}` {
		t.Fatalf("body = %q, want cached body", rec.Body.String())
	}
}

func TestIdempotencyInProgressConflicts(t *testing.T) {
	repo := &fakeIdemRepo{existing: &model.IdempotencyRecord{Status: model.IdemInFlight}}

	called := false
	rec, err := runIdem(t, repo, "idem-1", 7, func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusCreated)
	})
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("contended key must not re-run the handler")
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestIdempotencyStoreFailureBypasses(t *testing.T) {
	repo := &fakeIdemRepo{insertErr: errors.New("db down")}

	called := false
	rec, err := runIdem(t, repo, "idem-1", 7, func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusCreated)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("store failure must not block the mutation")
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if repo.completed != nil {
		t.Fatal("bypassed request must not be cached")
	}
}

func TestIdempotencyOversizedKeyPassesThrough(t *testing.T) {
	repo := &fakeIdemRepo{existing: &model.IdempotencyRecord{Status: model.IdemInFlight}}

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}

	called := false
	_, err := runIdem(t, repo, string(long), 7, func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusCreated)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("oversized key should bypass idempotency entirely")
	}
}
