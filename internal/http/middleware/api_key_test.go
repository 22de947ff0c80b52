package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
)

type fakeAPIKeysRepo struct {
	byKey map[string]*repository.AuthenticatedKey
	err   error
}

func (f *fakeAPIKeysRepo) GetByKey(ctx context.Context, apiKey string) (*repository.AuthenticatedKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byKey[apiKey], nil
}
func (f *fakeAPIKeysRepo) Insert(ctx context.Context, k *model.APIKey) error { return nil }
func (f *fakeAPIKeysRepo) TouchLastUsed(ctx context.Context, id int64) error { return nil }

func authKey(bizID int64, active bool, bizStatus string) *repository.AuthenticatedKey {
	rps := 25
	return &repository.AuthenticatedKey{
		APIKey: model.APIKey{
			ID:          1,
			BusinessID:  bizID,
			Key:         "k",
			Environment: model.EnvSandbox,
			IsActive:    active,
		},
		BusinessStatus: bizStatus,
		RateLimitRPS:   &rps,
	}
}

func runAuth(t *testing.T, repo repository.APIKeysRepository, header string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/customers", nil)
	if header != "" {
		req.Header.Set("X-API-Key", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if next == nil {
		next = func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	}
	if err := APIKeyMiddleware(repo)(next)(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}
	return rec
}

func TestAPIKeyMissingHeader(t *testing.T) {
	rec := runAuth(t, &fakeAPIKeysRepo{}, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAPIKeyUnknown(t *testing.T) {
	rec := runAuth(t, &fakeAPIKeysRepo{byKey: map[string]*repository.AuthenticatedKey{}}, "nope", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAPIKeyInactive(t *testing.T) {
	repo := &fakeAPIKeysRepo{byKey: map[string]*repository.AuthenticatedKey{
		"k": authKey(5, false, "active"),
	}}
	rec := runAuth(t, repo, "k", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked key: status = %d, want 401", rec.Code)
	}
}

func TestAPIKeySuspendedBusiness(t *testing.T) {
	repo := &fakeAPIKeysRepo{byKey: map[string]*repository.AuthenticatedKey{
		"k": authKey(5, true, "suspended"),
	}}
	rec := runAuth(t, repo, "k", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("suspended business: status = %d, want 401", rec.Code)
	}
}

func TestAPIKeyLookupError(t *testing.T) {
	rec := runAuth(t, &fakeAPIKeysRepo{err: errors.New("db down")}, "k", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestAPIKeySetsContext(t *testing.T) {
	repo := &fakeAPIKeysRepo{byKey: map[string]*repository.AuthenticatedKey{
		"k": authKey(5, true, "active"),
	}}

	var gotBiz int64
	var gotEnv model.Environment
	var gotRPS any
	rec := runAuth(t, repo, "k", func(c echo.Context) error {
		gotBiz, _ = BusinessIDFromCtx(c)
		gotEnv, _ = EnvironmentFromCtx(c)
		gotRPS = c.Get("business_rps")
		return c.NoContent(http.StatusOK)
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotBiz != 5 {
		t.Errorf("business_id = %d, want 5", gotBiz)
	}
	if gotEnv != model.EnvSandbox {
		t.Errorf("environment = %q, want sandbox", gotEnv)
	}
	if rps, ok := gotRPS.(int); !ok || rps != 25 {
		t.Errorf("business_rps = %v, want 25", gotRPS)
	}
}
