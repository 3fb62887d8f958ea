package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salescope/salescope/internal/api"
	mw "github.com/salescope/salescope/internal/api/middleware"
	"github.com/salescope/salescope/internal/auth"
	"github.com/salescope/salescope/internal/config"
	"github.com/salescope/salescope/internal/store"
	"github.com/salescope/salescope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub store holding a fixed set of users ---

type stubStore struct {
	users map[uuid.UUID]*models.User
}

func (s *stubStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (s *stubStore) Ping(_ context.Context) error                      { return nil }
func (s *stubStore) CreateUser(_ context.Context, _ *models.User) error { return nil }
func (s *stubStore) GetUserByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) CreateDataset(_ context.Context, _ *models.Dataset) error { return nil }
func (s *stubStore) GetDataset(_ context.Context, _ uuid.UUID) (*models.Dataset, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) GetDatasetByStorageKey(_ context.Context, _ string) (*models.Dataset, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) ListDatasets(_ context.Context, _ store.DatasetFilter) ([]*models.Dataset, int, error) {
	return nil, 0, nil
}
func (s *stubStore) CreateJob(_ context.Context, _ *models.Job) error { return nil }
func (s *stubStore) GetJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) ListJobs(_ context.Context, _ store.JobFilter) ([]*models.Job, int, error) {
	return nil, 0, nil
}
func (s *stubStore) UpdateJobStatus(_ context.Context, _ uuid.UUID, _ string, _ ...store.JobUpdateOption) error {
	return nil
}
func (s *stubStore) FailStuckJobs(_ context.Context, _ time.Duration, _ string) (int, error) {
	return 0, nil
}

// --- stub cache ---

type stubCache struct{}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (c *stubCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

type routerFixture struct {
	handler http.Handler
	tokens  *auth.Tokens
	admin   *models.User
	analyst *models.User
	viewer  *models.User
}

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func newTestRouter(t *testing.T) *routerFixture {
	t.Helper()

	tokens := auth.NewTokens(config.AuthConfig{
		JWTSecret: "test-secret-at-least-16-chars",
		TokenTTL:  time.Hour,
	})

	admin := &models.User{ID: uuid.New(), Email: "admin@example.com", Role: models.RoleAdmin}
	analyst := &models.User{ID: uuid.New(), Email: "analyst@example.com", Role: models.RoleAnalyst}
	viewer := &models.User{ID: uuid.New(), Email: "viewer@example.com", Role: models.RoleViewer}

	st := &stubStore{users: map[uuid.UUID]*models.User{
		admin.ID:   admin,
		analyst.ID: analyst,
		viewer.ID:  viewer,
	}}

	handler := api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(tokens, st),
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),

		HealthHandler: ok,

		UploadDataset: ok,
		ListDatasets:  ok,
		GetDataset:    ok,

		SubmitJob:  ok,
		GetJob:     ok,
		ListJobs:   ok,
		JobMetrics: ok,
	})

	return &routerFixture{
		handler: handler,
		tokens:  tokens,
		admin:   admin,
		analyst: analyst,
		viewer:  viewer,
	}
}

func (f *routerFixture) do(t *testing.T, method, path string, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if user != nil {
		raw, err := f.tokens.Issue(user.ID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+raw)
	}
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	f := newTestRouter(t)

	rec := f.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	f := newTestRouter(t)

	endpoints := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/datasets"},
		{http.MethodGet, "/api/v1/datasets/" + uuid.NewString()},
		{http.MethodPost, "/api/v1/datasets"},
		{http.MethodGet, "/api/v1/jobs"},
		{http.MethodGet, "/api/v1/jobs/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/jobs/" + uuid.NewString() + "/metrics"},
		{http.MethodPost, "/api/v1/jobs"},
	}
	for _, ep := range endpoints {
		rec := f.do(t, ep.method, ep.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", ep.method, ep.path)
	}
}

func TestRouter_InvalidToken(t *testing.T) {
	f := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer bogus-token")
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_ReadsOpenToAllRoles(t *testing.T) {
	f := newTestRouter(t)

	for _, user := range []*models.User{f.admin, f.analyst, f.viewer} {
		for _, path := range []string{
			"/api/v1/datasets",
			"/api/v1/jobs",
			"/api/v1/jobs/" + uuid.NewString(),
			"/api/v1/jobs/" + uuid.NewString() + "/metrics",
		} {
			rec := f.do(t, http.MethodGet, path, user)
			assert.Equal(t, http.StatusOK, rec.Code, "role %s on %s", user.Role, path)
		}
	}
}

func TestRouter_WritesRequireAdminOrAnalyst(t *testing.T) {
	f := newTestRouter(t)

	writes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/datasets"},
		{http.MethodPost, "/api/v1/jobs"},
	}

	for _, ep := range writes {
		rec := f.do(t, ep.method, ep.path, f.admin)
		assert.Equal(t, http.StatusOK, rec.Code, "admin on %s", ep.path)

		rec = f.do(t, ep.method, ep.path, f.analyst)
		assert.Equal(t, http.StatusOK, rec.Code, "analyst on %s", ep.path)

		rec = f.do(t, ep.method, ep.path, f.viewer)
		assert.Equal(t, http.StatusForbidden, rec.Code, "viewer on %s", ep.path)
	}
}

func TestRouter_DeletedUserToken(t *testing.T) {
	f := newTestRouter(t)

	ghost := &models.User{ID: uuid.New(), Role: models.RoleAdmin} // never stored
	rec := f.do(t, http.MethodGet, "/api/v1/jobs", ghost)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
