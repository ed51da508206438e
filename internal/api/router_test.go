package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/vibefs/internal/app"
	"github.com/charlesng35/vibefs/internal/database/testutil"
	"github.com/charlesng35/vibefs/internal/gitinfo"
	"github.com/charlesng35/vibefs/internal/handlers"
	"github.com/charlesng35/vibefs/internal/middleware"
	"github.com/charlesng35/vibefs/internal/monitoring"
	"github.com/charlesng35/vibefs/internal/monitoring/checks"
	"github.com/charlesng35/vibefs/internal/render"
	"github.com/charlesng35/vibefs/internal/services"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg, err := app.LoadConfig(app.PathsAt(t.TempDir()))
	require.NoError(t, err)
	return cfg
}

func newTestRouter(t *testing.T, cfg *app.Config, rates middleware.RateStore) (*gin.Engine, *services.AuthorizationService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	authz, err := services.NewAuthorizationService(db)
	require.NoError(t, err)

	registry, err := render.NewRegistry(render.Options{})
	require.NoError(t, err)

	resources, err := handlers.NewResourceHandler(authz, gitinfo.NewCLIReader(), registry)
	require.NoError(t, err)

	health := monitoring.NewHealthManager()
	health.RegisterReadiness(checks.Database(db, time.Second))

	router, err := NewRouter(cfg, resources, health, rates)
	require.NoError(t, err)
	return router, authz
}

func serve(router *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouterHealthAndFallback(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(t), nil)

	rec := serve(router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"up"`)
	require.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = serve(router, "/nothing/here")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Not found", rec.Body.String())

	rec = serve(router, "/metrics")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterServesFiles(t *testing.T) {
	router, authz := newTestRouter(t, testConfig(t), nil)

	path := filepath.Join(t.TempDir(), "todo.log")
	require.NoError(t, os.WriteFile(path, []byte("ship it\n"), 0o644))

	grant, err := authz.AuthorizeFile(context.Background(), path, time.Hour)
	require.NoError(t, err)

	rec := serve(router, "/f/"+grant.Token+"/todo.log")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ship it\n", rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterRateLimitsResourceRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.RateLimit.Requests = 2
	cfg.Server.RateLimit.Window = time.Minute

	store := middleware.NewMemoryRateStore()
	t.Cleanup(func() { _ = store.Close() })

	router, _ := newTestRouter(t, cfg, store)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusNotFound, serve(router, "/git/unknown").Code)
	}
	rec := serve(router, "/git/unknown")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Health is not limited.
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, serve(router, "/health").Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "internal/metrics"

	router, _ := newTestRouter(t, cfg, nil)
	require.Equal(t, http.StatusNotFound, serve(router, "/f/abc/x.txt").Code)

	rec := serve(router, "/internal/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "vibefs_resource_requests_total")
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, nil, nil, nil)
	require.Error(t, err)

	_, err = NewRouter(testConfig(t), nil, nil, nil)
	require.Error(t, err)
}

func TestRouterHealthReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	authz, err := services.NewAuthorizationService(db)
	require.NoError(t, err)
	registry, err := render.NewRegistry(render.Options{})
	require.NoError(t, err)
	missingGit := gitinfo.NewCLIReader(gitinfo.WithBinary("vibefs-no-such-git-binary"))
	resources, err := handlers.NewResourceHandler(authz, missingGit, registry)
	require.NoError(t, err)

	health := monitoring.NewHealthManager()
	health.RegisterReadiness(checks.Database(db, time.Second))
	health.RegisterReadiness(checks.Git(missingGit, time.Second))

	router, err := NewRouter(testConfig(t), resources, health, nil)
	require.NoError(t, err)

	// A missing git binary degrades readiness but the daemon still serves files.
	rec := serve(router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"degraded"`)

	rec = serve(router, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"component":"git"`)

	rec = serve(router, "/health/live")
	require.Equal(t, http.StatusOK, rec.Code)
}
