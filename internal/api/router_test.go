package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/watchdog-backend-go/internal/config"
	"github.com/jengzang/watchdog-backend-go/internal/database"
	"github.com/jengzang/watchdog-backend-go/internal/detection"
	"github.com/jengzang/watchdog-backend-go/internal/middleware"
)

func newTestServer(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	return newTestServerWithSecret(t, "router-secret-0123456789")
}

func newTestServerWithSecret(t *testing.T, secret string) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "router.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		ProjectName: "watchdog",
		JWTSecret:   secret,
		RateLimit:   config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		Detection:   detection.DefaultConfig(),
	}

	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	return SetupRouter(cfg, NewWatchdogService(db, cfg), stop), cfg
}

func TestRouter_Public(t *testing.T) {
	r, _ := newTestServer(t)

	for _, path := range []string{"/health", "/metrics", "/api/v1/enodebs", "/api/v1/map", "/api/v1/known-towers"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader), path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/enodebs", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	r, cfg := newTestServer(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/recompute", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := middleware.IssueAdminToken(cfg.JWTSecret, "ops", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/recompute", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"triggeredBy":"ops"`)

	body := `{"mcc":310,"mnc":410,"tac":7,"enodebId":1001,"cid":1,"lat":40,"lon":-105,"txPower":-80,"timestamp":1}`
	req = httptest.NewRequest(http.MethodPost, "/api/admin/sightings", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/enodebs/310_410_7_1001", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminDisabledWithoutSecret(t *testing.T) {
	r, _ := newTestServerWithSecret(t, "")

	token, err := middleware.IssueAdminToken("router-secret-0123456789", "ops", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/recompute", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/enodebs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
