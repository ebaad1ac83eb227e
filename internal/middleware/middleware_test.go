package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/watchdog-backend-go/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserKey))
	})
	return r
}

func TestAdminAuth(t *testing.T) {
	t.Parallel()

	r := newEngine(AdminAuth(testSecret))

	valid, err := IssueAdminToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	expired, err := IssueAdminToken(testSecret, "ops", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueAdminToken("other-secret", "ops", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ops", w.Body.String())
			}
		})
	}
}

func TestAdminAuth_NoSecret(t *testing.T) {
	t.Parallel()

	r := newEngine(AdminAuth(""))

	// Well-formed tokens are refused as well
	signed, err := IssueAdminToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)

	for _, header := range []string{"", "Bearer " + signed} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "Admin API disabled")
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	r := newEngine(RateLimit(0.001, 2, stop))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Buckets are per client
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1)
	assert.True(t, rl.Allow("a"))
	rl.Cleanup(time.Now().Add(2 * idleTTL))
	// A fresh bucket after cleanup
	assert.True(t, rl.Allow("a"))
}

func TestLogger_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "info", Output: &buf})
	t.Cleanup(func() { logging.Init(logging.DefaultConfig()) })

	r := newEngine(Logger())

	req := httptest.NewRequest(http.MethodGet, "/ping?x=1", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), `"path":"/ping?x=1"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}
