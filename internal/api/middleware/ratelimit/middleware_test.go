package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pointboard/forum/internal/api/middleware/ip"
	"github.com/pointboard/forum/internal/api/middleware/ratelimit"
	"github.com/pointboard/forum/internal/redis"
	"github.com/pointboard/forum/internal/setup/config"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

var testConfig = config.RateLimit{
	RequestsPerSecond: 0.001,
	BurstSize:         2,
	StrikeLimit:       2,
	BlockDuration:     60,
}

// newRouter serves "/" behind the limiter, taking the client IP from X-Test-IP.
func newRouter(t *testing.T, m *ratelimit.Middleware) *bunrouter.Router {
	t.Helper()
	t.Cleanup(m.Close)

	setIP := func(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
		return func(w http.ResponseWriter, req bunrouter.Request) error {
			return next(w, req.WithContext(ip.WithIP(req.Context(), req.Header.Get("X-Test-IP"))))
		}
	}

	router := bunrouter.New()
	router.Use(setIP, m.Middleware).GET("/", func(w http.ResponseWriter, _ bunrouter.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	})

	return router
}

func doRequest(router http.Handler, clientIP string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Test-IP", clientIP)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func newRedisClient(t *testing.T) (*miniredis.Miniredis, rueidis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	manager := redis.NewManager(&config.Redis{Host: mr.Host(), Port: port, DisableCache: true}, zap.NewNop())
	t.Cleanup(manager.Close)

	client, err := manager.GetClient(redis.RatelimitDBIndex)
	require.NoError(t, err)

	return mr, client
}

func TestRateLimitStrikesAndBlock(t *testing.T) {
	t.Parallel()

	cfg := testConfig
	router := newRouter(t, ratelimit.New(&cfg, nil, zap.NewNop()))

	// Burst
	assert.Equal(t, http.StatusNoContent, doRequest(router, "1.1.1.1").Code)
	assert.Equal(t, http.StatusNoContent, doRequest(router, "1.1.1.1").Code)

	// First strike
	rec := doRequest(router, "1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Second strike blocks
	rec = doRequest(router, "1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "temporarily blocked")
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = doRequest(router, "1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "temporarily blocked")

	// Other clients are unaffected
	assert.Equal(t, http.StatusNoContent, doRequest(router, "2.2.2.2").Code)
}

func TestRateLimitSharedBlock(t *testing.T) {
	t.Parallel()

	mr, client := newRedisClient(t)

	cfg := testConfig
	first := newRouter(t, ratelimit.New(&cfg, client, zap.NewNop()))
	second := newRouter(t, ratelimit.New(&cfg, client, zap.NewNop()))

	for range 4 {
		doRequest(first, "3.3.3.3")
	}
	assert.True(t, mr.Exists("rl:block:3.3.3.3"))

	rec := doRequest(second, "3.3.3.3")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "temporarily blocked")

	assert.Equal(t, http.StatusNoContent, doRequest(second, "4.4.4.4").Code)
}

func TestRateLimitRedisFailureFailsOpen(t *testing.T) {
	t.Parallel()

	mr, client := newRedisClient(t)
	mr.SetError("READONLY replica")

	cfg := testConfig
	router := newRouter(t, ratelimit.New(&cfg, client, zap.NewNop()))

	assert.Equal(t, http.StatusNoContent, doRequest(router, "5.5.5.5").Code)
}

func TestRateLimitSharedBlockRecheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		recheck  int
		wait     time.Duration
		wantCode int
	}{
		{
			name:     "recent miss is reused",
			recheck:  60_000,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "lookup repeats after the interval",
			recheck:  1,
			wait:     20 * time.Millisecond,
			wantCode: http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mr, client := newRedisClient(t)

			cfg := testConfig
			cfg.SharedBlockRecheck = tt.recheck
			router := newRouter(t, ratelimit.New(&cfg, client, zap.NewNop()))

			require.Equal(t, http.StatusNoContent, doRequest(router, "6.6.6.6").Code)

			// Another instance blocks the client
			require.NoError(t, mr.Set("rl:block:6.6.6.6", "1"))
			mr.SetTTL("rl:block:6.6.6.6", 30*time.Second)

			time.Sleep(tt.wait)

			rec := doRequest(router, "6.6.6.6")
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusTooManyRequests {
				assert.Contains(t, rec.Body.String(), "temporarily blocked")
				assert.Equal(t, "30", rec.Header().Get("Retry-After"))
			}
		})
	}
}
