package server_test

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/pointboard/forum/internal/database"
	"github.com/pointboard/forum/internal/database/dbtest"
	"github.com/pointboard/forum/internal/redis"
	"github.com/pointboard/forum/internal/server"
	"github.com/pointboard/forum/internal/session"
	"github.com/pointboard/forum/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	mr       *miniredis.Miniredis
	client   database.Client
	sessions *session.Store
	server   *server.Server
}

func newFixture(t *testing.T, rateLimit config.RateLimit) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	manager := redis.NewManager(&config.Redis{Host: mr.Host(), Port: port, DisableCache: true}, zap.NewNop())
	t.Cleanup(manager.Close)

	sessionClient, err := manager.GetClient(redis.SessionDBIndex)
	require.NoError(t, err)
	blockClient, err := manager.GetClient(redis.RatelimitDBIndex)
	require.NoError(t, err)

	client := dbtest.New(t)
	sessions := session.NewStore(sessionClient, time.Hour, zap.NewNop())

	srv, err := server.New(server.Dependencies{
		DB:       client,
		Sessions: sessions,
		Redis:    manager,
		Blocks:   blockClient,
	}, zap.NewNop(), &config.APIConfig{
		Session:    config.Session{CookieName: "qid"},
		RateLimit:  rateLimit,
		IP:         config.IPConfig{AllowLocalIPs: true},
		Playground: true,
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	return &fixture{mr: mr, client: client, sessions: sessions, server: srv}
}

var relaxed = config.RateLimit{RequestsPerSecond: 1000, BurstSize: 1000, StrikeLimit: 10, BlockDuration: 60}

func graphqlRequest(query, token string) *http.Request {
	body, _ := sonic.Marshal(map[string]any{"query": query})
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "qid", Value: token})
	}
	return req
}

func TestSessionCookieAuthenticates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relaxed)
	user := dbtest.CreateUser(t, f.client, "cookie")

	token, err := f.sessions.Create(t.Context(), user.ID)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, graphqlRequest(`{ me { username } }`, token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), user.Username)

	// Revoked sessions fall back to anonymous
	require.NoError(t, f.sessions.Delete(t.Context(), token))

	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, graphqlRequest(`{ me { username } }`, token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"me":null}}`, rec.Body.String())
}

func TestBearerTokenAuthenticates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relaxed)
	user := dbtest.CreateUser(t, f.client, "bearer")

	token, err := f.sessions.Create(t.Context(), user.ID)
	require.NoError(t, err)

	req := graphqlRequest(`mutation { createPost(input: {title: "t", text: "x"}) { creatorId } }`, "")
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"createPost":{"creatorId":`+strconv.FormatInt(user.ID, 10)+`}}}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relaxed)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok","redis":"ok"}`, rec.Body.String())

	require.NoError(t, f.client.Close())

	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","database":"down","redis":"ok"}`, rec.Body.String())
}

func TestRateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.RateLimit{RequestsPerSecond: 0.001, BurstSize: 1, StrikeLimit: 5, BlockDuration: 60})

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, graphqlRequest(`{ me { id } }`, ""))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, graphqlRequest(`{ me { id } }`, ""))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Health checks are not rate limited
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResponsesAreCompressed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relaxed)
	user := dbtest.CreateUser(t, f.client, "gzip")
	post := dbtest.CreatePost(t, f.client, user, "long", strings.Repeat("lorem ipsum ", 500))

	req := graphqlRequest(`{ post(id: `+strconv.FormatInt(post.ID, 10)+`) { text } }`, "")
	req.Header.Set("Accept-Encoding", "gzip")

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	reader, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(body), "lorem ipsum")
}
