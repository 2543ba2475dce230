package graphql_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pointboard/forum/internal/api/middleware/auth"
	"github.com/pointboard/forum/internal/database"
	"github.com/pointboard/forum/internal/database/dbtest"
	"github.com/pointboard/forum/internal/database/types"
	"github.com/pointboard/forum/internal/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type gqlError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions"`
}

type gqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []gqlError     `json:"errors"`
}

type testServer struct {
	client  database.Client
	handler *graphql.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	client := dbtest.New(t)
	handler, err := graphql.NewHandler(client, zap.NewNop(), true)
	require.NoError(t, err)

	return &testServer{client: client, handler: handler}
}

// exec runs a query as userID, or anonymously when userID is zero.
func (s *testServer) exec(t *testing.T, userID int64, query string, variables map[string]any) gqlResponse {
	t.Helper()

	body, err := sonic.Marshal(graphql.Request{Query: query, Variables: variables})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp gqlResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func field(t *testing.T, data map[string]any, path ...string) any {
	t.Helper()

	var current any = data
	for _, key := range path {
		obj, ok := current.(map[string]any)
		require.True(t, ok, "expected object at %q", key)
		current = obj[key]
	}
	return current
}

const postFields = `id title text points creatorId createdAt updatedAt textSnippet voteStatus creator { id username email }`

func TestMutationsRequireAuthentication(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	creator := dbtest.CreateUser(t, s.client, "owner")
	post := dbtest.CreatePost(t, s.client, creator, "title", "text")

	mutations := map[string]string{
		"createPost": `mutation { createPost(input: {title: "a", text: "b"}) { id } }`,
		"updatePost": `mutation { updatePost(id: ` + strconv.FormatInt(post.ID, 10) + `, title: "x") { id } }`,
		"deletePost": `mutation { deletePost(id: ` + strconv.FormatInt(post.ID, 10) + `) }`,
		"vote":       `mutation { vote(postId: ` + strconv.FormatInt(post.ID, 10) + `, value: true) }`,
	}

	for name, mutation := range mutations {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp := s.exec(t, 0, mutation, nil)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, "not authenticated", resp.Errors[0].Message)
			assert.Equal(t, graphql.CodeUnauthenticated, resp.Errors[0].Extensions["code"])
		})
	}

	points, err := s.client.Model().Post().GetPoints(t.Context(), post.ID)
	require.NoError(t, err)
	assert.Zero(t, points)
}

func TestCreateAndFetchPost(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	user := dbtest.CreateUser(t, s.client, "author")
	long := strings.Repeat("a", 60)

	resp := s.exec(t, user.ID, `mutation($input: PostInput!) { createPost(input: $input) { `+postFields+` } }`,
		map[string]any{"input": map[string]any{"title": "  Hello  ", "text": long}})
	require.Empty(t, resp.Errors)

	created := field(t, resp.Data, "createPost").(map[string]any)
	assert.Equal(t, "Hello", created["title"])
	assert.Equal(t, long, created["text"])
	assert.Equal(t, strings.Repeat("a", 50)+"...", created["textSnippet"])
	assert.InDelta(t, 0, created["points"], 0)
	assert.InDelta(t, float64(user.ID), created["creatorId"], 0)
	assert.Nil(t, created["voteStatus"])
	assert.Equal(t, user.Username, field(t, created, "creator", "username"))
	assert.Equal(t, user.Email, field(t, created, "creator", "email"))

	createdAt, err := types.DecodeCursor(created["createdAt"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), createdAt, time.Minute)

	// Someone else sees the post without the creator's email
	other := dbtest.CreateUser(t, s.client, "reader")
	id := created["id"]
	resp = s.exec(t, other.ID, `query($id: Int!) { post(id: $id) { `+postFields+` } }`, map[string]any{"id": id})
	require.Empty(t, resp.Errors)
	assert.Equal(t, "Hello", field(t, resp.Data, "post", "title"))
	assert.Empty(t, field(t, resp.Data, "post", "creator", "email"))

	resp = s.exec(t, 0, `{ post(id: 999999) { id } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Nil(t, resp.Data["post"])
}

func TestCreatePostValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	user := dbtest.CreateUser(t, s.client, "author")

	resp := s.exec(t, user.ID, `mutation { createPost(input: {title: "   ", text: "body"}) { id } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, graphql.CodeBadUserInput, resp.Errors[0].Extensions["code"])
}

func TestFeedQuery(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	author := dbtest.CreateUser(t, s.client, "author")
	viewer := dbtest.CreateUser(t, s.client, "viewer")

	var posts []*types.Post
	for i := range 3 {
		posts = append(posts, dbtest.CreatePost(t, s.client, author, "post "+strconv.Itoa(i), "text"))
		time.Sleep(2 * time.Millisecond)
	}

	up, down := true, false
	require.NoError(t, s.client.Service().Vote().Vote(t.Context(), viewer.ID, posts[2].ID, &up))
	require.NoError(t, s.client.Service().Vote().Vote(t.Context(), viewer.ID, posts[1].ID, &down))

	const query = `query($limit: Int!, $cursor: String) { posts(limit: $limit, cursor: $cursor) { hasMore posts { ` + postFields + ` } } }`

	resp := s.exec(t, viewer.ID, query, map[string]any{"limit": 2})
	require.Empty(t, resp.Errors)

	page := field(t, resp.Data, "posts").(map[string]any)
	assert.Equal(t, true, page["hasMore"])
	items := page["posts"].([]any)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	second := items[1].(map[string]any)
	assert.InDelta(t, float64(posts[2].ID), first["id"], 0)
	assert.Equal(t, true, first["voteStatus"])
	assert.InDelta(t, 1, first["points"], 0)
	assert.Equal(t, false, second["voteStatus"])
	assert.InDelta(t, -1, second["points"], 0)
	assert.Equal(t, author.Username, field(t, first, "creator", "username"))

	resp = s.exec(t, viewer.ID, query, map[string]any{"limit": 2, "cursor": second["createdAt"]})
	require.Empty(t, resp.Errors)
	page = field(t, resp.Data, "posts").(map[string]any)
	assert.Equal(t, false, page["hasMore"])
	items = page["posts"].([]any)
	require.Len(t, items, 1)
	assert.InDelta(t, float64(posts[0].ID), items[0].(map[string]any)["id"], 0)
	assert.Nil(t, items[0].(map[string]any)["voteStatus"])

	// Anonymous callers get no vote annotation
	resp = s.exec(t, 0, query, map[string]any{"limit": 5})
	require.Empty(t, resp.Errors)
	for _, item := range field(t, resp.Data, "posts", "posts").([]any) {
		assert.Nil(t, item.(map[string]any)["voteStatus"])
	}

	resp = s.exec(t, 0, query, map[string]any{"limit": 5, "cursor": "yesterday"})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, graphql.CodeBadUserInput, resp.Errors[0].Extensions["code"])
}

func TestVoteMutation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	author := dbtest.CreateUser(t, s.client, "author")
	voter := dbtest.CreateUser(t, s.client, "voter")
	post := dbtest.CreatePost(t, s.client, author, "title", "text")

	const mutation = `mutation($postId: Int!, $value: Boolean) { vote(postId: $postId, value: $value) }`

	steps := []struct {
		value      any
		wantPoints int
		wantStatus any
	}{
		{value: true, wantPoints: 1, wantStatus: true},
		{value: true, wantPoints: 1, wantStatus: true},
		{value: false, wantPoints: -1, wantStatus: false},
		{value: nil, wantPoints: 0, wantStatus: nil},
	}

	for _, step := range steps {
		resp := s.exec(t, voter.ID, mutation, map[string]any{"postId": post.ID, "value": step.value})
		require.Empty(t, resp.Errors)
		assert.Equal(t, true, resp.Data["vote"])

		resp = s.exec(t, voter.ID, `query($id: Int!) { post(id: $id) { points voteStatus } }`, map[string]any{"id": post.ID})
		require.Empty(t, resp.Errors)
		assert.InDelta(t, float64(step.wantPoints), field(t, resp.Data, "post", "points"), 0)
		assert.Equal(t, step.wantStatus, field(t, resp.Data, "post", "voteStatus"))
	}

	// Missing post is a successful no-op
	resp := s.exec(t, voter.ID, mutation, map[string]any{"postId": 424242, "value": true})
	require.Empty(t, resp.Errors)
	assert.Equal(t, true, resp.Data["vote"])
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	owner := dbtest.CreateUser(t, s.client, "owner")
	stranger := dbtest.CreateUser(t, s.client, "stranger")
	post := dbtest.CreatePost(t, s.client, owner, "original", "body")

	const update = `mutation($id: Int!, $title: String) { updatePost(id: $id, title: $title) { title text } }`
	const del = `mutation($id: Int!) { deletePost(id: $id) }`

	resp := s.exec(t, stranger.ID, update, map[string]any{"id": post.ID, "title": "hijacked"})
	require.Empty(t, resp.Errors)
	assert.Nil(t, resp.Data["updatePost"])

	resp = s.exec(t, owner.ID, update, map[string]any{"id": post.ID, "title": "edited"})
	require.Empty(t, resp.Errors)
	assert.Equal(t, "edited", field(t, resp.Data, "updatePost", "title"))
	assert.Equal(t, "body", field(t, resp.Data, "updatePost", "text"))

	resp = s.exec(t, stranger.ID, del, map[string]any{"id": post.ID})
	require.Empty(t, resp.Errors)
	assert.Equal(t, false, resp.Data["deletePost"])

	resp = s.exec(t, owner.ID, del, map[string]any{"id": post.ID})
	require.Empty(t, resp.Errors)
	assert.Equal(t, true, resp.Data["deletePost"])

	resp = s.exec(t, owner.ID, del, map[string]any{"id": post.ID})
	require.Empty(t, resp.Errors)
	assert.Equal(t, false, resp.Data["deletePost"])
}

func TestMeQuery(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	user := dbtest.CreateUser(t, s.client, "me")

	resp := s.exec(t, 0, `{ me { id } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Nil(t, resp.Data["me"])

	resp = s.exec(t, user.ID, `{ me { id username email } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, user.Username, field(t, resp.Data, "me", "username"))
	assert.Equal(t, user.Email, field(t, resp.Data, "me", "email"))
}

func TestStoreFailureIsGeneric(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	user := dbtest.CreateUser(t, s.client, "author")
	require.NoError(t, s.client.Close())

	resp := s.exec(t, user.ID, `{ posts(limit: 5) { hasMore } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "internal server error", resp.Errors[0].Message)
	assert.Equal(t, graphql.CodeInternal, resp.Errors[0].Extensions["code"])
}

func TestHandlerHTTP(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantCode    int
	}{
		{name: "playground", method: http.MethodGet, wantCode: http.StatusOK},
		{name: "wrong method", method: http.MethodPut, wantCode: http.StatusMethodNotAllowed},
		{name: "wrong content type", method: http.MethodPost, contentType: "text/plain", body: "{}", wantCode: http.StatusUnsupportedMediaType},
		{name: "malformed body", method: http.MethodPost, contentType: "application/json", body: "{", wantCode: http.StatusBadRequest},
		{name: "missing query", method: http.MethodPost, contentType: "application/json", body: "{}", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, "/graphql", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestPlaygroundDisabled(t *testing.T) {
	t.Parallel()

	handler, err := graphql.NewHandler(dbtest.New(t), zap.NewNop(), false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphql", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
