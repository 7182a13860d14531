package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/docsite/internal/core/domain"
	"github.com/vietddude/docsite/internal/core/retry"
	"github.com/vietddude/docsite/internal/health"
	"github.com/vietddude/docsite/internal/infra/storage"
	"github.com/vietddude/docsite/internal/infra/storage/memory"
	"github.com/vietddude/docsite/internal/repository"
)

var fastRetry = retry.Config{MaxAttempts: 2, InitialDelay: time.Microsecond, MaxDelay: time.Microsecond, BackoffMultiplier: 1}

func newTestServer(t *testing.T, opts Options) (*Server, *memory.MemoryStorage) {
	t.Helper()
	store := memory.NewMemoryStorage()
	users := repository.NewUsers(memory.NewUserStore(store), repository.WithRetry(fastRetry))
	posts := repository.NewPosts(memory.NewPostStore(store), repository.WithRetry(fastRetry))
	return NewServer(users, posts, opts), store
}

type response struct {
	Code int
	Body map[string]any
}

func do(t *testing.T, h http.Handler, method, path, body string) response {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := response{Code: rec.Code}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp.Body))
	}
	return resp
}

func createUser(t *testing.T, h http.Handler, email, name string) string {
	t.Helper()
	resp := do(t, h, http.MethodPost, "/users", `{"email":"`+email+`","name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body)
	return resp.Body["id"].(string)
}

func createPost(t *testing.T, h http.Handler, userID, slug string) string {
	t.Helper()
	body := `{"userId":"` + userID + `","title":"Getting started","content":"Install the CLI and run it.","slug":"` + slug + `"}`
	resp := do(t, h, http.MethodPost, "/posts", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body)
	return resp.Body["id"].(string)
}

func TestUserLifecycle(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	body := `{"email":"a@x.com","name":"A"}`
	created := do(t, h, http.MethodPost, "/users", body)
	require.Equal(t, http.StatusCreated, created.Code)
	id := created.Body["id"].(string)
	assert.Equal(t, "a@x.com", created.Body["email"])
	assert.Nil(t, created.Body["deletedAt"])

	dup := do(t, h, http.MethodPost, "/users", body)
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, "email", dup.Body["field"])
	assert.NotEmpty(t, dup.Body["error"])

	got := do(t, h, http.MethodGet, "/users/"+id, "")
	assert.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "A", got.Body["name"])

	deleted := do(t, h, http.MethodDelete, "/users/"+id, "")
	assert.Equal(t, http.StatusOK, deleted.Code)
	assert.NotNil(t, deleted.Body["deletedAt"])

	gone := do(t, h, http.MethodGet, "/users/"+id, "")
	assert.Equal(t, http.StatusNotFound, gone.Code)
	assert.NotEmpty(t, gone.Body["error"])

	again := do(t, h, http.MethodDelete, "/users/"+id, "")
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestUpdateUser(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	id := createUser(t, h, "a@x.com", "A")
	createUser(t, h, "b@x.com", "B")

	renamed := do(t, h, http.MethodPatch, "/users/"+id, `{"name":"Alice"}`)
	require.Equal(t, http.StatusOK, renamed.Code)
	assert.Equal(t, "Alice", renamed.Body["name"])
	assert.Equal(t, "a@x.com", renamed.Body["email"])

	taken := do(t, h, http.MethodPatch, "/users/"+id, `{"email":"b@x.com"}`)
	assert.Equal(t, http.StatusConflict, taken.Code)
	assert.Equal(t, "email", taken.Body["field"])

	invalid := do(t, h, http.MethodPatch, "/users/"+id, `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
	assert.Equal(t, "email", invalid.Body["field"])

	missing := do(t, h, http.MethodPatch, "/users/"+uuid.NewString(), `{"name":"X"}`)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestCreateUserValidation(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	resp := do(t, h, http.MethodPost, "/users", `{"email":"not-an-email","name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "email", resp.Body["field"])

	resp = do(t, h, http.MethodPost, "/users", `{"email":"a@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "name", resp.Body["field"])

	resp = do(t, h, http.MethodPost, "/users", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, msgInvalidBody, resp.Body["error"])
}

func TestMalformedIDIsNotFound(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	paths := map[string]string{
		"/users/abc":       "User with identifier 'abc' not found",
		"/posts/abc":       "Post with identifier 'abc' not found",
		"/users/abc/posts": "User with identifier 'abc' not found",
	}
	for path, msg := range paths {
		resp := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, resp.Code, path)
		assert.Equal(t, msg, resp.Body["error"], path)
	}
	resp := do(t, h, http.MethodPost, "/posts/abc/publish", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListUsersPagination(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		createUser(t, h, email, "User")
	}

	resp := do(t, h, http.MethodGet, "/users?page=1&pageSize=2", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, resp.Body["users"], 2)
	pg := resp.Body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pg["page"])
	assert.EqualValues(t, 2, pg["pageSize"])
	assert.EqualValues(t, 3, pg["total"])
	assert.EqualValues(t, 2, pg["totalPages"])

	resp = do(t, h, http.MethodGet, "/users?page=2&pageSize=2", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, resp.Body["users"], 1)

	resp = do(t, h, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, resp.Code)
	pg = resp.Body["pagination"].(map[string]any)
	assert.EqualValues(t, 10, pg["pageSize"])

	resp = do(t, h, http.MethodGet, "/users?page=1000000&pageSize=100", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Body["users"])

	for _, q := range []string{
		"page=0", "pageSize=0", "pageSize=101", "page=x", "pageSize=1.5",
		"page=4611686018427387905&pageSize=4",
		"page=9223372036854775807&pageSize=2",
	} {
		resp := do(t, h, http.MethodGet, "/users?"+q, "")
		assert.Equal(t, http.StatusBadRequest, resp.Code, q)
		assert.Equal(t, msgInvalidPagination, resp.Body["error"], q)
	}
}

func TestPostLifecycle(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	userID := createUser(t, h, "author@x.com", "Author")
	postID := createPost(t, h, userID, "getting-started")

	dup := do(t, h, http.MethodPost, "/posts",
		`{"userId":"`+userID+`","title":"Other","content":"Some other content.","slug":"getting-started"}`)
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, "slug", dup.Body["field"])

	orphan := do(t, h, http.MethodPost, "/posts",
		`{"userId":"`+uuid.NewString()+`","title":"Orphan","content":"Nobody wrote this.","slug":"orphan"}`)
	assert.Equal(t, http.StatusBadRequest, orphan.Code)
	assert.Equal(t, "userId", orphan.Body["field"])

	badSlug := do(t, h, http.MethodPost, "/posts",
		`{"userId":"`+userID+`","title":"Bad","content":"Content long enough.","slug":"Not A Slug"}`)
	assert.Equal(t, http.StatusBadRequest, badSlug.Code)
	assert.Equal(t, "slug", badSlug.Body["field"])

	list := do(t, h, http.MethodGet, "/posts", "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Empty(t, list.Body["posts"])

	published := do(t, h, http.MethodPost, "/posts/"+postID+"/publish", "")
	require.Equal(t, http.StatusOK, published.Code)
	assert.NotNil(t, published.Body["published"])

	list = do(t, h, http.MethodGet, "/posts", "")
	require.Equal(t, http.StatusOK, list.Code)
	posts := list.Body["posts"].([]any)
	require.Len(t, posts, 1)
	author := posts[0].(map[string]any)["author"].(map[string]any)
	assert.Equal(t, "Author", author["name"])
	assert.Equal(t, "author@x.com", author["email"])

	got := do(t, h, http.MethodGet, "/posts/"+postID, "")
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "getting-started", got.Body["slug"])
	assert.Equal(t, userID, got.Body["userId"])
	assert.NotNil(t, got.Body["author"])

	updated := do(t, h, http.MethodPatch, "/posts/"+postID, `{"title":"Quick start"}`)
	require.Equal(t, http.StatusOK, updated.Code)
	assert.Equal(t, "Quick start", updated.Body["title"])

	byUser := do(t, h, http.MethodGet, "/users/"+userID+"/posts", "")
	require.Equal(t, http.StatusOK, byUser.Code)
	assert.Len(t, byUser.Body["posts"], 1)

	deleted := do(t, h, http.MethodDelete, "/posts/"+postID, "")
	require.Equal(t, http.StatusOK, deleted.Code)
	assert.NotNil(t, deleted.Body["deletedAt"])

	gone := do(t, h, http.MethodGet, "/posts/"+postID, "")
	assert.Equal(t, http.StatusNotFound, gone.Code)
	assert.Equal(t, "Post not found", gone.Body["error"])

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/posts/"+postID+"/publish", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPatch, "/posts/"+postID, `{"title":"x"}`).Code)
}

func TestUserPostsForMissingUser(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	resp := do(t, s.Handler(), http.MethodGet, "/users/"+uuid.NewString()+"/posts", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

type brokenUserStore struct {
	storage.UserStore
}

func (brokenUserStore) List(context.Context, domain.Page) ([]*domain.User, error) {
	return nil, errors.New("relation \"users\" does not exist")
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	store := memory.NewMemoryStorage()
	users := repository.NewUsers(brokenUserStore{memory.NewUserStore(store)})
	posts := repository.NewPosts(memory.NewPostStore(store))
	s := NewServer(users, posts, Options{})

	resp := do(t, s.Handler(), http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "Failed to fetch users", resp.Body["error"])
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	resp := do(t, s.Handler(), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.NotEmpty(t, resp.Body["error"])
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{Limiter: NewLocalLimiter(0.001, 1)})
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/users", "").Code)

	resp := do(t, h, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, msgTooManyRequests, resp.Body["error"])
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestRateLimiterFailureLetsRequestsThrough(t *testing.T) {
	s, _ := newTestServer(t, Options{Limiter: failingLimiter{}})
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/users", "").Code)
}

func TestLocalLimiterForgetsIdleClients(t *testing.T) {
	l := NewLocalLimiter(1, 1)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.Allow(context.Background(), "10.0.0.1")
	assert.False(t, ok)

	now = now.Add(2 * localLimiterIdle)
	ok, _ = l.Allow(context.Background(), "10.0.0.2")
	assert.True(t, ok)
	assert.Len(t, l.clients, 1)
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func TestHealthRoutes(t *testing.T) {
	monitor := health.NewMonitor(0).AddRequired("database", okPinger{})
	s, _ := newTestServer(t, Options{Health: health.Handler(monitor)})
	h := s.Handler()

	resp := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "healthy", resp.Body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docsite_http_requests_total")
}
