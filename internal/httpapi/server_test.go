package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/collab"
	"github.com/BetselotB/idea-plate/internal/config"
	"github.com/BetselotB/idea-plate/internal/engagement"
	"github.com/BetselotB/idea-plate/internal/events"
	"github.com/BetselotB/idea-plate/internal/ideas"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/models"
	"github.com/BetselotB/idea-plate/internal/profiles"
	"github.com/BetselotB/idea-plate/internal/storage"
)

const (
	adaToken = "ada-token"
	bobToken = "bob-token"
)

func testServices(t *testing.T) Services {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus, err := events.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	return Services{
		Ideas:      ideas.NewService(store),
		Engagement: engagement.NewService(store, bus, nil),
		Collab:     collab.NewService(store, nil),
		Profiles:   profiles.NewService(store, nil, 0),
		Auth: identity.NewTokenTable([]config.TokenConfig{
			{Token: adaToken, UID: "ada", Email: "ada@example.com", DisplayName: "Ada", EmailVerified: true},
			{Token: bobToken, UID: "bob", Email: "bob@example.com", DisplayName: "Bob", EmailVerified: true},
		}),
		Checks: map[string]func(context.Context) error{"storage": store.Ping},
	}
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(testServices(t), zap.NewNop(), config.HTTPConfig{Host: "127.0.0.1", Port: 0},
		WithHeartbeat(50*time.Millisecond))
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createIdea(t *testing.T, srv *Server, token, title string) models.Idea {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/v1/ideas", token, CreateIdeaRequest{
		Title:       title,
		Description: "A description for " + title,
		Category:    models.CategoryApp,
		Tags:        []string{"go"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Idea](t, rec)
}

func TestNewServer(t *testing.T) {
	t.Run("requires services", func(t *testing.T) {
		_, err := NewServer(Services{}, nil, config.HTTPConfig{})
		assert.Error(t, err)
	})
	t.Run("requires authenticator", func(t *testing.T) {
		svc := testServices(t)
		svc.Auth = nil
		_, err := NewServer(svc, nil, config.HTTPConfig{})
		assert.Error(t, err)
	})
}

func TestHealth(t *testing.T) {
	svc := testServices(t)
	srv, err := NewServer(svc, nil, config.HTTPConfig{})
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)

	svc.Checks["events"] = func(context.Context) error { return errors.New("disconnected") }
	srv, err = NewServer(svc, nil, config.HTTPConfig{})
	require.NoError(t, err)
	rec = do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "disconnected", resp.Checks["events"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupTestServer(t)
	do(t, srv, http.MethodGet, "/api/v1/ideas", "", nil)
	rec := do(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ideaplate_http_request_duration_seconds")
}

func TestAuthentication(t *testing.T) {
	srv := setupTestServer(t)

	t.Run("anonymous write is unauthorized", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/v1/ideas", "", CreateIdeaRequest{Title: "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, ErrCodeUnauthorized, decode[ErrorResponse](t, rec).Error.Code)
	})
	t.Run("unknown token is rejected", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/v1/ideas", "nope", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("malformed header is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ideas", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("me", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/v1/me", adaToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		me := decode[MeResponse](t, rec)
		assert.Equal(t, "ada", me.Caller.UID)
		assert.Equal(t, "Ada", me.Profile.DisplayName)
	})
}

func TestIdeaLifecycle(t *testing.T) {
	srv := setupTestServer(t)
	idea := createIdea(t, srv, adaToken, "Plant tracker")
	assert.Equal(t, "ada", idea.AuthorID)
	assert.Equal(t, "Ada", idea.AuthorName)
	assert.Equal(t, []string{"go"}, idea.Tags)

	rec := do(t, srv, http.MethodGet, "/api/v1/ideas/"+idea.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, idea.Title, decode[models.Idea](t, rec).Title)

	title := "Plant tracker 2"
	rec = do(t, srv, http.MethodPatch, "/api/v1/ideas/"+idea.ID, bobToken, models.IdeaPatch{Title: &title})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ErrCodeForbidden, decode[ErrorResponse](t, rec).Error.Code)

	rec = do(t, srv, http.MethodPatch, "/api/v1/ideas/"+idea.ID, adaToken, models.IdeaPatch{Title: &title})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[models.Idea](t, rec)
	assert.Equal(t, title, updated.Title)
	assert.True(t, updated.UpdatedAt.After(idea.UpdatedAt))

	rec = do(t, srv, http.MethodDelete, "/api/v1/ideas/"+idea.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, srv, http.MethodDelete, "/api/v1/ideas/"+idea.ID, adaToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/ideas/"+idea.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrCodeNotFound, decode[ErrorResponse](t, rec).Error.Code)
}

func TestCreateIdeaValidation(t *testing.T) {
	srv := setupTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/v1/ideas", adaToken, CreateIdeaRequest{
		Title:    strings.Repeat("x", models.MaxTitleLen+1),
		Category: models.CategoryApp,
		Tags:     []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeBadRequest, decode[ErrorResponse](t, rec).Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ideas", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adaToken)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeed(t *testing.T) {
	srv := setupTestServer(t)
	createIdea(t, srv, adaToken, "Banana app")
	createIdea(t, srv, adaToken, "Apple app")
	createIdea(t, srv, bobToken, "Cherry app")

	rec := do(t, srv, http.MethodGet, "/api/v1/ideas?sort_by=alphabetical", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.Idea](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "Apple app", list[0].Title)

	rec = do(t, srv, http.MethodGet, "/api/v1/ideas?search=CHERRY", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Idea](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/v1/users/ada/ideas", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Idea](t, rec), 2)

	rec = do(t, srv, http.MethodGet, "/api/v1/ideas?sort_by=random", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/v1/ideas?category=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLikesAndComments(t *testing.T) {
	srv := setupTestServer(t)
	idea := createIdea(t, srv, adaToken, "Likeable")
	likes := "/api/v1/ideas/" + idea.ID + "/likes"

	rec := do(t, srv, http.MethodPut, likes, bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, LikeState{IdeaID: idea.ID, Count: 1, Liked: true}, decode[LikeState](t, rec))

	rec = do(t, srv, http.MethodPut, likes, bobToken, nil)
	assert.Equal(t, 1, decode[LikeState](t, rec).Count)

	rec = do(t, srv, http.MethodGet, likes, "", nil)
	assert.Equal(t, LikeState{IdeaID: idea.ID, Count: 1}, decode[LikeState](t, rec))

	rec = do(t, srv, http.MethodDelete, likes, bobToken, nil)
	assert.Equal(t, LikeState{IdeaID: idea.ID}, decode[LikeState](t, rec))

	rec = do(t, srv, http.MethodPut, "/api/v1/ideas/missing/likes", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	comments := "/api/v1/ideas/" + idea.ID + "/comments"
	rec = do(t, srv, http.MethodPost, comments, bobToken, AddCommentRequest{Text: "Nice"})
	require.Equal(t, http.StatusCreated, rec.Code)
	commentID := decode[map[string]string](t, rec)["id"]
	require.NotEmpty(t, commentID)

	rec = do(t, srv, http.MethodPost, comments, bobToken, AddCommentRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, comments, "", nil)
	list := decode[[]models.Comment](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Bob", list[0].AuthorName)

	rec = do(t, srv, http.MethodGet, "/api/v1/ideas/"+idea.ID, "", nil)
	got := decode[models.Idea](t, rec)
	assert.Equal(t, 1, got.Comments)

	rec = do(t, srv, http.MethodDelete, comments+"/"+commentID, adaToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, srv, http.MethodDelete, comments+"/"+commentID, bobToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, srv, http.MethodDelete, comments+"/"+commentID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollaborationFlow(t *testing.T) {
	srv := setupTestServer(t)
	idea := createIdea(t, srv, adaToken, "Team project")

	rec := do(t, srv, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/collab-requests", bobToken,
		CollabRequestBody{RequesterGitHub: "https://github.com/bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decode[models.CollaborationRequest](t, rec)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, "Bob", req.RequesterName)

	rec = do(t, srv, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/collab-requests", adaToken, CollabRequestBody{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/collab-requests", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.CollaborationRequest](t, rec), 1)

	rec = do(t, srv, http.MethodPost, "/api/v1/collab-requests/"+req.ID+"/accept", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/collab-requests/"+req.ID+"/accept", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accepted := decode[models.Idea](t, rec)
	require.Len(t, accepted.Collaborators, 1)
	assert.Equal(t, "bob", accepted.Collaborators[0].UserID)

	rec = do(t, srv, http.MethodPost, "/api/v1/collab-requests/"+req.ID+"/reject", adaToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileRenameUpdatesIdeas(t *testing.T) {
	srv := setupTestServer(t)
	idea := createIdea(t, srv, adaToken, "Renamed")

	name := "Ada Lovelace"
	rec := do(t, srv, http.MethodPut, "/api/v1/me/profile", adaToken, models.ProfileFields{DisplayName: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ProfileUpdateResponse](t, rec)
	assert.Equal(t, name, resp.Profile.DisplayName)
	assert.False(t, resp.ResyncRequired)

	rec = do(t, srv, http.MethodGet, "/api/v1/ideas/"+idea.ID, "", nil)
	assert.Equal(t, name, decode[models.Idea](t, rec).AuthorName)

	rec = do(t, srv, http.MethodGet, "/api/v1/users/ada/profile", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, name, decode[models.UserProfile](t, rec).DisplayName)

	rec = do(t, srv, http.MethodPost, "/api/v1/me/profile/resync", adaToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/users/nobody/profile", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGitHubRoutesRequireLinker(t *testing.T) {
	srv := setupTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/v1/me/github/link", adaToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitWrites(t *testing.T) {
	srv, err := NewServer(testServices(t), nil, config.HTTPConfig{RateLimit: 0.001, RateBurst: 2})
	require.NoError(t, err)

	idea := createIdea(t, srv, adaToken, "Throttled")
	likes := "/api/v1/ideas/" + idea.ID + "/likes"
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPut, likes, adaToken, nil).Code)
	rec := do(t, srv, http.MethodPut, likes, adaToken, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, ErrCodeRateLimited, decode[ErrorResponse](t, rec).Error.Code)

	// Reads and other callers are unaffected.
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, likes, adaToken, nil).Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPut, likes, bobToken, nil).Code)
}

func TestLikeStream(t *testing.T) {
	srv := setupTestServer(t)
	idea := createIdea(t, srv, adaToken, "Streamed")

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/ideas/"+idea.ID+"/likes/stream", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	snaps := readEvents(t, resp.Body)

	first := <-snaps
	assert.Equal(t, 0, first.Count)

	rec := do(t, srv, http.MethodPut, "/api/v1/ideas/"+idea.ID+"/likes", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case snap := <-snaps:
		assert.Equal(t, 1, snap.Count)
		require.Len(t, snap.Likes, 1)
		assert.Equal(t, "bob", snap.Likes[0].UserID)
	case <-ctx.Done():
		t.Fatal("no snapshot after like")
	}
}

func TestStreamMissingIdea(t *testing.T) {
	srv := setupTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/v1/ideas/missing/comments/stream", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// readEvents parses "likes" SSE events from body, skipping heartbeats.
func readEvents(t *testing.T, body io.Reader) <-chan engagement.LikeSnapshot {
	t.Helper()
	out := make(chan engagement.LikeSnapshot, 8)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var snap engagement.LikeSnapshot
			if json.Unmarshal([]byte(data), &snap) == nil {
				out <- snap
			}
		}
	}()
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		signedIn bool
		status   int
		code     string
		message  string
	}{
		{"validation", apperr.Validation("title is required"), true, http.StatusBadRequest, ErrCodeBadRequest, "validation error: title is required"},
		{"auth anonymous", apperr.Auth("sign in first"), false, http.StatusUnauthorized, ErrCodeUnauthorized, ""},
		{"auth signed in", apperr.Auth("not the author"), true, http.StatusForbidden, ErrCodeForbidden, ""},
		{"not found", apperr.NotFound("idea", "x"), false, http.StatusNotFound, ErrCodeNotFound, ""},
		{"store keeps its message", apperr.Store("insert idea", errors.New("disk I/O error")), true,
			http.StatusInternalServerError, ErrCodeInternal, ""},
		{"watch unavailable", engagement.ErrWatchUnavailable, false, http.StatusServiceUnavailable, ErrCodeUnavailable, ""},
		{"unclassified", errors.New("boom"), false, http.StatusInternalServerError, ErrCodeInternal, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := classify(tt.err, tt.signedIn)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
			want := tt.message
			if want == "" {
				want = tt.err.Error()
			}
			assert.Equal(t, want, body.Message)
		})
	}
	_, body := classify(apperr.Store("insert idea", errors.New("disk I/O error")), true)
	assert.Contains(t, body.Message, "disk I/O error")
}

func TestStoreFailureMessage(t *testing.T) {
	svc := testServices(t)
	broken, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, broken.Close())
	svc.Ideas = ideas.NewService(broken)

	srv, err := NewServer(svc, nil, config.HTTPConfig{})
	require.NoError(t, err)
	rec := do(t, srv, http.MethodGet, "/api/v1/ideas", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, ErrCodeInternal, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "list ideas")
	assert.NotEqual(t, "internal error", resp.Error.Message)
}
