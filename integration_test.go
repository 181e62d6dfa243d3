package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/BetselotB/idea-plate/internal/collab"
	"github.com/BetselotB/idea-plate/internal/config"
	"github.com/BetselotB/idea-plate/internal/engagement"
	"github.com/BetselotB/idea-plate/internal/ideas"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/models"
	"github.com/BetselotB/idea-plate/internal/profiles"
	"github.com/BetselotB/idea-plate/internal/server"
	"github.com/BetselotB/idea-plate/internal/storage"
	"github.com/BetselotB/idea-plate/internal/tools"
)

// setupDeps opens a store in a temp dir and builds the services.
func setupDeps(t *testing.T) server.Deps {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return server.Deps{
		Ideas:      ideas.NewService(store),
		Engagement: engagement.NewService(store, nil, nil),
		Collab:     collab.NewService(store, nil),
		Profiles:   profiles.NewService(store, nil, 0),
		Auth: identity.NewTokenTable([]config.TokenConfig{
			{Token: "ada-token", UID: "ada", Email: "ada@example.com", DisplayName: "Ada", EmailVerified: true},
			{Token: "bob-token", UID: "bob", Email: "bob@example.com", DisplayName: "Bob", EmailVerified: true},
			{Token: "eve-token", UID: "eve", Email: "eve@example.com", DisplayName: "Eve"},
		}),
		Version: "test",
	}
}

// connect creates a real MCP server over in-memory transport and returns a
// connected client session.
func connect(t *testing.T, deps server.Deps) *mcp.ClientSession {
	t.Helper()

	srv := server.New(deps, nil)

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	if _, err := srv.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

// signedIn connects and signs in with token.
func signedIn(t *testing.T, deps server.Deps, token string) *mcp.ClientSession {
	t.Helper()
	session := connect(t, deps)
	callTool(t, session, "sign_in", map[string]any{"token": token})
	return session
}

// callTool is a helper that calls a tool and returns the text content.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
	}
	return tc.Text
}

func callToolExpectError(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): protocol error: %v", name, err)
	}
	if !result.IsError {
		tc := result.Content[0].(*mcp.TextContent)
		t.Fatalf("CallTool(%s): expected error but got success: %s", name, tc.Text)
	}
	tc := result.Content[0].(*mcp.TextContent)
	return tc.Text
}

func decode[T any](t *testing.T, name, text string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return v
}

func createIdea(t *testing.T, session *mcp.ClientSession, title string) models.Idea {
	t.Helper()
	text := callTool(t, session, "create_idea", map[string]any{
		"title":       title,
		"description": "Description of " + title,
		"category":    "app-idea",
		"tags":        []any{"go", "mcp"},
	})
	return decode[models.Idea](t, "create_idea", text)
}

func TestIntegration_ListTools(t *testing.T) {
	session := connect(t, setupDeps(t))

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	expectedTools := []string{
		"sign_in", "whoami", "get_profile", "update_profile",
		"create_idea", "get_idea", "update_idea", "delete_idea",
		"list_ideas", "list_author_ideas",
		"like_idea", "unlike_idea", "get_likes",
		"add_comment", "list_comments", "delete_comment",
		"request_collaboration", "list_collab_requests",
		"accept_collab_request", "reject_collab_request",
	}

	toolNames := make(map[string]bool)
	for _, tool := range result.Tools {
		toolNames[tool.Name] = true
	}

	for _, name := range expectedTools {
		if !toolNames[name] {
			t.Errorf("Missing tool: %s", name)
		}
	}

	if len(result.Tools) != len(expectedTools) {
		t.Errorf("Expected %d tools, got %d", len(expectedTools), len(result.Tools))
	}
}

func TestIntegration_FullWorkflow(t *testing.T) {
	deps := setupDeps(t)
	ada := signedIn(t, deps, "ada-token")
	bob := signedIn(t, deps, "bob-token")

	// Step 1: whoami reflects the session's caller
	text := callTool(t, ada, "whoami", nil)
	account := decode[tools.Account](t, "whoami", text)
	if account.Caller.UID != "ada" {
		t.Errorf("whoami uid = %q, want %q", account.Caller.UID, "ada")
	}
	if account.Profile.DisplayName != "Ada" {
		t.Errorf("profile name = %q, want %q", account.Profile.DisplayName, "Ada")
	}

	// Step 2: create_idea
	idea := createIdea(t, ada, "Seed swap")
	if idea.AuthorName != "Ada" {
		t.Errorf("author name = %q, want %q", idea.AuthorName, "Ada")
	}
	if len(idea.Tags) != 2 {
		t.Errorf("expected 2 tags, got %d", len(idea.Tags))
	}

	// Step 3: update_idea
	text = callTool(t, ada, "update_idea", map[string]any{
		"id":                   idea.ID,
		"collaboration_status": "lfp",
	})
	updated := decode[models.Idea](t, "update_idea", text)
	if updated.CollaborationStatus != models.StatusLookingForPartner {
		t.Errorf("collaboration status = %q, want lfp", updated.CollaborationStatus)
	}
	if !updated.UpdatedAt.After(idea.UpdatedAt) {
		t.Error("updated_at did not advance")
	}

	// Step 4: like_idea is idempotent
	callTool(t, bob, "like_idea", map[string]any{"idea_id": idea.ID})
	text = callTool(t, bob, "like_idea", map[string]any{"idea_id": idea.ID})
	state := decode[tools.LikeState](t, "like_idea", text)
	if state.Count != 1 || !state.Liked {
		t.Errorf("like state = %+v, want count 1 liked", state)
	}
	text = callTool(t, ada, "get_likes", map[string]any{"idea_id": idea.ID})
	state = decode[tools.LikeState](t, "get_likes", text)
	if state.Count != 1 || state.Liked {
		t.Errorf("ada like state = %+v, want count 1 not liked", state)
	}

	// Step 5: comments
	text = callTool(t, bob, "add_comment", map[string]any{"idea_id": idea.ID, "text": "Count me in"})
	commentID := decode[map[string]string](t, "add_comment", text)["id"]
	callTool(t, ada, "add_comment", map[string]any{"idea_id": idea.ID, "text": "Thanks!"})

	text = callTool(t, ada, "list_comments", map[string]any{"idea_id": idea.ID})
	comments := decode[[]models.Comment](t, "list_comments", text)
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[0].ID != commentID || comments[0].AuthorName != "Bob" {
		t.Errorf("first comment = %+v, want bob's", comments[0])
	}

	text = callTool(t, ada, "get_idea", map[string]any{"id": idea.ID})
	got := decode[models.Idea](t, "get_idea", text)
	if got.Likes != 1 || got.Comments != 2 {
		t.Errorf("counts = %d likes %d comments, want 1 and 2", got.Likes, got.Comments)
	}

	// Step 6: collaboration request and accept
	text = callTool(t, bob, "request_collaboration", map[string]any{
		"idea_id":          idea.ID,
		"requester_github": "https://github.com/bob",
	})
	req := decode[models.CollaborationRequest](t, "request_collaboration", text)
	if req.Status != models.RequestPending {
		t.Errorf("request status = %q, want pending", req.Status)
	}

	text = callTool(t, ada, "list_collab_requests", nil)
	reqs := decode[[]models.CollaborationRequest](t, "list_collab_requests", text)
	if len(reqs) != 1 || reqs[0].ID != req.ID {
		t.Fatalf("list_collab_requests = %+v", reqs)
	}

	text = callTool(t, ada, "accept_collab_request", map[string]any{"request_id": req.ID})
	accepted := decode[models.Idea](t, "accept_collab_request", text)
	if len(accepted.Collaborators) != 1 || accepted.Collaborators[0].GitHub != "https://github.com/bob" {
		t.Errorf("collaborators = %+v", accepted.Collaborators)
	}

	// Step 7: rename fans out to the idea
	text = callTool(t, ada, "update_profile", map[string]any{"display_name": "Ada L."})
	update := decode[tools.ProfileUpdate](t, "update_profile", text)
	if update.ResyncRequired {
		t.Error("rename left stale ideas")
	}
	text = callTool(t, bob, "list_author_ideas", map[string]any{"author_id": "ada"})
	list := decode[[]models.Idea](t, "list_author_ideas", text)
	if len(list) != 1 || list[0].AuthorName != "Ada L." {
		t.Errorf("author ideas = %+v", list)
	}

	// Step 8: delete
	text = callTool(t, ada, "delete_idea", map[string]any{"id": idea.ID})
	if !strings.Contains(text, "deleted") {
		t.Errorf("unexpected delete_idea output: %s", text)
	}
	text = callTool(t, bob, "list_ideas", nil)
	if list := decode[[]models.Idea](t, "list_ideas", text); len(list) != 0 {
		t.Errorf("expected empty feed, got %d ideas", len(list))
	}
}

func TestIntegration_FeedFilters(t *testing.T) {
	deps := setupDeps(t)
	ada := signedIn(t, deps, "ada-token")

	createIdea(t, ada, "Zebra app")
	createIdea(t, ada, "Apple app")
	callTool(t, ada, "create_idea", map[string]any{
		"title":       "Budget planner",
		"description": "Track spending",
		"category":    "finance-idea",
		"tags":        []any{},
	})

	text := callTool(t, ada, "list_ideas", map[string]any{"sort_by": "alphabetical"})
	list := decode[[]models.Idea](t, "list_ideas", text)
	if len(list) != 3 || list[0].Title != "Apple app" || list[2].Title != "Zebra app" {
		t.Errorf("alphabetical feed = %v", titles(list))
	}

	text = callTool(t, ada, "list_ideas", map[string]any{"category": "finance-idea"})
	list = decode[[]models.Idea](t, "list_ideas", text)
	if len(list) != 1 || list[0].Title != "Budget planner" {
		t.Errorf("category feed = %v", titles(list))
	}

	text = callTool(t, ada, "list_ideas", map[string]any{"search": "MCP"})
	list = decode[[]models.Idea](t, "list_ideas", text)
	if len(list) != 2 {
		t.Errorf("tag search feed = %v", titles(list))
	}
}

func TestIntegration_ErrorCases(t *testing.T) {
	deps := setupDeps(t)
	anon := connect(t, deps)

	// Error: write tools without sign-in
	errText := callToolExpectError(t, anon, "create_idea", map[string]any{
		"title": "x", "description": "y", "category": "other", "tags": []any{},
	})
	if !strings.Contains(errText, "Not signed in") {
		t.Errorf("expected 'Not signed in', got %q", errText)
	}
	errText = callToolExpectError(t, anon, "like_idea", map[string]any{"idea_id": "x"})
	if !strings.Contains(errText, "Not signed in") {
		t.Errorf("expected 'Not signed in', got %q", errText)
	}

	text := callTool(t, anon, "whoami", nil)
	if !strings.Contains(text, "Not signed in") {
		t.Errorf("whoami = %q", text)
	}

	// Error: bad token
	errText = callToolExpectError(t, anon, "sign_in", map[string]any{"token": "forged"})
	if !strings.Contains(errText, "Sign-in failed") {
		t.Errorf("expected 'Sign-in failed', got %q", errText)
	}

	// Error: unverified email cannot publish
	eve := signedIn(t, deps, "eve-token")
	errText = callToolExpectError(t, eve, "create_idea", map[string]any{
		"title": "x", "description": "y", "category": "other", "tags": []any{},
	})
	if !strings.Contains(errText, "not verified") {
		t.Errorf("expected 'not verified', got %q", errText)
	}

	ada := signedIn(t, deps, "ada-token")
	bob := signedIn(t, deps, "bob-token")

	// Error: validation
	errText = callToolExpectError(t, ada, "create_idea", map[string]any{
		"title": "", "description": "y", "category": "other", "tags": []any{},
	})
	if !strings.Contains(errText, "validation error") {
		t.Errorf("expected 'validation error', got %q", errText)
	}
	errText = callToolExpectError(t, ada, "create_idea", map[string]any{
		"title": "x", "description": "y", "category": "space-idea", "tags": []any{},
	})
	if !strings.Contains(errText, "validation error") {
		t.Errorf("expected 'validation error' for category, got %q", errText)
	}

	idea := createIdea(t, ada, "Owned")

	// Error: non-owner edits
	errText = callToolExpectError(t, bob, "update_idea", map[string]any{"id": idea.ID, "title": "Mine now"})
	if !strings.Contains(errText, "access denied") {
		t.Errorf("expected 'access denied', got %q", errText)
	}
	errText = callToolExpectError(t, bob, "delete_idea", map[string]any{"id": idea.ID})
	if !strings.Contains(errText, "access denied") {
		t.Errorf("expected 'access denied', got %q", errText)
	}

	// Error: own idea collaboration
	errText = callToolExpectError(t, ada, "request_collaboration", map[string]any{"idea_id": idea.ID})
	if !strings.Contains(errText, "own idea") {
		t.Errorf("expected 'own idea', got %q", errText)
	}

	// Error: missing ids
	errText = callToolExpectError(t, ada, "get_idea", map[string]any{"id": "does-not-exist"})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found', got %q", errText)
	}
	errText = callToolExpectError(t, bob, "like_idea", map[string]any{"idea_id": "does-not-exist"})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found', got %q", errText)
	}
	errText = callToolExpectError(t, ada, "get_profile", map[string]any{"uid": "nobody"})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found', got %q", errText)
	}

	// Error: deleting someone else's comment
	text = callTool(t, bob, "add_comment", map[string]any{"idea_id": idea.ID, "text": "hi"})
	commentID := decode[map[string]string](t, "add_comment", text)["id"]
	errText = callToolExpectError(t, ada, "delete_comment", map[string]any{"idea_id": idea.ID, "comment_id": commentID})
	if !strings.Contains(errText, "access denied") {
		t.Errorf("expected 'access denied', got %q", errText)
	}
}

func TestIntegration_SessionIsolation(t *testing.T) {
	deps := setupDeps(t)
	ada := signedIn(t, deps, "ada-token")
	other := connect(t, deps)

	// Signing in on one connection does not sign in another.
	text := callTool(t, other, "whoami", nil)
	if !strings.Contains(text, "Not signed in") {
		t.Errorf("second session whoami = %q", text)
	}

	// A session started with a caller is already signed in.
	srv := server.New(deps, &identity.Caller{UID: "bob", Email: "bob@example.com", DisplayName: "Bob", EmailVerified: true})
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ctx := context.Background()
	if _, err := srv.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	bob, err := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil).Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer bob.Close()

	text = callTool(t, bob, "whoami", nil)
	if account := decode[tools.Account](t, "whoami", text); account.Caller.UID != "bob" {
		t.Errorf("preset caller = %q, want bob", account.Caller.UID)
	}

	idea := createIdea(t, ada, "Shared feed")
	text = callTool(t, bob, "get_idea", map[string]any{"id": idea.ID})
	if got := decode[models.Idea](t, "get_idea", text); got.AuthorID != "ada" {
		t.Errorf("author = %q, want ada", got.AuthorID)
	}
}

func titles(list []models.Idea) []string {
	out := make([]string, len(list))
	for i, idea := range list {
		out[i] = idea.Title
	}
	return out
}
