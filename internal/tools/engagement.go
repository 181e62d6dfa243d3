package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/BetselotB/idea-plate/internal/engagement"
	"github.com/BetselotB/idea-plate/internal/profiles"
	"github.com/BetselotB/idea-plate/internal/session"
)

// EngagementTools holds references needed by like and comment handlers.
type EngagementTools struct {
	Engagement *engagement.Service
	Profiles   *profiles.Service
	Session    *session.Session
}

// --- Input types ---

type IdeaRefInput struct {
	IdeaID string `json:"idea_id" jsonschema:"Idea id"`
}

type AddCommentInput struct {
	IdeaID string `json:"idea_id" jsonschema:"Idea id"`
	Text   string `json:"text" jsonschema:"Comment text"`
}

type DeleteCommentInput struct {
	IdeaID    string `json:"idea_id" jsonschema:"Idea id"`
	CommentID string `json:"comment_id" jsonschema:"Comment id; only your own comments can be deleted"`
}

// LikeState is the result of the like tools. Liked is false for anonymous
// sessions.
type LikeState struct {
	IdeaID string `json:"idea_id"`
	Count  int    `json:"count"`
	Liked  bool   `json:"liked"`
}

// --- Handlers ---

func (t *EngagementTools) LikeIdea(ctx context.Context, _ *mcp.CallToolRequest, input IdeaRefInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	if err := t.Engagement.Like(ctx, input.IdeaID, caller.UID); err != nil {
		return toolError("Failed to like idea: %v", err), nil, nil
	}
	return t.likeState(ctx, input.IdeaID)
}

func (t *EngagementTools) UnlikeIdea(ctx context.Context, _ *mcp.CallToolRequest, input IdeaRefInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	if err := t.Engagement.Unlike(ctx, input.IdeaID, caller.UID); err != nil {
		return toolError("Failed to unlike idea: %v", err), nil, nil
	}
	return t.likeState(ctx, input.IdeaID)
}

func (t *EngagementTools) GetLikes(ctx context.Context, _ *mcp.CallToolRequest, input IdeaRefInput) (*mcp.CallToolResult, any, error) {
	return t.likeState(ctx, input.IdeaID)
}

func (t *EngagementTools) likeState(ctx context.Context, ideaID string) (*mcp.CallToolResult, any, error) {
	n, err := t.Engagement.Count(ctx, ideaID)
	if err != nil {
		return toolError("Failed to count likes: %v", err), nil, nil
	}
	state := LikeState{IdeaID: ideaID, Count: n}
	if caller := t.Session.Caller(); caller != nil {
		if state.Liked, err = t.Engagement.HasLiked(ctx, ideaID, caller.UID); err != nil {
			return toolError("Failed to read like: %v", err), nil, nil
		}
	}
	return toolJSON(state)
}

func (t *EngagementTools) AddComment(ctx context.Context, _ *mcp.CallToolRequest, input AddCommentInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	profile, err := t.Profiles.Ensure(ctx, caller)
	if err != nil {
		return toolError("Failed to load profile: %v", err), nil, nil
	}
	id, err := t.Engagement.AddComment(ctx, input.IdeaID, caller.UID, profile.DisplayName, input.Text)
	if err != nil {
		return toolError("Failed to add comment: %v", err), nil, nil
	}
	return toolJSON(map[string]string{"id": id})
}

func (t *EngagementTools) ListComments(ctx context.Context, _ *mcp.CallToolRequest, input IdeaRefInput) (*mcp.CallToolResult, any, error) {
	comments, err := t.Engagement.ListComments(ctx, input.IdeaID)
	if err != nil {
		return toolError("Failed to list comments: %v", err), nil, nil
	}
	return toolJSON(comments)
}

func (t *EngagementTools) DeleteComment(ctx context.Context, _ *mcp.CallToolRequest, input DeleteCommentInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	if err := t.Engagement.DeleteComment(ctx, caller, input.IdeaID, input.CommentID); err != nil {
		return toolError("Failed to delete comment: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Comment %q deleted.", input.CommentID)), nil, nil
}
