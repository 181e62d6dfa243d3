package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/BetselotB/idea-plate/internal/collab"
	"github.com/BetselotB/idea-plate/internal/session"
)

// CollabTools holds references needed by collaboration handlers.
type CollabTools struct {
	Collab  *collab.Service
	Session *session.Session
}

// --- Input types ---

type RequestCollaborationInput struct {
	IdeaID            string `json:"idea_id" jsonschema:"Idea to join"`
	RequesterName     string `json:"requester_name,omitempty" jsonschema:"Name shown to the author; defaults to your display name"`
	RequesterEmail    string `json:"requester_email,omitempty" jsonschema:"Contact email; defaults to your account email"`
	RequesterGitHub   string `json:"requester_github,omitempty" jsonschema:"Optional GitHub profile URL"`
	RequesterLinkedIn string `json:"requester_linkedin,omitempty" jsonschema:"Optional LinkedIn profile URL"`
}

type CollabRequestIDInput struct {
	RequestID string `json:"request_id" jsonschema:"Collaboration request id"`
}

// --- Handlers ---

func (t *CollabTools) RequestCollaboration(ctx context.Context, _ *mcp.CallToolRequest, input RequestCollaborationInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	req, err := t.Collab.Submit(ctx, caller, collab.SubmitRequest{
		IdeaID:            input.IdeaID,
		RequesterName:     input.RequesterName,
		RequesterEmail:    input.RequesterEmail,
		RequesterGitHub:   input.RequesterGitHub,
		RequesterLinkedIn: input.RequesterLinkedIn,
	})
	if err != nil {
		return toolError("Failed to request collaboration: %v", err), nil, nil
	}
	return toolJSON(req)
}

func (t *CollabTools) ListCollabRequests(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	list, err := t.Collab.ListForOwner(ctx, caller.UID)
	if err != nil {
		return toolError("Failed to list requests: %v", err), nil, nil
	}
	return toolJSON(list)
}

func (t *CollabTools) AcceptCollabRequest(ctx context.Context, _ *mcp.CallToolRequest, input CollabRequestIDInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	idea, err := t.Collab.Accept(ctx, caller, input.RequestID)
	if err != nil {
		return toolError("Failed to accept request: %v", err), nil, nil
	}
	return toolJSON(idea)
}

func (t *CollabTools) RejectCollabRequest(ctx context.Context, _ *mcp.CallToolRequest, input CollabRequestIDInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	req, err := t.Collab.Reject(ctx, caller, input.RequestID)
	if err != nil {
		return toolError("Failed to reject request: %v", err), nil, nil
	}
	return toolJSON(req)
}
