// Package server assembles the MCP server.
package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/BetselotB/idea-plate/internal/collab"
	"github.com/BetselotB/idea-plate/internal/engagement"
	"github.com/BetselotB/idea-plate/internal/ideas"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/profiles"
	"github.com/BetselotB/idea-plate/internal/session"
	"github.com/BetselotB/idea-plate/internal/tools"
)

// Deps are the services exposed as tools.
type Deps struct {
	Ideas      *ideas.Service
	Engagement *engagement.Service
	Collab     *collab.Service
	Profiles   *profiles.Service
	Auth       identity.Authenticator
	Version    string
}

// New creates an MCP server with all tools registered and its own session.
// caller, when non-nil, starts the session signed in.
func New(deps Deps, caller *identity.Caller) *mcp.Server {
	sess := session.New(caller)

	at := &tools.AccountTools{Auth: deps.Auth, Profiles: deps.Profiles, Session: sess}
	it := &tools.IdeaTools{Ideas: deps.Ideas, Profiles: deps.Profiles, Session: sess}
	et := &tools.EngagementTools{Engagement: deps.Engagement, Profiles: deps.Profiles, Session: sess}
	ct := &tools.CollabTools{Collab: deps.Collab, Session: sess}

	version := deps.Version
	if version == "" {
		version = "dev"
	}
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "idea-plate",
		Version: version,
	}, nil)

	// Account tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "sign_in",
		Description: "Sign in with a bearer token; later calls act as that user",
	}, at.SignIn)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "whoami",
		Description: "Show the signed-in user and their profile",
	}, at.WhoAmI)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_profile",
		Description: "Get a user's profile (defaults to the signed-in user)",
	}, at.GetProfile)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_profile",
		Description: "Edit your profile; a new display name is copied onto all your ideas (requires sign-in)",
	}, at.UpdateProfile)

	// Idea tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_idea",
		Description: "Publish a new idea (requires sign-in with a verified email)",
	}, it.CreateIdea)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_idea",
		Description: "Get one idea by id, with like and comment counts",
	}, it.GetIdea)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_idea",
		Description: "Change fields of one of your ideas (requires sign-in)",
	}, it.UpdateIdea)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_idea",
		Description: "Delete one of your ideas (requires sign-in)",
	}, it.DeleteIdea)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_ideas",
		Description: "List the idea feed with optional category filter, text search and sort order (at most 50 ideas)",
	}, it.ListIdeas)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_author_ideas",
		Description: "List ideas by one author, with the same filters as list_ideas",
	}, it.ListAuthorIdeas)

	// Engagement tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "like_idea",
		Description: "Like an idea; liking twice has no effect (requires sign-in)",
	}, et.LikeIdea)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "unlike_idea",
		Description: "Remove your like from an idea (requires sign-in)",
	}, et.UnlikeIdea)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_likes",
		Description: "Get an idea's like count and whether you like it",
	}, et.GetLikes)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_comment",
		Description: "Comment on an idea (requires sign-in)",
	}, et.AddComment)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_comments",
		Description: "List an idea's comments, oldest first",
	}, et.ListComments)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_comment",
		Description: "Delete one of your comments (requires sign-in)",
	}, et.DeleteComment)

	// Collaboration tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "request_collaboration",
		Description: "Ask an idea's author to add you as a collaborator (requires sign-in)",
	}, ct.RequestCollaboration)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_collab_requests",
		Description: "List collaboration requests on your ideas, newest first (requires sign-in)",
	}, ct.ListCollabRequests)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "accept_collab_request",
		Description: "Accept a request on your idea and add the requester as collaborator (requires sign-in)",
	}, ct.AcceptCollabRequest)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "reject_collab_request",
		Description: "Reject a request on your idea (requires sign-in)",
	}, ct.RejectCollabRequest)

	return srv
}
