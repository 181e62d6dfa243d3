package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/BetselotB/idea-plate/internal/ideas"
	"github.com/BetselotB/idea-plate/internal/models"
	"github.com/BetselotB/idea-plate/internal/profiles"
	"github.com/BetselotB/idea-plate/internal/session"
)

// IdeaTools holds references needed by idea handlers.
type IdeaTools struct {
	Ideas    *ideas.Service
	Profiles *profiles.Service
	Session  *session.Session
}

// --- Input types ---

type CreateIdeaInput struct {
	Title               string   `json:"title" jsonschema:"Idea title, at most 100 characters"`
	Description         string   `json:"description" jsonschema:"Idea description, at most 2000 characters"`
	Category            string   `json:"category" jsonschema:"One of: app-idea, business-idea, website-idea, product-idea, service-idea, tech-idea, social-idea, education-idea, health-idea, finance-idea, entertainment-idea, other"`
	Tags                []string `json:"tags" jsonschema:"Free-form tags; may be empty"`
	CollaborationStatus string   `json:"collaboration_status,omitempty" jsonschema:"Optional: lfp (looking for partners) or gave-up"`
}

type IdeaIDInput struct {
	ID string `json:"id" jsonschema:"Idea id"`
}

type UpdateIdeaInput struct {
	ID                  string    `json:"id" jsonschema:"Idea id"`
	Title               *string   `json:"title,omitempty" jsonschema:"New title"`
	Description         *string   `json:"description,omitempty" jsonschema:"New description"`
	Category            *string   `json:"category,omitempty" jsonschema:"New category"`
	Tags                *[]string `json:"tags,omitempty" jsonschema:"Replacement tag list"`
	CollaborationStatus *string   `json:"collaboration_status,omitempty" jsonschema:"lfp or gave-up; once set it cannot be cleared"`
}

type ListIdeasInput struct {
	Category string `json:"category,omitempty" jsonschema:"Only ideas in this category"`
	Search   string `json:"search,omitempty" jsonschema:"Case-insensitive text matched against title, description and tags"`
	SortBy   string `json:"sort_by,omitempty" jsonschema:"newest (default), oldest, alphabetical or most-liked"`
}

type ListAuthorIdeasInput struct {
	AuthorID string `json:"author_id" jsonschema:"Author user id"`
	Category string `json:"category,omitempty" jsonschema:"Only ideas in this category"`
	Search   string `json:"search,omitempty" jsonschema:"Case-insensitive text matched against title, description and tags"`
	SortBy   string `json:"sort_by,omitempty" jsonschema:"newest (default), oldest, alphabetical or most-liked"`
}

func (in ListIdeasInput) filters() models.Filters {
	return models.Filters{
		Category: models.Category(in.Category),
		Search:   in.Search,
		SortBy:   models.SortOption(in.SortBy),
	}
}

// --- Handlers ---

func (t *IdeaTools) CreateIdea(ctx context.Context, _ *mcp.CallToolRequest, input CreateIdeaInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	profile, err := t.Profiles.Ensure(ctx, caller)
	if err != nil {
		return toolError("Failed to load profile: %v", err), nil, nil
	}
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}
	idea, err := t.Ideas.Create(ctx, caller, models.NewIdea{
		Title:               input.Title,
		Description:         input.Description,
		Category:            models.Category(input.Category),
		AuthorID:            caller.UID,
		AuthorName:          profile.DisplayName,
		AuthorEmail:         caller.Email,
		Tags:                tags,
		CollaborationStatus: models.CollaborationStatus(input.CollaborationStatus),
	})
	if err != nil {
		return toolError("Failed to create idea: %v", err), nil, nil
	}
	return toolJSON(idea)
}

func (t *IdeaTools) GetIdea(ctx context.Context, _ *mcp.CallToolRequest, input IdeaIDInput) (*mcp.CallToolResult, any, error) {
	idea, err := t.Ideas.Get(ctx, input.ID)
	if err != nil {
		return toolError("Failed to get idea: %v", err), nil, nil
	}
	return toolJSON(idea)
}

func (t *IdeaTools) UpdateIdea(ctx context.Context, _ *mcp.CallToolRequest, input UpdateIdeaInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	patch := models.IdeaPatch{
		Title:       input.Title,
		Description: input.Description,
		Tags:        input.Tags,
	}
	if input.Category != nil {
		c := models.Category(*input.Category)
		patch.Category = &c
	}
	if input.CollaborationStatus != nil {
		cs := models.CollaborationStatus(*input.CollaborationStatus)
		patch.CollaborationStatus = &cs
	}
	idea, err := t.Ideas.Update(ctx, caller, input.ID, patch)
	if err != nil {
		return toolError("Failed to update idea: %v", err), nil, nil
	}
	return toolJSON(idea)
}

func (t *IdeaTools) DeleteIdea(ctx context.Context, _ *mcp.CallToolRequest, input IdeaIDInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	if err := t.Ideas.Delete(ctx, caller, input.ID); err != nil {
		return toolError("Failed to delete idea: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Idea %q deleted.", input.ID)), nil, nil
}

func (t *IdeaTools) ListIdeas(ctx context.Context, _ *mcp.CallToolRequest, input ListIdeasInput) (*mcp.CallToolResult, any, error) {
	list, err := t.Ideas.List(ctx, input.filters())
	if err != nil {
		return toolError("Failed to list ideas: %v", err), nil, nil
	}
	return toolJSON(list)
}

func (t *IdeaTools) ListAuthorIdeas(ctx context.Context, _ *mcp.CallToolRequest, input ListAuthorIdeasInput) (*mcp.CallToolResult, any, error) {
	filters := ListIdeasInput{Category: input.Category, Search: input.Search, SortBy: input.SortBy}.filters()
	list, err := t.Ideas.ListByAuthor(ctx, input.AuthorID, filters)
	if err != nil {
		return toolError("Failed to list ideas: %v", err), nil, nil
	}
	return toolJSON(list)
}
