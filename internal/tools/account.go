package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/models"
	"github.com/BetselotB/idea-plate/internal/profiles"
	"github.com/BetselotB/idea-plate/internal/session"
)

// AccountTools holds references needed by sign-in and profile handlers.
type AccountTools struct {
	Auth     identity.Authenticator
	Profiles *profiles.Service
	Session  *session.Session
}

// --- Input types ---

type SignInInput struct {
	Token string `json:"token" jsonschema:"Bearer token issued for your account"`
}

type GetProfileInput struct {
	UID string `json:"uid,omitempty" jsonschema:"User id; defaults to the signed-in user"`
}

type UpdateProfileInput struct {
	DisplayName *string `json:"display_name,omitempty" jsonschema:"New display name; copied onto all your ideas"`
	GitHub      *string `json:"github,omitempty" jsonschema:"GitHub profile URL"`
	LinkedIn    *string `json:"linkedin,omitempty" jsonschema:"LinkedIn profile URL"`
	Twitter     *string `json:"twitter,omitempty" jsonschema:"Twitter handle or URL"`
	Website     *string `json:"website,omitempty" jsonschema:"Personal website URL"`
}

// Account is the result of sign_in and whoami.
type Account struct {
	Caller  *identity.Caller    `json:"caller"`
	Profile *models.UserProfile `json:"profile"`
}

// ProfileUpdate is the result of update_profile.
type ProfileUpdate struct {
	Profile *models.UserProfile `json:"profile"`
	// ResyncRequired means some ideas still show the previous author name.
	ResyncRequired bool `json:"resync_required,omitempty"`
}

// --- Handlers ---

func (t *AccountTools) SignIn(ctx context.Context, _ *mcp.CallToolRequest, input SignInInput) (*mcp.CallToolResult, any, error) {
	if input.Token == "" {
		return toolError("Token is required"), nil, nil
	}
	caller, err := t.Session.SignIn(ctx, t.Auth, input.Token)
	if err != nil {
		return toolError("Sign-in failed: %v", err), nil, nil
	}
	p, err := t.Profiles.Ensure(ctx, caller)
	if err != nil {
		return toolError("Signed in but failed to load profile: %v", err), nil, nil
	}
	return toolJSON(Account{Caller: caller, Profile: p})
}

func (t *AccountTools) WhoAmI(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	caller := t.Session.Caller()
	if caller == nil {
		return toolText("Not signed in. Use sign_in with a bearer token."), nil, nil
	}
	p, err := t.Profiles.Ensure(ctx, caller)
	if err != nil {
		return toolError("Failed to load profile: %v", err), nil, nil
	}
	return toolJSON(Account{Caller: caller, Profile: p})
}

func (t *AccountTools) GetProfile(ctx context.Context, _ *mcp.CallToolRequest, input GetProfileInput) (*mcp.CallToolResult, any, error) {
	uid := input.UID
	if uid == "" {
		caller, err := t.Session.Require()
		if err != nil {
			return toolError("uid is required when not signed in"), nil, nil
		}
		uid = caller.UID
	}
	p, err := t.Profiles.Get(ctx, uid)
	if err != nil {
		return toolError("Failed to get profile: %v", err), nil, nil
	}
	return toolJSON(p)
}

func (t *AccountTools) UpdateProfile(ctx context.Context, _ *mcp.CallToolRequest, input UpdateProfileInput) (*mcp.CallToolResult, any, error) {
	caller, err := t.Session.Require()
	if err != nil {
		return notSignedIn()
	}
	p, err := t.Profiles.Upsert(ctx, caller, caller.UID, models.ProfileFields{
		DisplayName: input.DisplayName,
		GitHub:      input.GitHub,
		LinkedIn:    input.LinkedIn,
		Twitter:     input.Twitter,
		Website:     input.Website,
	})
	if err != nil {
		if p != nil && errors.Is(err, apperr.ErrStore) {
			return toolJSON(ProfileUpdate{Profile: p, ResyncRequired: true})
		}
		return toolError("Failed to update profile: %v", err), nil, nil
	}
	return toolJSON(ProfileUpdate{Profile: p})
}
