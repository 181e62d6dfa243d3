package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/collab"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/models"
)

// signedIn returns the request's caller or an auth error.
func signedIn(c echo.Context) (*identity.Caller, error) {
	caller := identity.FromContext(c.Request().Context())
	if err := identity.Require(caller); err != nil {
		return nil, err
	}
	return caller, nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

func filtersFrom(c echo.Context) models.Filters {
	return models.Filters{
		Category: models.Category(c.QueryParam("category")),
		Search:   c.QueryParam("search"),
		SortBy:   models.SortOption(c.QueryParam("sort_by")),
	}
}

// Ideas

// CreateIdeaRequest is the body of POST /api/v1/ideas. The author is the
// caller.
type CreateIdeaRequest struct {
	Title               string                     `json:"title"`
	Description         string                     `json:"description"`
	Category            models.Category            `json:"category"`
	Tags                []string                   `json:"tags"`
	CollaborationStatus models.CollaborationStatus `json:"collaboration_status,omitempty"`
}

func (s *Server) listIdeas(c echo.Context) error {
	list, err := s.svc.Ideas.List(c.Request().Context(), filtersFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) listAuthorIdeas(c echo.Context) error {
	list, err := s.svc.Ideas.ListByAuthor(c.Request().Context(), c.Param("uid"), filtersFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createIdea(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	var req CreateIdeaRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	profile, err := s.svc.Profiles.Ensure(ctx, caller)
	if err != nil {
		return err
	}
	idea, err := s.svc.Ideas.Create(ctx, caller, models.NewIdea{
		Title:               req.Title,
		Description:         req.Description,
		Category:            req.Category,
		AuthorID:            caller.UID,
		AuthorName:          profile.DisplayName,
		AuthorEmail:         caller.Email,
		Tags:                req.Tags,
		CollaborationStatus: req.CollaborationStatus,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, idea)
}

func (s *Server) getIdea(c echo.Context) error {
	idea, err := s.svc.Ideas.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, idea)
}

func (s *Server) updateIdea(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	var patch models.IdeaPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	idea, err := s.svc.Ideas.Update(c.Request().Context(), caller, c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, idea)
}

func (s *Server) deleteIdea(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	if err := s.svc.Ideas.Delete(c.Request().Context(), caller, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Likes and comments

// LikeState is the body returned by the like routes. Liked is only
// meaningful for signed-in callers.
type LikeState struct {
	IdeaID string `json:"idea_id"`
	Count  int    `json:"count"`
	Liked  bool   `json:"liked"`
}

// AddCommentRequest is the body of POST /api/v1/ideas/:id/comments.
type AddCommentRequest struct {
	Text string `json:"text"`
}

func (s *Server) likeState(c echo.Context, ideaID string) error {
	ctx := c.Request().Context()
	n, err := s.svc.Engagement.Count(ctx, ideaID)
	if err != nil {
		return err
	}
	state := LikeState{IdeaID: ideaID, Count: n}
	if caller := identity.FromContext(ctx); caller != nil {
		if state.Liked, err = s.svc.Engagement.HasLiked(ctx, ideaID, caller.UID); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) getLikes(c echo.Context) error {
	return s.likeState(c, c.Param("id"))
}

func (s *Server) like(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if err := s.svc.Engagement.Like(c.Request().Context(), id, caller.UID); err != nil {
		return err
	}
	return s.likeState(c, id)
}

func (s *Server) unlike(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if err := s.svc.Engagement.Unlike(c.Request().Context(), id, caller.UID); err != nil {
		return err
	}
	return s.likeState(c, id)
}

func (s *Server) listComments(c echo.Context) error {
	comments, err := s.svc.Engagement.ListComments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

func (s *Server) addComment(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	var req AddCommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	profile, err := s.svc.Profiles.Ensure(ctx, caller)
	if err != nil {
		return err
	}
	id, err := s.svc.Engagement.AddComment(ctx, c.Param("id"), caller.UID, profile.DisplayName, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) deleteComment(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	err = s.svc.Engagement.DeleteComment(c.Request().Context(), caller, c.Param("id"), c.Param("commentId"))
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Collaboration

// CollabRequestBody is the body of POST /api/v1/ideas/:id/collab-requests.
type CollabRequestBody struct {
	RequesterName     string `json:"requester_name,omitempty"`
	RequesterEmail    string `json:"requester_email,omitempty"`
	RequesterGitHub   string `json:"requester_github,omitempty"`
	RequesterLinkedIn string `json:"requester_linkedin,omitempty"`
}

func (s *Server) submitCollabRequest(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	var body CollabRequestBody
	if err := bind(c, &body); err != nil {
		return err
	}
	req, err := s.svc.Collab.Submit(c.Request().Context(), caller, collab.SubmitRequest{
		IdeaID:            c.Param("id"),
		RequesterName:     body.RequesterName,
		RequesterEmail:    body.RequesterEmail,
		RequesterGitHub:   body.RequesterGitHub,
		RequesterLinkedIn: body.RequesterLinkedIn,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, req)
}

func (s *Server) listCollabRequests(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	list, err := s.svc.Collab.ListForOwner(c.Request().Context(), caller.UID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) acceptCollabRequest(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	idea, err := s.svc.Collab.Accept(c.Request().Context(), caller, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, idea)
}

func (s *Server) rejectCollabRequest(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	req, err := s.svc.Collab.Reject(c.Request().Context(), caller, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

// Profiles

// MeResponse is the body of GET /api/v1/me.
type MeResponse struct {
	Caller  *identity.Caller    `json:"caller"`
	Profile *models.UserProfile `json:"profile"`
}

// ProfileUpdateResponse is the body of PUT /api/v1/me/profile. When
// ResyncRequired is set the profile was saved but some ideas still show the
// old author name; POST /api/v1/me/profile/resync repairs them.
type ProfileUpdateResponse struct {
	Profile        *models.UserProfile `json:"profile"`
	ResyncRequired bool                `json:"resync_required,omitempty"`
}

// LinkResponse is the body of GET /api/v1/me/github/link.
type LinkResponse struct {
	URL string `json:"url"`
}

func (s *Server) getProfile(c echo.Context) error {
	p, err := s.svc.Profiles.Get(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) me(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	p, err := s.svc.Profiles.Ensure(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MeResponse{Caller: caller, Profile: p})
}

func (s *Server) updateProfile(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	var fields models.ProfileFields
	if err := bind(c, &fields); err != nil {
		return err
	}
	p, err := s.svc.Profiles.Upsert(c.Request().Context(), caller, caller.UID, fields)
	if err != nil {
		if p == nil || !errors.Is(err, apperr.ErrStore) {
			return err
		}
		return c.JSON(http.StatusOK, ProfileUpdateResponse{Profile: p, ResyncRequired: true})
	}
	return c.JSON(http.StatusOK, ProfileUpdateResponse{Profile: p})
}

func (s *Server) resyncProfile(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	if err := s.svc.Profiles.ResyncAuthorName(c.Request().Context(), caller.UID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) githubLinkURL(c echo.Context) error {
	link, err := s.svc.GitHub.LinkURL(identity.FromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LinkResponse{URL: link})
}

func (s *Server) githubUnlink(c echo.Context) error {
	caller, err := signedIn(c)
	if err != nil {
		return err
	}
	p, err := s.svc.GitHub.Unlink(c.Request().Context(), caller, caller.UID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// githubCallback completes the OAuth flow. The state parameter identifies
// the user, so no bearer token is needed.
func (s *Server) githubCallback(c echo.Context) error {
	p, err := s.svc.GitHub.CompleteLink(c.Request().Context(), c.QueryParam("code"), c.QueryParam("state"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
