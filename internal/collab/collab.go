// Package collab runs the collaboration-request workflow: submit, review,
// accept or reject.
package collab

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/logging"
	"github.com/BetselotB/idea-plate/internal/metrics"
	"github.com/BetselotB/idea-plate/internal/models"
	"github.com/BetselotB/idea-plate/internal/storage"
)

const maxAppendAttempts = 8

// SubmitRequest is the input to Submit. Empty name and email default to the
// caller's identity.
type SubmitRequest struct {
	IdeaID            string `json:"idea_id"`
	RequesterName     string `json:"requester_name,omitempty"`
	RequesterEmail    string `json:"requester_email,omitempty"`
	RequesterGitHub   string `json:"requester_github,omitempty"`
	RequesterLinkedIn string `json:"requester_linkedin,omitempty"`
}

// Service manages collaboration requests.
type Service struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewService returns a collaboration service.
func NewService(store *storage.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logging.OrNop(logger)}
}

// Submit files a pending request from the caller on another user's idea.
func (s *Service) Submit(ctx context.Context, caller *identity.Caller, in SubmitRequest) (*models.CollaborationRequest, error) {
	if err := identity.Require(caller); err != nil {
		return nil, err
	}
	if in.IdeaID == "" {
		return nil, apperr.Validation("idea id is required")
	}
	idea, err := s.store.GetIdea(ctx, in.IdeaID)
	if err != nil {
		return nil, err
	}
	if idea.AuthorID == caller.UID {
		return nil, apperr.Validation("cannot request to collaborate on your own idea")
	}

	name := firstNonEmpty(in.RequesterName, caller.DisplayName)
	email := firstNonEmpty(in.RequesterEmail, caller.Email)
	if name == "" || email == "" {
		return nil, apperr.Validation("requester name and email are required")
	}

	req := &models.CollaborationRequest{
		IdeaID:            in.IdeaID,
		RequesterID:       caller.UID,
		RequesterName:     name,
		RequesterEmail:    email,
		RequesterGitHub:   strings.TrimSpace(in.RequesterGitHub),
		RequesterLinkedIn: strings.TrimSpace(in.RequesterLinkedIn),
	}
	if err := s.store.InsertRequest(ctx, req); err != nil {
		return nil, err
	}
	metrics.CollabTransitions.WithLabelValues(string(models.RequestPending)).Inc()
	s.logger.Info("collaboration requested",
		zap.String("request_id", req.ID),
		zap.String("idea_id", req.IdeaID),
		zap.String("requester_id", req.RequesterID))
	return req, nil
}

// ListForOwner returns requests on every idea authored by ownerID, newest
// first. An owner without ideas gets an empty list.
func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]models.CollaborationRequest, error) {
	if ownerID == "" {
		return nil, apperr.Validation("owner id is required")
	}
	return s.store.ListRequestsForOwner(ctx, ownerID)
}

// Accept marks the request accepted, then adds the requester to the idea's
// collaborators unless already present. The two writes are not atomic;
// calling Accept again on an accepted request repeats the second write, so a
// failed accept can be retried.
func (s *Service) Accept(ctx context.Context, caller *identity.Caller, requestID string) (*models.Idea, error) {
	req, idea, err := s.authorize(ctx, caller, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status == models.RequestRejected {
		return nil, apperr.Validation("request %q was already rejected", requestID)
	}
	if !req.Status.Terminal() {
		if err := s.transition(ctx, req, models.RequestAccepted); err != nil {
			return nil, err
		}
	}

	idea, err = s.addCollaborator(ctx, idea.ID, req.Collaborator())
	if err != nil {
		s.logger.Warn("collaborator append failed after accept",
			zap.String("request_id", req.ID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("collaboration accepted",
		zap.String("request_id", req.ID),
		zap.String("idea_id", idea.ID),
		zap.String("collaborator_id", req.RequesterID))
	return idea, nil
}

// Reject marks the request rejected. Rejecting twice is a no-op; rejecting
// an accepted request fails.
func (s *Service) Reject(ctx context.Context, caller *identity.Caller, requestID string) (*models.CollaborationRequest, error) {
	req, _, err := s.authorize(ctx, caller, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status == models.RequestAccepted {
		return nil, apperr.Validation("request %q was already accepted", requestID)
	}
	if !req.Status.Terminal() {
		if err := s.transition(ctx, req, models.RequestRejected); err != nil {
			return nil, err
		}
		req.Status = models.RequestRejected
		s.logger.Info("collaboration rejected",
			zap.String("request_id", req.ID), zap.String("idea_id", req.IdeaID))
	}
	return req, nil
}

// addCollaborator appends c to the idea's collaborators unless a member with
// the same user id is already there. The write only lands if the list is
// unchanged since it was read; otherwise it re-reads and tries again.
func (s *Service) addCollaborator(ctx context.Context, ideaID string, c models.Collaborator) (*models.Idea, error) {
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		idea, err := s.store.GetIdea(ctx, ideaID)
		if err != nil {
			return nil, err
		}
		if idea.HasCollaborator(c.UserID) {
			return idea, nil
		}
		next := append(slices.Clone(idea.Collaborators), c)
		ok, err := s.store.SwapCollaborators(ctx, ideaID, idea.Collaborators, next)
		if err != nil {
			return nil, err
		}
		if ok {
			idea.Collaborators = next
			return idea, nil
		}
	}
	return nil, apperr.Store("add collaborator", fmt.Errorf("idea %s kept changing after %d attempts", ideaID, maxAppendAttempts))
}

// authorize loads the request and its idea and checks the caller is the
// idea's author.
func (s *Service) authorize(ctx context.Context, caller *identity.Caller, requestID string) (*models.CollaborationRequest, *models.Idea, error) {
	if err := identity.Require(caller); err != nil {
		return nil, nil, err
	}
	if requestID == "" {
		return nil, nil, apperr.Validation("request id is required")
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	idea, err := s.store.GetIdea(ctx, req.IdeaID)
	if err != nil {
		return nil, nil, err
	}
	if idea.AuthorID != caller.UID {
		return nil, nil, apperr.Auth("only the idea's author may review request %q", requestID)
	}
	return req, idea, nil
}

// transition moves a pending request to a terminal status. If another
// writer got there first, the outcome is accepted only when it matches.
func (s *Service) transition(ctx context.Context, req *models.CollaborationRequest, to models.RequestStatus) error {
	ok, err := s.store.UpdateRequestStatus(ctx, req.ID, models.RequestPending, to)
	if err != nil {
		return err
	}
	if ok {
		metrics.CollabTransitions.WithLabelValues(string(to)).Inc()
		return nil
	}
	current, err := s.store.GetRequest(ctx, req.ID)
	if err != nil {
		return err
	}
	if current.Status != to {
		return apperr.Validation("request %q was already %s", req.ID, current.Status)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
