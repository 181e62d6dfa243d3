// Package engagement tracks likes and comments on ideas and serves snapshot
// subscriptions over them.
package engagement

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/events"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/logging"
	"github.com/BetselotB/idea-plate/internal/metrics"
	"github.com/BetselotB/idea-plate/internal/models"
	"github.com/BetselotB/idea-plate/internal/storage"
)

// Notifier publishes and subscribes to change notifications.
type Notifier interface {
	Notify(ctx context.Context, topic events.Topic) error
	Subscribe(topic events.Topic) (*events.Subscription, error)
}

// Service records likes and comments.
type Service struct {
	store  *storage.Store
	bus    Notifier
	logger *zap.Logger
}

// NewService returns an engagement service. bus may be nil, in which case
// writes are not announced and watches are unavailable.
func NewService(store *storage.Store, bus Notifier, logger *zap.Logger) *Service {
	return &Service{store: store, bus: bus, logger: logging.OrNop(logger)}
}

// Like adds userID to the idea's likes. Liking twice is a no-op.
func (s *Service) Like(ctx context.Context, ideaID, userID string) error {
	if err := requireIDs(ideaID, userID); err != nil {
		return err
	}
	if err := s.requireIdea(ctx, ideaID); err != nil {
		return err
	}
	if err := s.store.PutLike(ctx, ideaID, userID); err != nil {
		return err
	}
	metrics.EngagementOperations.WithLabelValues("like").Inc()
	s.notify(ctx, events.Likes(ideaID))
	return nil
}

// Unlike removes userID from the idea's likes. Unliking a non-member is a
// no-op.
func (s *Service) Unlike(ctx context.Context, ideaID, userID string) error {
	if err := requireIDs(ideaID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteLike(ctx, ideaID, userID); err != nil {
		return err
	}
	metrics.EngagementOperations.WithLabelValues("unlike").Inc()
	s.notify(ctx, events.Likes(ideaID))
	return nil
}

// HasLiked reports whether userID likes the idea.
func (s *Service) HasLiked(ctx context.Context, ideaID, userID string) (bool, error) {
	if err := requireIDs(ideaID, userID); err != nil {
		return false, err
	}
	return s.store.HasLike(ctx, ideaID, userID)
}

// Count returns the number of likes on the idea.
func (s *Service) Count(ctx context.Context, ideaID string) (int, error) {
	if ideaID == "" {
		return 0, apperr.Validation("idea id is required")
	}
	return s.store.CountLikes(ctx, ideaID)
}

// AddComment appends a comment and returns its id.
func (s *Service) AddComment(ctx context.Context, ideaID, authorID, authorName, text string) (string, error) {
	if ideaID == "" {
		return "", apperr.Validation("idea id is required")
	}
	if authorID == "" || strings.TrimSpace(authorName) == "" {
		return "", apperr.Validation("comment author is required")
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.Validation("comment text is required")
	}
	if err := s.requireIdea(ctx, ideaID); err != nil {
		return "", err
	}

	c, err := s.store.InsertComment(ctx, ideaID, authorID, authorName, text)
	if err != nil {
		return "", err
	}
	metrics.EngagementOperations.WithLabelValues("comment").Inc()
	s.notify(ctx, events.Comments(ideaID))
	return c.ID, nil
}

// ListComments returns the idea's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, ideaID string) ([]models.Comment, error) {
	if ideaID == "" {
		return nil, apperr.Validation("idea id is required")
	}
	return s.store.ListComments(ctx, ideaID)
}

// DeleteComment removes a comment written by the caller.
func (s *Service) DeleteComment(ctx context.Context, caller *identity.Caller, ideaID, commentID string) error {
	if err := identity.Require(caller); err != nil {
		return err
	}
	if ideaID == "" || commentID == "" {
		return apperr.Validation("idea id and comment id are required")
	}
	c, err := s.store.GetComment(ctx, ideaID, commentID)
	if err != nil {
		return err
	}
	if c.AuthorID != caller.UID {
		return apperr.Auth("only the author may delete comment %q", commentID)
	}
	if err := s.store.DeleteComment(ctx, ideaID, commentID); err != nil {
		return err
	}
	metrics.EngagementOperations.WithLabelValues("delete_comment").Inc()
	s.notify(ctx, events.Comments(ideaID))
	return nil
}

func (s *Service) requireIdea(ctx context.Context, ideaID string) error {
	ok, err := s.store.IdeaExists(ctx, ideaID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("idea", ideaID)
	}
	return nil
}

// notify announces a committed write. Delivery failures only delay
// watchers, so they are logged rather than returned.
func (s *Service) notify(ctx context.Context, topic events.Topic) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Notify(context.WithoutCancel(ctx), topic); err != nil {
		s.logger.Warn("change notification failed",
			zap.String("subject", topic.Subject()), zap.Error(err))
	}
}

func requireIDs(ideaID, userID string) error {
	if ideaID == "" {
		return apperr.Validation("idea id is required")
	}
	if userID == "" {
		return apperr.Validation("user id is required")
	}
	return nil
}
