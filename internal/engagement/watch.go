package engagement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/events"
	"github.com/BetselotB/idea-plate/internal/metrics"
	"github.com/BetselotB/idea-plate/internal/models"
)

// ErrWatchUnavailable is returned by watches when no notifier is configured.
var ErrWatchUnavailable = errors.New("snapshot subscriptions are unavailable")

// LikeSnapshot is the full like set of an idea at one point in time.
type LikeSnapshot struct {
	IdeaID string        `json:"idea_id"`
	Count  int           `json:"count"`
	Likes  []models.Like `json:"likes"`
}

// CommentSnapshot is the full comment list of an idea at one point in time.
type CommentSnapshot struct {
	IdeaID   string           `json:"idea_id"`
	Comments []models.Comment `json:"comments"`
}

// WatchLikes streams like snapshots for an idea. The first snapshot is sent
// immediately; each later change sends a fresh one. The channel closes when
// ctx is done.
func (s *Service) WatchLikes(ctx context.Context, ideaID string) (<-chan LikeSnapshot, error) {
	return watch(ctx, s, events.Likes(ideaID), func(ctx context.Context) (LikeSnapshot, error) {
		likes, err := s.store.ListLikes(ctx, ideaID)
		if err != nil {
			return LikeSnapshot{}, err
		}
		return LikeSnapshot{IdeaID: ideaID, Count: len(likes), Likes: likes}, nil
	})
}

// WatchComments streams comment snapshots for an idea, like WatchLikes.
func (s *Service) WatchComments(ctx context.Context, ideaID string) (<-chan CommentSnapshot, error) {
	return watch(ctx, s, events.Comments(ideaID), func(ctx context.Context) (CommentSnapshot, error) {
		comments, err := s.store.ListComments(ctx, ideaID)
		if err != nil {
			return CommentSnapshot{}, err
		}
		return CommentSnapshot{IdeaID: ideaID, Comments: comments}, nil
	})
}

// watch subscribes before loading the first snapshot so no change between
// the two is missed. Signals received while a snapshot is being delivered
// collapse into a single reload.
func watch[T any](ctx context.Context, s *Service, topic events.Topic, load func(context.Context) (T, error)) (<-chan T, error) {
	if s.bus == nil {
		return nil, ErrWatchUnavailable
	}
	sub, err := s.bus.Subscribe(topic)
	if err != nil {
		return nil, err
	}
	first, err := load(ctx)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	gauge := metrics.ActiveWatches.WithLabelValues(string(topic.Kind))
	gauge.Inc()

	out := make(chan T, 1)
	out <- first
	go func() {
		defer gauge.Dec()
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.C():
			}

			snap, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("snapshot reload failed",
					zap.String("subject", topic.Subject()), zap.Error(err))
				continue
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
