// Package profiles manages user profiles and keeps the author name copied
// onto ideas in step with the profile's display name.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/logging"
	"github.com/BetselotB/idea-plate/internal/metrics"
	"github.com/BetselotB/idea-plate/internal/models"
)

// Store is the persistence the profile directory needs.
type Store interface {
	GetProfile(ctx context.Context, uid string) (*models.UserProfile, error)
	CreateProfileIfAbsent(ctx context.Context, uid, email, displayName string) (bool, error)
	UpdateProfile(ctx context.Context, uid string, f models.ProfileFields) (*models.UserProfile, error)
	SetGitHubLink(ctx context.Context, uid string, link *models.GitHubLink) (*models.UserProfile, error)
	IdeasWithStaleAuthorName(ctx context.Context, authorID, name string) ([]string, error)
	SetAuthorName(ctx context.Context, ideaID, name string) error
}

// DefaultRenamePasses bounds the fan-out loop when none is configured.
const DefaultRenamePasses = 3

// Service reads and edits profiles.
type Service struct {
	store        Store
	logger       *zap.Logger
	renamePasses int
}

// NewService returns a profile service. renamePasses below 1 selects
// DefaultRenamePasses.
func NewService(store Store, logger *zap.Logger, renamePasses int) *Service {
	if renamePasses < 1 {
		renamePasses = DefaultRenamePasses
	}
	return &Service{store: store, logger: logging.OrNop(logger), renamePasses: renamePasses}
}

// Get reads a profile.
func (s *Service) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	if uid == "" {
		return nil, apperr.Validation("uid is required")
	}
	return s.store.GetProfile(ctx, uid)
}

// Ensure creates the caller's profile from identity data on first sign-in
// and returns it. Existing profiles are left untouched.
func (s *Service) Ensure(ctx context.Context, caller *identity.Caller) (*models.UserProfile, error) {
	if err := identity.Require(caller); err != nil {
		return nil, err
	}
	created, err := s.store.CreateProfileIfAbsent(ctx, caller.UID, caller.Email, caller.DisplayName)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("profile created", zap.String("uid", caller.UID))
	}
	return s.store.GetProfile(ctx, caller.UID)
}

// Upsert edits the caller's own profile, creating it first if needed. A
// display-name change is copied onto every idea by the user.
//
// If the profile write succeeds but the fan-out leaves stale names, the
// updated profile is returned together with a store error.
// ResyncAuthorName repairs the remainder.
func (s *Service) Upsert(ctx context.Context, caller *identity.Caller, uid string, f models.ProfileFields) (*models.UserProfile, error) {
	if err := identity.Require(caller); err != nil {
		return nil, err
	}
	if caller.UID != uid {
		return nil, apperr.Auth("profiles can only be edited by their owner")
	}
	if f.DisplayName != nil {
		name := strings.TrimSpace(*f.DisplayName)
		if name == "" {
			return nil, apperr.Validation("display name cannot be empty")
		}
		f.DisplayName = &name
	}

	before, err := s.Ensure(ctx, caller)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateProfile(ctx, uid, f)
	if err != nil {
		return nil, err
	}

	if f.DisplayName != nil && *f.DisplayName != before.DisplayName {
		s.logger.Info("display name changed", zap.String("uid", uid))
		if err := s.fanOut(ctx, uid, updated.DisplayName); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

// ResyncAuthorName copies the current display name onto every idea by uid
// that still carries a different one. Safe to repeat.
func (s *Service) ResyncAuthorName(ctx context.Context, uid string) error {
	p, err := s.Get(ctx, uid)
	if err != nil {
		return err
	}
	return s.fanOut(ctx, uid, p.DisplayName)
}

// fanOut runs bounded passes; each pass re-reads the ideas whose author
// name differs from name and rewrites them one by one.
func (s *Service) fanOut(ctx context.Context, uid, name string) error {
	var lastErr error
	for pass := 1; pass <= s.renamePasses; pass++ {
		stale, err := s.store.IdeasWithStaleAuthorName(ctx, uid, name)
		if err != nil {
			lastErr = err
			break
		}
		if len(stale) == 0 {
			metrics.RenameFanout.WithLabelValues("complete").Inc()
			return nil
		}
		for _, ideaID := range stale {
			if err := ctx.Err(); err != nil {
				return apperr.Store("rename fan-out", err)
			}
			err := s.store.SetAuthorName(ctx, ideaID, name)
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				lastErr = err
				s.logger.Warn("author name update failed",
					zap.String("uid", uid),
					zap.String("idea_id", ideaID),
					zap.Int("pass", pass),
					zap.Error(err))
			}
		}
	}

	stale, err := s.store.IdeasWithStaleAuthorName(ctx, uid, name)
	if err == nil && len(stale) == 0 {
		metrics.RenameFanout.WithLabelValues("complete").Inc()
		return nil
	}
	metrics.RenameFanout.WithLabelValues("partial").Inc()
	if err != nil {
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%d ideas keep a stale author name", len(stale))
	}
	s.logger.Warn("author name fan-out incomplete",
		zap.String("uid", uid), zap.Int("stale", len(stale)), zap.Error(lastErr))
	if errors.Is(lastErr, apperr.ErrStore) {
		return lastErr
	}
	return apperr.Store("rename fan-out", lastErr)
}
