// Package ideas implements idea authoring and the feed.
package ideas

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/logging"
	"github.com/BetselotB/idea-plate/internal/metrics"
	"github.com/BetselotB/idea-plate/internal/models"
	"github.com/BetselotB/idea-plate/internal/storage"
)

// Service creates, edits and lists ideas.
type Service struct {
	store    *storage.Store
	logger   *zap.Logger
	pageSize int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(l) }
}

// WithPageSize caps feed queries. Values outside 1..FeedLimit are ignored.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 && n <= models.FeedLimit {
			s.pageSize = n
		}
	}
}

// NewService returns an idea service backed by store.
func NewService(store *storage.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: zap.NewNop(), pageSize: models.FeedLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new idea authored by the caller. The caller must have a
// verified email and be the idea's author.
func (s *Service) Create(ctx context.Context, caller *identity.Caller, in models.NewIdea) (*models.Idea, error) {
	if err := identity.Require(caller); err != nil {
		return nil, err
	}
	if !caller.EmailVerified {
		return nil, apperr.Auth("email address is not verified")
	}
	if in.AuthorID != caller.UID {
		return nil, apperr.Auth("ideas can only be created for the signed-in user")
	}
	if err := validateNew(in); err != nil {
		return nil, err
	}

	idea, err := s.store.InsertIdea(ctx, in)
	metrics.IdeaOperations.WithLabelValues("create", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.logger.Info("idea created",
		zap.String("idea_id", idea.ID),
		zap.String("author_id", idea.AuthorID),
		zap.String("category", string(idea.Category)))
	return idea, nil
}

// Get reads one idea.
func (s *Service) Get(ctx context.Context, id string) (*models.Idea, error) {
	if id == "" {
		return nil, apperr.Validation("idea id is required")
	}
	return s.store.GetIdea(ctx, id)
}

// Update patches an idea owned by the caller. updatedAt always advances,
// even for an empty patch.
func (s *Service) Update(ctx context.Context, caller *identity.Caller, id string, patch models.IdeaPatch) (*models.Idea, error) {
	if err := identity.Require(caller); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, id); err != nil {
		return nil, err
	}

	idea, err := s.store.UpdateIdea(ctx, id, patch)
	metrics.IdeaOperations.WithLabelValues("update", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.logger.Debug("idea updated", zap.String("idea_id", id))
	return idea, nil
}

// Delete removes an idea owned by the caller. Likes and comments on it are
// not removed.
func (s *Service) Delete(ctx context.Context, caller *identity.Caller, id string) error {
	if err := identity.Require(caller); err != nil {
		return err
	}
	if err := s.authorize(ctx, caller, id); err != nil {
		return err
	}

	err := s.store.DeleteIdea(ctx, id)
	metrics.IdeaOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	s.logger.Info("idea deleted", zap.String("idea_id", id), zap.String("author_id", caller.UID))
	return nil
}

func (s *Service) authorize(ctx context.Context, caller *identity.Caller, id string) error {
	if id == "" {
		return apperr.Validation("idea id is required")
	}
	idea, err := s.store.GetIdea(ctx, id)
	if err != nil {
		return err
	}
	if idea.AuthorID != caller.UID {
		return apperr.Auth("only the author may modify idea %q", id)
	}
	return nil
}

// List returns the feed. Category and sort are applied by the store on at
// most one page of rows; search then narrows that page.
func (s *Service) List(ctx context.Context, f models.Filters) ([]models.Idea, error) {
	return s.list(ctx, "", f)
}

// ListByAuthor is List restricted to one author.
func (s *Service) ListByAuthor(ctx context.Context, authorID string, f models.Filters) ([]models.Idea, error) {
	if authorID == "" {
		return nil, apperr.Validation("author id is required")
	}
	return s.list(ctx, authorID, f)
}

func (s *Service) list(ctx context.Context, authorID string, f models.Filters) ([]models.Idea, error) {
	if f.Category != "" && !f.Category.Valid() {
		return nil, apperr.Validation("unknown category %q", f.Category)
	}
	if f.SortBy == "" {
		f.SortBy = models.SortNewest
	}
	if !f.SortBy.Valid() {
		return nil, apperr.Validation("unknown sort option %q", f.SortBy)
	}
	metrics.FeedQueries.WithLabelValues(string(f.SortBy)).Inc()

	rows, err := s.store.ListIdeas(ctx, storage.IdeaQuery{
		Category: f.Category,
		AuthorID: authorID,
		SortBy:   f.SortBy,
		Limit:    s.pageSize,
	})
	if err != nil {
		return nil, err
	}
	return FilterSearch(rows, f.Search), nil
}

// FilterSearch keeps the ideas whose title, description or any tag contains
// term, ignoring case. The term is matched as given, surrounding spaces
// included. An empty term keeps everything. Order is preserved.
func FilterSearch(ideas []models.Idea, term string) []models.Idea {
	term = strings.ToLower(term)
	if term == "" {
		return ideas
	}
	out := make([]models.Idea, 0, len(ideas))
	for _, idea := range ideas {
		if Matches(&idea, term) {
			out = append(out, idea)
		}
	}
	return out
}

// Matches reports whether a lower-cased term occurs in the idea.
func Matches(idea *models.Idea, term string) bool {
	if strings.Contains(strings.ToLower(idea.Title), term) ||
		strings.Contains(strings.ToLower(idea.Description), term) {
		return true
	}
	for _, tag := range idea.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

func validateNew(in models.NewIdea) error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if err := validateDescription(in.Description); err != nil {
		return err
	}
	if !in.Category.Valid() {
		return apperr.Validation("unknown category %q", in.Category)
	}
	if strings.TrimSpace(in.AuthorName) == "" {
		return apperr.Validation("author name is required")
	}
	if strings.TrimSpace(in.AuthorEmail) == "" {
		return apperr.Validation("author email is required")
	}
	if in.Tags == nil {
		return apperr.Validation("tags must be a list")
	}
	if !in.CollaborationStatus.Valid() {
		return apperr.Validation("unknown collaboration status %q", in.CollaborationStatus)
	}
	return nil
}

func validatePatch(p models.IdeaPatch) error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Category != nil && !p.Category.Valid() {
		return apperr.Validation("unknown category %q", *p.Category)
	}
	if p.CollaborationStatus != nil {
		if *p.CollaborationStatus == "" {
			return apperr.Validation("collaboration status cannot be cleared")
		}
		if !p.CollaborationStatus.Valid() {
			return apperr.Validation("unknown collaboration status %q", *p.CollaborationStatus)
		}
	}
	return nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperr.Validation("title is required")
	}
	if n := utf8.RuneCountInString(title); n > models.MaxTitleLen {
		return apperr.Validation("title is %d characters, max %d", n, models.MaxTitleLen)
	}
	return nil
}

func validateDescription(desc string) error {
	if strings.TrimSpace(desc) == "" {
		return apperr.Validation("description is required")
	}
	if n := utf8.RuneCountInString(desc); n > models.MaxDescriptionLen {
		return apperr.Validation("description is %d characters, max %d", n, models.MaxDescriptionLen)
	}
	return nil
}
