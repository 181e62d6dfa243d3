package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/models"
)

const ideaColumns = `i.id, i.title, i.description, i.category, i.author_id, i.author_name,
	i.author_email, i.tags, i.collaboration_status, i.collaborators, i.created_at, i.updated_at,
	(SELECT COUNT(*) FROM likes l WHERE l.idea_id = i.id) AS like_count,
	(SELECT COUNT(*) FROM comments c WHERE c.idea_id = i.id) AS comment_count`

// IdeaQuery selects a feed page. Category and AuthorID are optional
// equality filters.
type IdeaQuery struct {
	Category models.Category
	AuthorID string
	SortBy   models.SortOption
	Limit    int
}

// InsertIdea stores a new idea with a fresh id and server timestamps.
func (s *Store) InsertIdea(ctx context.Context, in models.NewIdea) (*models.Idea, error) {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	id := uuid.New().String()
	now := s.clock.next()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ideas (id, title, description, category, author_id, author_name, author_email,
			tags, collaboration_status, collaborators, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', ?, ?)`,
		id, in.Title, in.Description, string(in.Category), in.AuthorID, in.AuthorName, in.AuthorEmail,
		string(tagsJSON), string(in.CollaborationStatus), now, now,
	)
	if err != nil {
		return nil, apperr.Store("insert idea", err)
	}

	return &models.Idea{
		ID:                  id,
		Title:               in.Title,
		Description:         in.Description,
		Category:            in.Category,
		AuthorID:            in.AuthorID,
		AuthorName:          in.AuthorName,
		AuthorEmail:         in.AuthorEmail,
		Tags:                tags,
		CollaborationStatus: in.CollaborationStatus,
		Collaborators:       []models.Collaborator{},
		CreatedAt:           fromMicros(now),
		UpdatedAt:           fromMicros(now),
	}, nil
}

// GetIdea reads one idea with its derived counts.
func (s *Store) GetIdea(ctx context.Context, id string) (*models.Idea, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas i WHERE i.id = ?`, id)
	idea, err := scanIdea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("idea", id)
	}
	if err != nil {
		return nil, apperr.Store("get idea", err)
	}
	return idea, nil
}

// UpdateIdea applies a patch and stamps updated_at strictly after the
// previous value. It returns the idea as stored after the write.
func (s *Store) UpdateIdea(ctx context.Context, id string, patch models.IdeaPatch) (*models.Idea, error) {
	sets := []string{}
	args := []any{}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*patch.Category))
	}
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return nil, fmt.Errorf("encode tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tagsJSON))
	}
	if patch.CollaborationStatus != nil {
		sets = append(sets, "collaboration_status = ?")
		args = append(args, string(*patch.CollaborationStatus))
	}
	sets = append(sets, "updated_at = MAX(?, updated_at + 1)")
	args = append(args, s.clock.next(), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE ideas SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, apperr.Store("update idea", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("idea", id)
	}
	return s.GetIdea(ctx, id)
}

// DeleteIdea removes the idea row only. Likes, comments and requests that
// reference it are left in place.
func (s *Store) DeleteIdea(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ideas WHERE id = ?`, id)
	if err != nil {
		return apperr.Store("delete idea", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("idea", id)
	}
	return nil
}

// IdeaExists reports whether an idea row is present.
func (s *Store) IdeaExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ideas WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Store("lookup idea", err)
	}
	return true, nil
}

// ListIdeas runs a feed query. Ties on the sort key fall back to newest
// first, then id.
func (s *Store) ListIdeas(ctx context.Context, q IdeaQuery) ([]models.Idea, error) {
	var where []string
	var args []any
	if q.Category != "" {
		where = append(where, "i.category = ?")
		args = append(args, string(q.Category))
	}
	if q.AuthorID != "" {
		where = append(where, "i.author_id = ?")
		args = append(args, q.AuthorID)
	}

	query := `SELECT ` + ideaColumns + ` FROM ideas i`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + orderClause(q.SortBy)

	limit := q.Limit
	if limit <= 0 {
		limit = models.FeedLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store("list ideas", err)
	}
	defer rows.Close()

	ideas := []models.Idea{}
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, apperr.Store("scan idea", err)
		}
		ideas = append(ideas, *idea)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list ideas", err)
	}
	return ideas, nil
}

func orderClause(sortBy models.SortOption) string {
	switch sortBy {
	case models.SortOldest:
		return "i.created_at ASC, i.id ASC"
	case models.SortAlphabetical:
		return "i.title ASC, i.created_at DESC, i.id ASC"
	case models.SortMostLiked:
		return "like_count DESC, i.created_at DESC, i.id ASC"
	default:
		return "i.created_at DESC, i.id ASC"
	}
}

// IdeasWithStaleAuthorName lists ideas of authorID whose denormalized
// author name differs from name.
func (s *Store) IdeasWithStaleAuthorName(ctx context.Context, authorID, name string) ([]string, error) {
	return s.queryIDs(ctx, "list stale author names",
		`SELECT id FROM ideas WHERE author_id = ? AND author_name <> ? ORDER BY created_at`,
		authorID, name)
}

// SetAuthorName rewrites the denormalized author name on one idea. It does
// not touch updated_at.
func (s *Store) SetAuthorName(ctx context.Context, ideaID, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE ideas SET author_name = ? WHERE id = ?`, name, ideaID)
	if err != nil {
		return apperr.Store("set author name", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("idea", ideaID)
	}
	return nil
}

// SwapCollaborators replaces the collaborator list of one idea with next,
// provided it still equals prev. It reports false when the list changed
// since prev was read or the idea is gone.
func (s *Store) SwapCollaborators(ctx context.Context, ideaID string, prev, next []models.Collaborator) (bool, error) {
	prevJSON, err := encodeCollaborators(prev)
	if err != nil {
		return false, err
	}
	nextJSON, err := encodeCollaborators(next)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE ideas SET collaborators = ? WHERE id = ? AND collaborators = ?`,
		nextJSON, ideaID, prevJSON)
	if err != nil {
		return false, apperr.Store("set collaborators", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Store("set collaborators", err)
	}
	return n > 0, nil
}

func encodeCollaborators(collaborators []models.Collaborator) (string, error) {
	if collaborators == nil {
		collaborators = []models.Collaborator{}
	}
	data, err := json.Marshal(collaborators)
	if err != nil {
		return "", fmt.Errorf("encode collaborators: %w", err)
	}
	return string(data), nil
}

func (s *Store) queryIDs(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store(op, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Store(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store(op, err)
	}
	return ids, nil
}

func scanIdea(sc scanner) (*models.Idea, error) {
	var (
		idea                 models.Idea
		category, status     string
		tagsJSON, collabJSON string
		createdAt, updatedAt int64
	)
	err := sc.Scan(
		&idea.ID, &idea.Title, &idea.Description, &category, &idea.AuthorID, &idea.AuthorName,
		&idea.AuthorEmail, &tagsJSON, &status, &collabJSON, &createdAt, &updatedAt,
		&idea.Likes, &idea.Comments,
	)
	if err != nil {
		return nil, err
	}
	idea.Category = models.Category(category)
	idea.CollaborationStatus = models.CollaborationStatus(status)
	idea.CreatedAt = fromMicros(createdAt)
	idea.UpdatedAt = fromMicros(updatedAt)

	if err := json.Unmarshal([]byte(tagsJSON), &idea.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", idea.ID, err)
	}
	if idea.Tags == nil {
		idea.Tags = []string{}
	}
	if err := json.Unmarshal([]byte(collabJSON), &idea.Collaborators); err != nil {
		return nil, fmt.Errorf("decode collaborators of %s: %w", idea.ID, err)
	}
	if idea.Collaborators == nil {
		idea.Collaborators = []models.Collaborator{}
	}
	return &idea, nil
}
