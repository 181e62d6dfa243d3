package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/models"
)

// PutLike records that userID likes ideaID. Writing an existing like
// overwrites its timestamp.
func (s *Store) PutLike(ctx context.Context, ideaID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO likes (idea_id, user_id, liked_at) VALUES (?, ?, ?)
		 ON CONFLICT(idea_id, user_id) DO UPDATE SET liked_at = excluded.liked_at`,
		ideaID, userID, s.clock.next(),
	)
	if err != nil {
		return apperr.Store("put like", err)
	}
	return nil
}

// DeleteLike removes a like. Removing an absent like is not an error.
func (s *Store) DeleteLike(ctx context.Context, ideaID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM likes WHERE idea_id = ? AND user_id = ?`, ideaID, userID)
	if err != nil {
		return apperr.Store("delete like", err)
	}
	return nil
}

// HasLike reports whether userID likes ideaID.
func (s *Store) HasLike(ctx context.Context, ideaID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM likes WHERE idea_id = ? AND user_id = ?`, ideaID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Store("lookup like", err)
	}
	return true, nil
}

// CountLikes counts the likes on ideaID.
func (s *Store) CountLikes(ctx context.Context, ideaID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE idea_id = ?`, ideaID).Scan(&n); err != nil {
		return 0, apperr.Store("count likes", err)
	}
	return n, nil
}

// ListLikes returns every like on ideaID, oldest first.
func (s *Store) ListLikes(ctx context.Context, ideaID string) ([]models.Like, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, liked_at FROM likes WHERE idea_id = ? ORDER BY liked_at, user_id`, ideaID)
	if err != nil {
		return nil, apperr.Store("list likes", err)
	}
	defer rows.Close()

	likes := []models.Like{}
	for rows.Next() {
		like := models.Like{IdeaID: ideaID}
		var likedAt int64
		if err := rows.Scan(&like.UserID, &likedAt); err != nil {
			return nil, apperr.Store("scan like", err)
		}
		like.LikedAt = fromMicros(likedAt)
		likes = append(likes, like)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list likes", err)
	}
	return likes, nil
}

// InsertComment appends a comment with a fresh id and server timestamp.
func (s *Store) InsertComment(ctx context.Context, ideaID, authorID, authorName, text string) (*models.Comment, error) {
	c := &models.Comment{
		ID:         uuid.New().String(),
		IdeaID:     ideaID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Text:       text,
	}
	now := s.clock.next()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, idea_id, author_id, author_name, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.IdeaID, c.AuthorID, c.AuthorName, c.Text, now,
	)
	if err != nil {
		return nil, apperr.Store("insert comment", err)
	}
	c.CreatedAt = fromMicros(now)
	return c, nil
}

// GetComment reads one comment of ideaID.
func (s *Store) GetComment(ctx context.Context, ideaID, commentID string) (*models.Comment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, idea_id, author_id, author_name, text, created_at
		 FROM comments WHERE id = ? AND idea_id = ?`, commentID, ideaID)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("comment", commentID)
	}
	if err != nil {
		return nil, apperr.Store("get comment", err)
	}
	return c, nil
}

// ListComments returns the comments of ideaID ordered by creation time.
func (s *Store) ListComments(ctx context.Context, ideaID string) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, idea_id, author_id, author_name, text, created_at
		 FROM comments WHERE idea_id = ? ORDER BY created_at ASC, id ASC`, ideaID)
	if err != nil {
		return nil, apperr.Store("list comments", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, apperr.Store("scan comment", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list comments", err)
	}
	return comments, nil
}

// DeleteComment hard-deletes one comment.
func (s *Store) DeleteComment(ctx context.Context, ideaID, commentID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM comments WHERE id = ? AND idea_id = ?`, commentID, ideaID)
	if err != nil {
		return apperr.Store("delete comment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("comment", commentID)
	}
	return nil
}

func scanComment(sc scanner) (*models.Comment, error) {
	var c models.Comment
	var createdAt int64
	if err := sc.Scan(&c.ID, &c.IdeaID, &c.AuthorID, &c.AuthorName, &c.Text, &createdAt); err != nil {
		return nil, err
	}
	c.CreatedAt = fromMicros(createdAt)
	return &c, nil
}
