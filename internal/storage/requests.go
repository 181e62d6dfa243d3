package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/models"
)

const requestColumns = `id, idea_id, requester_id, requester_name, requester_email,
	requester_github, requester_linkedin, status, created_at`

// InsertRequest stores a pending collaboration request. ID, Status and
// CreatedAt of r are assigned here.
func (s *Store) InsertRequest(ctx context.Context, r *models.CollaborationRequest) error {
	r.ID = uuid.New().String()
	r.Status = models.RequestPending
	now := s.clock.next()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collab_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.IdeaID, r.RequesterID, r.RequesterName, r.RequesterEmail,
		r.RequesterGitHub, r.RequesterLinkedIn, string(r.Status), now,
	)
	if err != nil {
		return apperr.Store("insert collaboration request", err)
	}
	r.CreatedAt = fromMicros(now)
	return nil
}

// GetRequest reads one collaboration request.
func (s *Store) GetRequest(ctx context.Context, id string) (*models.CollaborationRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM collab_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("collaboration request", id)
	}
	if err != nil {
		return nil, apperr.Store("get collaboration request", err)
	}
	return r, nil
}

// ListRequestsForOwner returns the requests on every idea authored by
// ownerID, newest first.
func (s *Store) ListRequestsForOwner(ctx context.Context, ownerID string) ([]models.CollaborationRequest, error) {
	requests := []models.CollaborationRequest{}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM collab_requests
		 WHERE idea_id IN (SELECT id FROM ideas WHERE author_id = ?)
		 ORDER BY created_at DESC, id ASC`, ownerID)
	if err != nil {
		return nil, apperr.Store("list collaboration requests", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, apperr.Store("scan collaboration request", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list collaboration requests", err)
	}
	return requests, nil
}

// UpdateRequestStatus moves a request from one status to another. It
// reports false when the request was not in the from status.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, from, to models.RequestStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE collab_requests SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return false, apperr.Store("update collaboration request", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Store("update collaboration request", err)
	}
	return n > 0, nil
}

func scanRequest(sc scanner) (*models.CollaborationRequest, error) {
	var r models.CollaborationRequest
	var status string
	var createdAt int64
	err := sc.Scan(&r.ID, &r.IdeaID, &r.RequesterID, &r.RequesterName, &r.RequesterEmail,
		&r.RequesterGitHub, &r.RequesterLinkedIn, &status, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.RequestStatus(status)
	r.CreatedAt = fromMicros(createdAt)
	return &r, nil
}
