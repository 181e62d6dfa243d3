package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/models"
)

const profileColumns = `uid, email, display_name, github, linkedin, twitter, website,
	github_link, created_at, updated_at`

// GetProfile reads one profile.
func (s *Store) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE uid = ?`, uid)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("profile", uid)
	}
	if err != nil {
		return nil, apperr.Store("get profile", err)
	}
	return p, nil
}

// CreateProfileIfAbsent inserts a profile unless one exists for the uid.
// It reports whether a row was created.
func (s *Store) CreateProfileIfAbsent(ctx context.Context, uid, email, displayName string) (bool, error) {
	now := s.clock.next()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (uid, email, display_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(uid) DO NOTHING`,
		uid, email, displayName, now, now)
	if err != nil {
		return false, apperr.Store("create profile", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Store("create profile", err)
	}
	return n > 0, nil
}

// UpdateProfile writes the non-nil fields. Email is never written.
func (s *Store) UpdateProfile(ctx context.Context, uid string, f models.ProfileFields) (*models.UserProfile, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("display_name", f.DisplayName)
	add("github", f.GitHub)
	add("linkedin", f.LinkedIn)
	add("twitter", f.Twitter)
	add("website", f.Website)
	sets = append(sets, "updated_at = MAX(?, updated_at + 1)")
	args = append(args, s.clock.next(), uid)

	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE uid = ?`, args...)
	if err != nil {
		return nil, apperr.Store("update profile", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("profile", uid)
	}
	return s.GetProfile(ctx, uid)
}

// SetGitHubLink stores the linked GitHub account, or clears it when link is
// nil. When link is set and the profile's github field is empty, the field
// is filled with the account URL.
func (s *Store) SetGitHubLink(ctx context.Context, uid string, link *models.GitHubLink) (*models.UserProfile, error) {
	var (
		res sql.Result
		err error
	)
	now := s.clock.next()
	if link == nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE profiles SET github_link = NULL, updated_at = MAX(?, updated_at + 1) WHERE uid = ?`,
			now, uid)
	} else {
		data, mErr := json.Marshal(link)
		if mErr != nil {
			return nil, fmt.Errorf("encode github link: %w", mErr)
		}
		res, err = s.db.ExecContext(ctx,
			`UPDATE profiles SET github_link = ?,
				github = CASE WHEN github = '' THEN ? ELSE github END,
				updated_at = MAX(?, updated_at + 1)
			 WHERE uid = ?`,
			string(data), link.URL, now, uid)
	}
	if err != nil {
		return nil, apperr.Store("set github link", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("profile", uid)
	}
	return s.GetProfile(ctx, uid)
}

func scanProfile(sc scanner) (*models.UserProfile, error) {
	var (
		p                    models.UserProfile
		link                 sql.NullString
		createdAt, updatedAt int64
	)
	err := sc.Scan(&p.UID, &p.Email, &p.DisplayName, &p.GitHub, &p.LinkedIn, &p.Twitter,
		&p.Website, &link, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = fromMicros(createdAt)
	p.UpdatedAt = fromMicros(updatedAt)
	if link.Valid && link.String != "" {
		p.GitHubLink = &models.GitHubLink{}
		if err := json.Unmarshal([]byte(link.String), p.GitHubLink); err != nil {
			return nil, fmt.Errorf("decode github link of %s: %w", p.UID, err)
		}
	}
	return &p, nil
}
