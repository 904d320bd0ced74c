// Package store persists users and submitted feedback through sqlx.
// Queries are written with '?' placeholders and rebound per driver, so the
// same repository serves both PostgreSQL and SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// User is the persisted profile of a Telegram user.
type User struct {
	ID        int64     `db:"user_id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	CreatedAt time.Time `db:"created_at"`
	Blocked   bool      `db:"is_blocked"`
}

// Feedback is one completed questionnaire. It is never updated.
type Feedback struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	Transcript string    `db:"answers"`
	CreatedAt  time.Time `db:"created_at"`
}

// ReportRow joins a feedback record with its author's profile.
type ReportRow struct {
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	Answers   string    `db:"answers"`
	CreatedAt time.Time `db:"created_at"`
}

// Store implements the user directory and the feedback store on one database.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// SaveUser inserts the user or refreshes the profile fields of an existing
// row. The blocked flag and creation time of existing rows are preserved.
func (s *Store) SaveUser(ctx context.Context, u User) error {
	const query = `
		INSERT INTO users (user_id, username, first_name, last_name, created_at, is_blocked)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name`
	if _, err := s.db.ExecContext(ctx, s.q(query), u.ID, u.Username, u.FirstName, u.LastName, s.now()); err != nil {
		return fmt.Errorf("store: save user %d: %w", u.ID, err)
	}
	return nil
}

// SetBlocked persists the blocked flag. Unknown ids get a bare row so that
// every blocked id is also a known user.
func (s *Store) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	const query = `
		INSERT INTO users (user_id, created_at, is_blocked)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET is_blocked = excluded.is_blocked`
	flag := 0
	if blocked {
		flag = 1
	}
	if _, err := s.db.ExecContext(ctx, s.q(query), userID, s.now(), flag); err != nil {
		return fmt.Errorf("store: set blocked %d: %w", userID, err)
	}
	return nil
}

// GetUser loads one user.
func (s *Store) GetUser(ctx context.Context, userID int64) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.q(`
		SELECT user_id, username, first_name, last_name, created_at, is_blocked <> 0 AS is_blocked
		FROM users WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("store: get user %d: %w", userID, err)
	}
	return u, nil
}

// ListUsers returns every known user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.SelectContext(ctx, &users, `
		SELECT user_id, username, first_name, last_name, created_at, is_blocked <> 0 AS is_blocked
		FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	return users, nil
}

// BlockedIDs returns the ids of all blocked users.
func (s *Store) BlockedIDs(ctx context.Context) ([]int64, error) {
	return s.ids(ctx, `SELECT user_id FROM users WHERE is_blocked = 1 ORDER BY user_id`)
}

// RecipientIDs returns the ids of all users that are not blocked.
func (s *Store) RecipientIDs(ctx context.Context) ([]int64, error) {
	return s.ids(ctx, `SELECT user_id FROM users WHERE is_blocked = 0 ORDER BY user_id`)
}

func (s *Store) ids(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("store: select ids: %w", err)
	}
	return ids, nil
}

// AddFeedback writes one feedback record.
func (s *Store) AddFeedback(ctx context.Context, userID int64, transcript string) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO feedback (user_id, answers, created_at) VALUES (?, ?, ?)`),
		userID, transcript, s.now())
	if err != nil {
		return fmt.Errorf("store: add feedback %d: %w", userID, err)
	}
	return nil
}

// HasFeedback reports whether the user has completed the questionnaire before.
func (s *Store) HasFeedback(ctx context.Context, userID int64) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(1) FROM feedback WHERE user_id = ?`), userID); err != nil {
		return false, fmt.Errorf("store: has feedback %d: %w", userID, err)
	}
	return n > 0, nil
}

// ListFeedback returns the feedback of one user, oldest first.
func (s *Store) ListFeedback(ctx context.Context, userID int64) ([]Feedback, error) {
	var out []Feedback
	err := s.db.SelectContext(ctx, &out, s.q(`
		SELECT id, user_id, answers, created_at FROM feedback WHERE user_id = ? ORDER BY id`), userID)
	if err != nil {
		return nil, fmt.Errorf("store: list feedback %d: %w", userID, err)
	}
	return out, nil
}

// ReportRows returns all feedback joined with user profiles, newest first.
func (s *Store) ReportRows(ctx context.Context) ([]ReportRow, error) {
	var rows []ReportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT u.user_id, u.username, u.first_name, u.last_name, f.answers, f.created_at
		FROM feedback f
		JOIN users u ON f.user_id = u.user_id
		ORDER BY f.created_at DESC, f.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: report rows: %w", err)
	}
	return rows, nil
}
