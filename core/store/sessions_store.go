package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type SessionStore interface {
	SaveSession(ctx context.Context, sess *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListByUser(ctx context.Context, userID int64) ([]SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID int64) error
	UpdateActivity(ctx context.Context, id string, now time.Time, extendBy time.Duration) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionsStore struct {
	db *sql.DB
}

func NewSessionsStore(db *sql.DB) SessionStore {
	return &sessionsStore{db: db}
}

const sessionColumns = `id, user_id, username, role, ip, user_agent, created_at, last_seen_at, expires_at, revoked`

func (s *sessionsStore) SaveSession(ctx context.Context, sess *SessionRecord) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastSeenAt.IsZero() {
		sess.LastSeenAt = sess.CreatedAt
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions(`+sessionColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET role=excluded.role, last_seen_at=excluded.last_seen_at, expires_at=excluded.expires_at, revoked=excluded.revoked`,
		sess.ID, sess.UserID, sess.Username, sess.Role, sess.IP, sess.UserAgent, sess.CreatedAt.UTC(), sess.LastSeenAt.UTC(), sess.ExpiresAt.UTC(), boolToInt(sess.Revoked))
	return err
}

// GetSession returns nil for unknown, revoked and expired sessions.
func (s *sessionsStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	if id == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=?`, id)
	sr, err := scanSession(row)
	if err != nil || sr == nil {
		return nil, err
	}
	if sr.Revoked {
		return nil, nil
	}
	if time.Now().After(sr.ExpiresAt) {
		_ = s.DeleteSession(ctx, id)
		return nil, nil
	}
	return sr, nil
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var sr SessionRecord
	var revoked int
	if err := row.Scan(&sr.ID, &sr.UserID, &sr.Username, &sr.Role, &sr.IP, &sr.UserAgent, &sr.CreatedAt, &sr.LastSeenAt, &sr.ExpiresAt, &revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sr.Revoked = revoked == 1
	return &sr, nil
}

func (s *sessionsStore) ListByUser(ctx context.Context, userID int64) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=? AND revoked=0 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []SessionRecord
	for rows.Next() {
		sr, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *sr)
	}
	return res, rows.Err()
}

func (s *sessionsStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET revoked=1, expires_at=? WHERE id=?`, time.Now().UTC(), id)
	return err
}

func (s *sessionsStore) DeleteAllForUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET revoked=1, expires_at=? WHERE user_id=? AND revoked=0`, time.Now().UTC(), userID)
	return err
}

func (s *sessionsStore) UpdateActivity(ctx context.Context, id string, now time.Time, extendBy time.Duration) error {
	now = now.UTC()
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_seen_at=?, expires_at=? WHERE id=? AND revoked=0`, now, now.Add(extendBy), id)
	return err
}

func (s *sessionsStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE revoked=1 OR expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
