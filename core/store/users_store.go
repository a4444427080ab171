package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type UsersStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Get(ctx context.Context, userID int64) (*User, error)
	Create(ctx context.Context, user *User) (int64, error)
	List(ctx context.Context) ([]User, error)
	SetRole(ctx context.Context, userID int64, role string) error
	SetActive(ctx context.Context, userID int64, active bool) error
	UpdatePassword(ctx context.Context, userID int64, hash, salt string) error
}

type usersStore struct {
	db *sql.DB
}

func NewUsersStore(db *sql.DB) UsersStore {
	return &usersStore{db: db}
}

const userColumns = `id, username, full_name, role, password_hash, salt, active, created_at, updated_at`

func (s *usersStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=?`, strings.ToLower(strings.TrimSpace(username)))
	return scanUser(row)
}

func (s *usersStore) Get(ctx context.Context, userID int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, userID)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var active int
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.PasswordHash, &u.Salt, &active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Active = active == 1
	return &u, nil
}

func (s *usersStore) Create(ctx context.Context, user *User) (int64, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	user.Role = strings.ToLower(strings.TrimSpace(user.Role))
	if user.Username == "" || user.Role == "" {
		return 0, errors.New("username and role are required")
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO users(username, full_name, role, password_hash, salt, active, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?) RETURNING id`,
		user.Username, user.FullName, user.Role, user.PasswordHash, user.Salt, boolToInt(user.Active), now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	user.ID = id
	return id, nil
}

func (s *usersStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

func (s *usersStore) SetRole(ctx context.Context, userID int64, role string) error {
	return s.exec1(ctx, `UPDATE users SET role=?, updated_at=? WHERE id=?`, strings.ToLower(strings.TrimSpace(role)), time.Now().UTC(), userID)
}

func (s *usersStore) SetActive(ctx context.Context, userID int64, active bool) error {
	return s.exec1(ctx, `UPDATE users SET active=?, updated_at=? WHERE id=?`, boolToInt(active), time.Now().UTC(), userID)
}

func (s *usersStore) UpdatePassword(ctx context.Context, userID int64, hash, salt string) error {
	return s.exec1(ctx, `UPDATE users SET password_hash=?, salt=?, updated_at=? WHERE id=?`, hash, salt, time.Now().UTC(), userID)
}

func (s *usersStore) exec1(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
