package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storedesk-admin/core/kv"
)

// KVStore keeps kv entries in the application database. Expired rows read as
// missing and are removed by Purge.
type KVStore struct {
	db *sql.DB
}

func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db}
}

var _ kv.Store = (*KVStore)(nil)

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT entry_value, expires_at FROM kv_entries WHERE entry_key=?`, key).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if expires.Valid && !time.Now().Before(expires.Time) {
		return nil, kv.ErrNotFound
	}
	return []byte(value), nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires any
	if ttl > 0 {
		expires = time.Now().UTC().Add(ttl)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv_entries(entry_key, entry_value, expires_at) VALUES(?,?,?)
		ON CONFLICT(entry_key) DO UPDATE SET entry_value=excluded.entry_value, expires_at=excluded.expires_at`,
		key, string(value), expires)
	return err
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE entry_key=?`, key)
	return err
}

func (s *KVStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close is a no-op; the database handle is owned by the runtime.
func (s *KVStore) Close() error { return nil }
