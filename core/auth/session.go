package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user inactive")
)

const activityInterval = 30 * time.Second

// SessionManager issues and resolves opaque session tokens. The token is the
// session row id.
type SessionManager struct {
	users    store.UsersStore
	sessions store.SessionStore
	pepper   string
	ttl      time.Duration
	logger   *utils.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewSessionManager(users store.UsersStore, sessions store.SessionStore, pepper string, ttl time.Duration, logger *utils.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		users:    users,
		sessions: sessions,
		pepper:   pepper,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		lastSeen: map[string]time.Time{},
	}
}

func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Authenticate checks credentials without creating a session.
func (m *SessionManager) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	user, err := m.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	ok, err := VerifyPassword(password, m.pepper, PasswordHash{Hash: user.PasswordHash, Salt: user.Salt})
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInactiveUser
	}
	return user, nil
}

func (m *SessionManager) Login(ctx context.Context, cred Credentials, ip, userAgent string) (*LoginResult, error) {
	user, err := m.Authenticate(ctx, cred.Username, cred.Password)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	sr := &store.SessionRecord{
		ID:         id.String(),
		UserID:     user.ID,
		Username:   user.Username,
		Role:       user.Role,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.sessions.SaveSession(ctx, sr); err != nil {
		return nil, err
	}
	m.logger.Printf("AUTH login user=%s role=%s session=%s", user.Username, user.Role, utils.ShortDigest(sr.ID))
	return &LoginResult{Token: sr.ID, ExpiresAt: sr.ExpiresAt, User: UserToDTO(user)}, nil
}

// Resolve returns nil for unknown, revoked or expired tokens and for users
// that were deactivated. Activity is written at most every 30s per session.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*store.SessionRecord, error) {
	if _, err := uuid.FromString(token); err != nil {
		return nil, nil
	}
	sr, err := m.sessions.GetSession(ctx, token)
	if err != nil || sr == nil {
		return nil, err
	}
	user, err := m.users.Get(ctx, sr.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		_ = m.sessions.DeleteSession(ctx, sr.ID)
		return nil, nil
	}
	sr.Role = user.Role
	now := m.now().UTC()
	if m.shouldTouch(sr.ID, now) {
		if err := m.sessions.UpdateActivity(ctx, sr.ID, now, m.ttl); err != nil {
			m.logger.Errorf("AUTH activity update: %v", err)
		}
	}
	return sr, nil
}

func (m *SessionManager) shouldTouch(id string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastSeen[id]
	if ok && now.Sub(last) < activityInterval {
		return false
	}
	m.lastSeen[id] = now
	return true
}

func (m *SessionManager) Logout(ctx context.Context, token string) error {
	m.mu.Lock()
	delete(m.lastSeen, token)
	m.mu.Unlock()
	return m.sessions.DeleteSession(ctx, token)
}

// Forget drops activity bookkeeping for sessions not seen since cutoff.
func (m *SessionManager) Forget(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.lastSeen {
		if t.Before(cutoff) {
			delete(m.lastSeen, id)
			n++
		}
	}
	return n
}
