package auth

import (
	"context"
	"time"

	"storedesk-admin/core/store"
)

type ctxKey string

// SessionContextKey carries the *store.SessionRecord of an authenticated request.
const SessionContextKey ctxKey = "session"

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserDTO   `json:"user"`
}

func UserToDTO(u *store.User) UserDTO {
	if u == nil {
		return UserDTO{}
	}
	return UserDTO{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role}
}

func WithSession(ctx context.Context, sr *store.SessionRecord) context.Context {
	return context.WithValue(ctx, SessionContextKey, sr)
}

// SessionFrom returns nil when the request is unauthenticated.
func SessionFrom(ctx context.Context) *store.SessionRecord {
	sr, _ := ctx.Value(SessionContextKey).(*store.SessionRecord)
	return sr
}
