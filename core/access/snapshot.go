// Package access holds the per-session permission store, its fetcher and
// persistence, and the page-guard decision.
package access

import (
	"errors"
	"time"

	"storedesk-admin/core/rbac"
)

// MePath is the access-control endpoint the store fetches from.
const MePath = "/admin/access-control/me"

var (
	ErrFetchFailed    = errors.New("access: permission fetch failed")
	ErrSessionCleared = errors.New("access: session cleared during fetch")
	ErrNoToken        = errors.New("access: no session token")

	errEmptyResponse = errors.New("empty permission payload")
)

// MeResponse is the wire shape of GET /admin/access-control/me.
type MeResponse struct {
	Role        string              `json:"role"`
	Permissions rbac.TabPermissions `json:"permissions"`
}

// Snapshot is replaced wholesale on every successful fetch and never
// mutated after it is published.
type Snapshot struct {
	Role        string              `json:"role"`
	Permissions rbac.TabPermissions `json:"permissions"`
	FetchedAt   time.Time           `json:"fetched_at"`
}

func newSnapshot(resp *MeResponse, now time.Time) *Snapshot {
	perms := rbac.TabPermissions{}
	for k, v := range resp.Permissions {
		if v.Empty() {
			continue
		}
		perms[k] = v
	}
	return &Snapshot{
		Role:        rbac.NormalizeRole(resp.Role),
		Permissions: perms,
		FetchedAt:   now.UTC(),
	}
}

func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{Role: s.Role, Permissions: s.Permissions.Clone(), FetchedAt: s.FetchedAt}
}

func (s *Snapshot) validAt(now time.Time, ttl time.Duration) bool {
	if s == nil || ttl <= 0 {
		return false
	}
	age := now.Sub(s.FetchedAt)
	return age >= 0 && age < ttl
}
