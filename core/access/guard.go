package access

import (
	"strings"

	"storedesk-admin/core/rbac"
)

type Decision int

const (
	DecisionLoading Decision = iota
	DecisionAllowed
	DecisionDenied
)

func (d Decision) String() string {
	switch d {
	case DecisionAllowed:
		return "allowed"
	case DecisionDenied:
		return "denied"
	default:
		return "loading"
	}
}

// PermissionReader is the part of Store the guard consults.
type PermissionReader interface {
	State() State
	HasPermission(tabKey string, action rbac.Action) bool
}

// Decide is Loading until the store has a snapshot or a failed fetch, then
// Allowed or Denied on read access to key.
func Decide(r PermissionReader, key string) Decision {
	return DecideAction(r, key, rbac.ActionRead)
}

func DecideAction(r PermissionReader, key string, action rbac.Action) Decision {
	if r == nil {
		return DecisionDenied
	}
	switch r.State() {
	case StateUninitialized, StateLoading:
		return DecisionLoading
	}
	if r.HasPermission(key, action) {
		return DecisionAllowed
	}
	return DecisionDenied
}

type UnmappedPolicy string

const (
	UnmappedAllow UnmappedPolicy = "allow"
	UnmappedDeny  UnmappedPolicy = "deny"
)

func ParseUnmappedPolicy(raw string) UnmappedPolicy {
	if strings.EqualFold(strings.TrimSpace(raw), string(UnmappedDeny)) {
		return UnmappedDeny
	}
	return UnmappedAllow
}

// KeyResolver maps a route path to its tab key.
type KeyResolver interface {
	KeyForPath(path string) (string, bool)
}

// Requirement is what a path needs before it may render.
type Requirement struct {
	Path     string
	Key      string
	Public   bool
	Unmapped bool
}

type PathPolicy struct {
	resolver KeyResolver
	unmapped UnmappedPolicy
	public   []string
}

func NewPathPolicy(resolver KeyResolver, unmapped UnmappedPolicy, publicPrefixes []string) *PathPolicy {
	pub := make([]string, 0, len(publicPrefixes))
	for _, p := range publicPrefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p != "/" {
			p = strings.TrimRight(p, "/")
		}
		pub = append(pub, p)
	}
	if unmapped != UnmappedDeny {
		unmapped = UnmappedAllow
	}
	return &PathPolicy{resolver: resolver, unmapped: unmapped, public: pub}
}

func (p *PathPolicy) Unmapped() UnmappedPolicy { return p.unmapped }

func (p *PathPolicy) IsPublic(path string) bool {
	path = trimQuery(path)
	for _, pref := range p.public {
		if pref == "/" && path == "/" {
			return true
		}
		if path == pref || strings.HasPrefix(path, pref+"/") {
			return true
		}
	}
	return false
}

func (p *PathPolicy) Resolve(path string) Requirement {
	req := Requirement{Path: path}
	if p.IsPublic(path) {
		req.Public = true
		return req
	}
	if p.resolver != nil {
		if key, ok := p.resolver.KeyForPath(path); ok {
			req.Key = key
			return req
		}
	}
	req.Unmapped = true
	return req
}

// DecidePath applies the public list, then the resolved key, then the
// unmapped policy. Under deny an unmapped path behaves like a key nobody
// holds, so only bypass roles pass.
func (p *PathPolicy) DecidePath(r PermissionReader, path string) (Decision, Requirement) {
	req := p.Resolve(path)
	switch {
	case req.Public:
		return DecisionAllowed, req
	case req.Unmapped && p.unmapped == UnmappedAllow:
		return DecisionAllowed, req
	default:
		return Decide(r, req.Key), req
	}
}

func trimQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	return path
}
