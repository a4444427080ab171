package navigation

import (
	"iter"
	"net/url"
	"strings"
)

// Collision records a path declared twice; the first key is kept.
type Collision struct {
	Path       string
	KeptKey    string
	DroppedKey string
}

// PathPermissionMap maps normalized route paths to tab keys in insertion
// order. It is read-only once built and safe for concurrent use.
type PathPermissionMap struct {
	order      []string
	keys       map[string]string
	collisions []Collision
}

func GeneratePathPermissionMap(items iter.Seq[Item]) *PathPermissionMap {
	m := &PathPermissionMap{keys: map[string]string{}}
	if items == nil {
		return m
	}
	for it := range items {
		p := NormalizePath(it.Path)
		if existing, ok := m.keys[p]; ok {
			m.collisions = append(m.collisions, Collision{Path: p, KeptKey: existing, DroppedKey: it.PermissionKey})
			continue
		}
		m.keys[p] = it.PermissionKey
		m.order = append(m.order, p)
	}
	return m
}

var defaultMap = GeneratePathPermissionMap(defaultTree.AllItems())

func DefaultMap() *PathPermissionMap { return defaultMap }

// KeyForPath resolves against the shipped tree.
func KeyForPath(path string) (string, bool) { return defaultMap.KeyForPath(path) }

func (m *PathPermissionMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

func (m *PathPermissionMap) Paths() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Entries yields path, key pairs in insertion order.
func (m *PathPermissionMap) Entries() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if m == nil {
			return
		}
		for _, p := range m.order {
			if !yield(p, m.keys[p]) {
				return
			}
		}
	}
}

func (m *PathPermissionMap) Collisions() []Collision {
	if m == nil {
		return nil
	}
	out := make([]Collision, len(m.collisions))
	copy(out, m.collisions)
	return out
}

// KeyForPath matches exactly first, then walks up one segment at a time so
// /dashboard/inventory/warranty/[id] lands on /dashboard/inventory/warranty.
// Prefixes only match on segment boundaries. false means no restriction is
// declared for the path.
func (m *PathPermissionMap) KeyForPath(raw string) (string, bool) {
	_, key, ok := m.Match(raw)
	return key, ok
}

// Match is KeyForPath that also reports which declared path matched.
func (m *PathPermissionMap) Match(raw string) (declared, key string, ok bool) {
	if m == nil || len(m.keys) == 0 {
		return "", "", false
	}
	p := NormalizePath(raw)
	for {
		if key, ok := m.keys[p]; ok {
			return p, key, true
		}
		if p == "/" {
			return "", "", false
		}
		idx := strings.LastIndex(p, "/")
		if idx <= 0 {
			p = "/"
			continue
		}
		p = p[:idx]
	}
}

// NormalizePath drops scheme and host, query and fragment, duplicate and
// trailing slashes, and route-group segments such as "(admin)".
func NormalizePath(raw string) string {
	p := strings.TrimSpace(raw)
	if strings.Contains(p, "://") {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	segs := strings.Split(p, "/")
	kept := make([]string, 0, len(segs))
	for _, s := range segs {
		if s == "" || s == "." {
			continue
		}
		if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
			continue
		}
		kept = append(kept, s)
	}
	return "/" + strings.Join(kept, "/")
}
