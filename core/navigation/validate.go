package navigation

import (
	"fmt"
	"strings"
)

type Issue struct {
	Section string
	Path    string
	Problem string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Section, i.Path, i.Problem)
}

// Validate reports authoring defects. knownKey may be nil to skip the
// key-space check.
func Validate(t *Tree, knownKey func(string) bool) []Issue {
	if t == nil {
		return []Issue{{Problem: "nil tree"}}
	}
	var issues []Issue
	seen := map[string]string{}
	for _, s := range t.sections {
		if strings.TrimSpace(s.Heading) == "" {
			issues = append(issues, Issue{Problem: "section without heading"})
		}
		if len(s.Items) == 0 {
			issues = append(issues, Issue{Section: s.Heading, Problem: "empty section"})
		}
		for _, it := range s.Items {
			add := func(problem string) {
				issues = append(issues, Issue{Section: s.Heading, Path: it.Path, Problem: problem})
			}
			if strings.TrimSpace(it.Label) == "" {
				add("missing label")
			}
			if strings.TrimSpace(it.Icon) == "" {
				add("missing icon")
			}
			switch {
			case !strings.HasPrefix(it.Path, "/"):
				add("path must start with /")
			case strings.ContainsAny(it.Path, "?#"):
				add("path must not carry query or fragment")
			case NormalizePath(it.Path) != it.Path:
				add("path is not normalized, want " + NormalizePath(it.Path))
			}
			key := strings.TrimSpace(it.PermissionKey)
			if key == "" {
				add("missing permission key")
			} else if knownKey != nil && !knownKey(key) {
				add("unknown permission key " + key)
			}
			norm := NormalizePath(it.Path)
			if prev, ok := seen[norm]; ok {
				add("duplicate path, first declared in " + prev)
			} else {
				seen[norm] = s.Heading
			}
		}
	}
	return issues
}
