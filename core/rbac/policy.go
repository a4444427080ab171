package rbac

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// Policy answers (role, tab, action) questions for the access-control
// endpoint. The enforcer is rebuilt on every Replace.
type Policy struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	// roles holds names and descriptions; grants live only in the enforcer.
	roles    map[string]Role
}

func NewPolicy(roles []Role) *Policy {
	p := &Policy{roles: map[string]Role{}}
	_ = p.Replace(roles)
	return p
}

func (p *Policy) Allowed(role, tab string, action Action) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.enforcer == nil {
		return false
	}
	ok, err := p.enforcer.Enforce(NormalizeRole(role), tab, string(action))
	if err != nil {
		return false
	}
	return ok
}

// PermissionsForRole folds the enforcer's (tab, action) rules for role into
// flags. Unknown roles get nil; a known role without grants gets an empty map.
func (p *Policy) PermissionsForRole(role string) TabPermissions {
	role = NormalizeRole(role)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.roles[role]; !ok || p.enforcer == nil {
		return nil
	}
	rules, err := p.enforcer.GetFilteredPolicy(0, role)
	if err != nil {
		return nil
	}
	perms := TabPermissions{}
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		a, ok := ParseAction(rule[2])
		if !ok {
			continue
		}
		perms[rule[1]] = perms[rule[1]].With(a)
	}
	return perms
}

func (p *Policy) HasRole(role string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.roles[NormalizeRole(role)]
	return ok
}

// Replace swaps the whole role set. On error the previous state is kept.
func (p *Policy) Replace(roles []Role) error {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return fmt.Errorf("rbac enforcer: %w", err)
	}
	next := make(map[string]Role, len(roles))
	grants := make(map[string]TabPermissions, len(roles))
	for _, r := range roles {
		name := NormalizeRole(r.Name)
		if name == "" {
			continue
		}
		next[name] = Role{Name: name, Description: r.Description}
		grants[name] = r.Permissions
	}
	var rules [][]string
	for name, perms := range grants {
		for tab, flags := range perms {
			for _, a := range flags.Actions() {
				rules = append(rules, []string{name, tab, string(a)})
			}
		}
	}
	if len(rules) > 0 {
		if _, err := e.AddPolicies(rules); err != nil {
			return fmt.Errorf("rbac load rules: %w", err)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enforcer = e
	p.roles = next
	return nil
}
