package rbac

import (
	"sort"
	"strings"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var actions = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

func AllActions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

func ParseAction(raw string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range actions {
		if a == known {
			return a, true
		}
	}
	return "", false
}

// Flags is the CRUD grant of one tab. Zero value grants nothing.
type Flags struct {
	Read   bool `json:"read"`
	Create bool `json:"create"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

func FullAccess() Flags { return Flags{Read: true, Create: true, Update: true, Delete: true} }

func ReadOnly() Flags { return Flags{Read: true} }

func (f Flags) Allows(a Action) bool {
	switch a {
	case ActionRead:
		return f.Read
	case ActionCreate:
		return f.Create
	case ActionUpdate:
		return f.Update
	case ActionDelete:
		return f.Delete
	default:
		return false
	}
}

func (f Flags) With(a Action) Flags {
	switch a {
	case ActionRead:
		f.Read = true
	case ActionCreate:
		f.Create = true
	case ActionUpdate:
		f.Update = true
	case ActionDelete:
		f.Delete = true
	}
	return f
}

func (f Flags) Actions() []Action {
	var out []Action
	for _, a := range actions {
		if f.Allows(a) {
			out = append(out, a)
		}
	}
	return out
}

func (f Flags) Empty() bool { return !f.Read && !f.Create && !f.Update && !f.Delete }

// TabPermissions maps a tab key to its flags. A missing key means no access.
type TabPermissions map[string]Flags

func (t TabPermissions) Allows(tabKey string, a Action) bool {
	if t == nil {
		return false
	}
	f, ok := t[tabKey]
	if !ok {
		return false
	}
	return f.Allows(a)
}

func (t TabPermissions) Clone() TabPermissions {
	out := make(TabPermissions, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func (t TabPermissions) Keys() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type Role struct {
	Name        string
	Description string
	Permissions TabPermissions
}

const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleCashier    = "cashier"
	RoleStaff      = "staff"
)

var defaultBypassRoles = []string{RoleSuperadmin, RoleAdmin}

func DefaultBypassRoles() []string {
	out := make([]string, len(defaultBypassRoles))
	copy(out, defaultBypassRoles)
	return out
}

func IsBypassRole(role string, bypass []string) bool {
	role = NormalizeRole(role)
	if role == "" {
		return false
	}
	for _, b := range bypass {
		if NormalizeRole(b) == role {
			return true
		}
	}
	return false
}

func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

var tabKeys = []string{
	"dashboard",
	"sales.pos", "sales.orders", "sales.returns", "sales.invoices", "sales.quotations",
	"customers.list", "customers.groups",
	"inventory.products", "inventory.category", "inventory.brands", "inventory.units",
	"inventory.stock", "inventory.stock_transfer", "inventory.warranty", "inventory.barcodes",
	"promotions.coupons", "promotions.gift_cards", "promotions.discounts",
	"purchases.orders", "purchases.suppliers",
	"hrm.employees", "hrm.attendance", "hrm.leaves", "hrm.payroll", "hrm.holidays",
	"finance.expenses", "finance.taxes", "finance.accounts",
	"reports.sales", "reports.inventory", "reports.profit",
	"settings.store", "settings.users", "settings.roles", "settings.payment_methods",
	"superadmin.overview", "superadmin.tenants", "superadmin.subscriptions", "superadmin.plans",
}

var knownTabSet = buildTabSet()

func buildTabSet() map[string]struct{} {
	out := make(map[string]struct{}, len(tabKeys))
	for _, k := range tabKeys {
		out[k] = struct{}{}
	}
	return out
}

func AllTabKeys() []string {
	out := make([]string, len(tabKeys))
	copy(out, tabKeys)
	return out
}

func IsKnownTab(key string) bool {
	_, ok := knownTabSet[key]
	return ok
}

func NormalizeTabKeys(in []string) ([]string, []string) {
	validSet := map[string]struct{}{}
	invalidSet := map[string]struct{}{}
	for _, raw := range in {
		k := strings.ToLower(strings.TrimSpace(raw))
		if k == "" {
			continue
		}
		if IsKnownTab(k) {
			validSet[k] = struct{}{}
			continue
		}
		invalidSet[k] = struct{}{}
	}
	return setToSorted(validSet), setToSorted(invalidSet)
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func grantAll(keys []string, f Flags) TabPermissions {
	out := make(TabPermissions, len(keys))
	for _, k := range keys {
		out[k] = f
	}
	return out
}

func withoutPrefix(keys []string, prefixes ...string) []string {
	var out []string
	for _, k := range keys {
		skip := false
		for _, p := range prefixes {
			if strings.HasPrefix(k, p) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, k)
		}
	}
	return out
}

// Admin roles carry explicit grants even though they bypass checks, so the
// payload stays meaningful if the bypass list is narrowed in config.
func defaultRoles() []Role {
	managerTabs := grantAll(withoutPrefix(tabKeys, "superadmin.", "settings.roles"), FullAccess())
	managerTabs["settings.roles"] = ReadOnly()
	return []Role{
		{Name: RoleSuperadmin, Description: "platform superadmin", Permissions: grantAll(tabKeys, FullAccess())},
		{Name: RoleAdmin, Description: "tenant administrator", Permissions: grantAll(withoutPrefix(tabKeys, "superadmin."), FullAccess())},
		{Name: RoleManager, Description: "store manager", Permissions: managerTabs},
		{Name: RoleCashier, Description: "point of sale cashier", Permissions: TabPermissions{
			"dashboard":             ReadOnly(),
			"sales.pos":             FullAccess(),
			"sales.orders":          {Read: true, Create: true},
			"sales.returns":         {Read: true, Create: true},
			"customers.list":        {Read: true, Create: true, Update: true},
			"inventory.products":    ReadOnly(),
			"inventory.category":    ReadOnly(),
			"promotions.coupons":    ReadOnly(),
			"promotions.gift_cards": {Read: true, Create: true},
		}},
		{Name: RoleStaff, Description: "general staff", Permissions: TabPermissions{
			"dashboard":          ReadOnly(),
			"inventory.products": ReadOnly(),
			"inventory.stock":    ReadOnly(),
			"hrm.attendance":     {Read: true, Create: true},
			"hrm.leaves":         {Read: true, Create: true},
			"hrm.holidays":       ReadOnly(),
		}},
	}
}

func DefaultRoles() []Role {
	src := defaultRoles()
	out := make([]Role, len(src))
	for i, r := range src {
		out[i] = Role{Name: r.Name, Description: r.Description, Permissions: r.Permissions.Clone()}
	}
	return out
}
