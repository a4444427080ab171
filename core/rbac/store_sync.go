package rbac

import (
	"context"

	"storedesk-admin/core/store"
)

func EnsureBuiltInAndRefresh(ctx context.Context, roles store.RolesStore, policy *Policy) error {
	if roles == nil || policy == nil {
		return nil
	}
	if err := roles.EnsureBuiltIn(ctx, DefaultStoreRoles()); err != nil {
		return err
	}
	return RefreshFromStore(ctx, roles, policy)
}

func RefreshFromStore(ctx context.Context, roles store.RolesStore, policy *Policy) error {
	if roles == nil || policy == nil {
		return nil
	}
	items, err := roles.List(ctx)
	if err != nil {
		return err
	}
	out := make([]Role, 0, len(items))
	for _, item := range items {
		out = append(out, RoleFromStore(item))
	}
	return policy.Replace(out)
}

func RoleFromStore(item store.Role) Role {
	perms := make(TabPermissions, len(item.Grants))
	for _, g := range item.Grants {
		f := Flags{Read: g.Read, Create: g.Create, Update: g.Update, Delete: g.Delete}
		if f.Empty() {
			continue
		}
		perms[g.TabKey] = f
	}
	return Role{Name: item.Name, Description: item.Description, Permissions: perms}
}

func RoleToStore(r Role, builtIn bool) store.Role {
	grants := make([]store.TabGrant, 0, len(r.Permissions))
	for _, tab := range r.Permissions.Keys() {
		f := r.Permissions[tab]
		grants = append(grants, store.TabGrant{TabKey: tab, Read: f.Read, Create: f.Create, Update: f.Update, Delete: f.Delete})
	}
	return store.Role{
		Name:        NormalizeRole(r.Name),
		Description: r.Description,
		BuiltIn:     builtIn,
		Grants:      grants,
	}
}

func DefaultStoreRoles() []store.Role {
	def := DefaultRoles()
	out := make([]store.Role, 0, len(def))
	for _, r := range def {
		out = append(out, RoleToStore(r, true))
	}
	return out
}
