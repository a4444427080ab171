package api

import (
	"database/sql"

	"storedesk-admin/core/access"
	"storedesk-admin/core/auth"
	"storedesk-admin/core/janitor"
	"storedesk-admin/core/navigation"
	"storedesk-admin/core/rbac"
	"storedesk-admin/core/store"
)

type ServerDeps struct {
	DB             *sql.DB
	Users          store.UsersStore
	Sessions       store.SessionStore
	Roles          store.RolesStore
	Policy         *rbac.Policy
	SessionManager *auth.SessionManager
	Registry       *access.Registry
	Navigation     *navigation.Tree
	Janitor        *janitor.Janitor
}
