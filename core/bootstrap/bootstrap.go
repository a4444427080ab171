package bootstrap

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"storedesk-admin/config"
	"storedesk-admin/core/auth"
	"storedesk-admin/core/rbac"
	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

const (
	DefaultAdminUsername = "admin"
	adminPasswordEnv     = "STOREDESK_ADMIN_PASSWORD"
)

// EnsureDefaultAdmin ensures the superadmin account exists.
func EnsureDefaultAdmin(ctx context.Context, db *sql.DB, cfg *config.AppConfig, logger *utils.Logger) error {
	return EnsureDefaultAdminWithStore(ctx, store.NewUsersStore(db), cfg, logger)
}

// EnsureDefaultAdminWithStore creates the account with STOREDESK_ADMIN_PASSWORD
// or a generated password printed once. An existing admin keeps its password
// but is moved back to the superadmin role.
func EnsureDefaultAdminWithStore(ctx context.Context, us store.UsersStore, cfg *config.AppConfig, logger *utils.Logger) error {
	existing, err := us.FindByUsername(ctx, DefaultAdminUsername)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Role != rbac.RoleSuperadmin {
			if err := us.SetRole(ctx, existing.ID, rbac.RoleSuperadmin); err != nil {
				return err
			}
			logger.Printf("default admin role restored to %s", rbac.RoleSuperadmin)
		}
		return nil
	}
	password := strings.TrimSpace(os.Getenv(adminPasswordEnv))
	generated := false
	if password == "" {
		password, err = utils.RandPassword(12)
		if err != nil {
			return err
		}
		generated = true
	}
	ph, err := auth.HashPassword(password, cfg.EffectivePepper())
	if err != nil {
		return err
	}
	_, err = us.Create(ctx, &store.User{
		Username:     DefaultAdminUsername,
		FullName:     "Platform Administrator",
		Role:         rbac.RoleSuperadmin,
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
		Active:       true,
	})
	if err != nil {
		return err
	}
	if generated {
		logger.Printf("default admin created username=%s password=%s", DefaultAdminUsername, password)
	} else {
		logger.Printf("default admin created username=%s", DefaultAdminUsername)
	}
	return nil
}
