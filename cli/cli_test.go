package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"storedesk-admin/config"
	"storedesk-admin/core/navigation"
	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func useTempDB(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{
		AppEnv:   "dev",
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "cli.db"),
		Pepper:   "pep",
	}
	prev := loadConfig
	loadConfig = func() (*config.AppConfig, error) { return cfg, nil }
	t.Cleanup(func() { loadConfig = prev })
	return cfg
}

func TestNavCheckBuiltInTree(t *testing.T) {
	out, err := run(t, "nav", "check")
	require.NoError(t, err)
	require.Contains(t, out, "navigation ok")
}

func TestNavCheckReportsBadFile(t *testing.T) {
	tree, err := navigation.Parse([]byte(`
sections:
  - heading: Inventory
    items:
      - {label: Category, icon: folder, path: /dashboard/inventory/category, permission: inventory.category}
      - {label: Again, icon: folder, path: /dashboard/inventory/category, permission: made.up}
`))
	require.NoError(t, err)
	var out bytes.Buffer
	err = checkTree(&out, tree)
	require.ErrorIs(t, err, errInvalidTree)
	require.Contains(t, out.String(), "collision: /dashboard/inventory/category")
	require.Contains(t, out.String(), "unknown permission key made.up")
}

func TestNavMapListsWarranty(t *testing.T) {
	out, err := run(t, "nav", "map")
	require.NoError(t, err)
	require.Contains(t, out, "/dashboard/inventory/warranty")
	require.Contains(t, out, "inventory.warranty")
}

func TestCreateUserAndGrant(t *testing.T) {
	cfg := useTempDB(t)

	out, err := run(t, "create-user", "-u", "Cashier02", "-p", "counter-2024!", "-r", "cashier")
	require.NoError(t, err)
	require.Contains(t, out, "created user cashier02")

	_, err = run(t, "create-user", "-u", "cashier02", "-p", "counter-2024!", "-r", "cashier")
	require.ErrorContains(t, err, "already exists")

	_, err = run(t, "create-user", "-u", "ghost01", "-p", "counter-2024!", "-r", "pilot")
	require.ErrorContains(t, err, "unknown role")

	out, err = run(t, "grant", "cashier", "inventory.warranty", "--actions", "read,update")
	require.NoError(t, err)
	require.Contains(t, out, "actions=read,update")

	_, err = run(t, "grant", "cashier", "made.up", "--actions", "read")
	require.ErrorContains(t, err, "unknown tab")

	_, err = run(t, "grant", "cashier", "inventory.warranty", "--actions", "approve")
	require.ErrorContains(t, err, "unknown action")

	out, err = run(t, "roles")
	require.NoError(t, err)
	var found bool
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) == 3 && f[0] == "cashier" && f[1] == "inventory.warranty" {
			found = true
			require.Equal(t, "read,update", f[2])
		}
	}
	require.True(t, found, "cashier warranty grant missing:\n%s", out)

	out, err = run(t, "set-role", "cashier02", "manager")
	require.NoError(t, err)
	require.Contains(t, out, "role=manager")

	db, err := store.NewDB(cfg, utils.NewLogger())
	require.NoError(t, err)
	defer db.Close()
	u, err := store.NewUsersStore(db).FindByUsername(context.Background(), "cashier02")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "manager", u.Role)
	require.True(t, u.Active)
}

func TestMigratePrintsVersion(t *testing.T) {
	useTempDB(t)
	out, err := run(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "schema version")
}
