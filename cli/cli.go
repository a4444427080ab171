package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"storedesk-admin/config"
	"storedesk-admin/core/auth"
	"storedesk-admin/core/navigation"
	"storedesk-admin/core/rbac"
	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

const commandTimeout = time.Minute

// loadConfig is swapped in tests.
var loadConfig = config.Load

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "storedeskctl",
		Short:        "Storedesk admin maintenance tool",
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCommand(),
		newCreateUserCommand(),
		newSetRoleCommand(),
		newRolesCommand(),
		newGrantCommand(),
		newNavCommand(),
	)
	return root
}

type env struct {
	cfg    *config.AppConfig
	db     *sql.DB
	logger *utils.Logger
}

func (e *env) Close() {
	if e.db != nil {
		_ = e.db.Close()
	}
}

// openEnv loads config, opens the database and brings the schema and the
// built-in roles up to date.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := utils.NewLoggerWithLevel(cfg.LogLevel)
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := store.ApplyMigrations(ctx, db, store.Dialect(cfg), logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if err := store.NewRolesStore(db).EnsureBuiltIn(ctx, rbac.DefaultStoreRoles()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("built-in roles: %w", err)
	}
	return &env{cfg: cfg, db: db, logger: logger}, nil
}

func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and print the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				st, err := store.GetMigrationStatus(ctx, e.db, store.Dialect(e.cfg))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (latest %d)\n", st.Current, st.Latest)
				return nil
			})
		},
	}
}

func newCreateUserCommand() *cobra.Command {
	var username, password, role, fullName string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a login account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username = strings.ToLower(strings.TrimSpace(username))
			if err := utils.ValidateUsername(username); err != nil {
				return err
			}
			if err := utils.ValidatePassword(password); err != nil {
				return err
			}
			role = rbac.NormalizeRole(role)
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if r, err := store.NewRolesStore(e.db).FindByName(ctx, role); err != nil {
					return err
				} else if r == nil {
					return fmt.Errorf("unknown role %q", role)
				}
				users := store.NewUsersStore(e.db)
				if existing, err := users.FindByUsername(ctx, username); err != nil {
					return err
				} else if existing != nil {
					return fmt.Errorf("user %q already exists", username)
				}
				ph, err := auth.HashPassword(password, e.cfg.EffectivePepper())
				if err != nil {
					return err
				}
				id, err := users.Create(ctx, &store.User{
					Username:     username,
					FullName:     strings.TrimSpace(fullName),
					Role:         role,
					PasswordHash: ph.Hash,
					Salt:         ph.Salt,
					Active:       true,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s id=%d role=%s\n", username, id, role)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "initial password")
	cmd.Flags().StringVarP(&role, "role", "r", "staff", "role name")
	cmd.Flags().StringVar(&fullName, "full-name", "", "display name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSetRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role USERNAME ROLE",
		Short: "Move a user to another role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := strings.ToLower(strings.TrimSpace(args[0]))
			role := rbac.NormalizeRole(args[1])
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if r, err := store.NewRolesStore(e.db).FindByName(ctx, role); err != nil {
					return err
				} else if r == nil {
					return fmt.Errorf("unknown role %q", role)
				}
				users := store.NewUsersStore(e.db)
				u, err := users.FindByUsername(ctx, username)
				if err != nil {
					return err
				}
				if u == nil {
					return fmt.Errorf("user %q not found", username)
				}
				if err := users.SetRole(ctx, u.ID, role); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %s role=%s\n", username, role)
				return nil
			})
		},
	}
}

func newRolesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List roles and their tab grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				items, err := store.NewRolesStore(e.db).List(ctx)
				if err != nil {
					return err
				}
				return printRoles(cmd.OutOrStdout(), items)
			})
		},
	}
}

func printRoles(w io.Writer, items []store.Role) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tTAB\tACTIONS")
	for _, r := range items {
		role := rbac.RoleFromStore(r)
		if len(role.Permissions) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\n", r.Name)
			continue
		}
		for _, tab := range role.Permissions.Keys() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, tab, actionList(role.Permissions[tab]))
		}
	}
	return tw.Flush()
}

func actionList(f rbac.Flags) string {
	acts := f.Actions()
	out := make([]string, 0, len(acts))
	for _, a := range acts {
		out = append(out, string(a))
	}
	return strings.Join(out, ",")
}

func newGrantCommand() *cobra.Command {
	var actions []string
	cmd := &cobra.Command{
		Use:   "grant ROLE TAB",
		Short: "Set the actions a role may perform on a tab",
		Long:  "Replaces the role's grant on TAB with --actions. An empty list revokes the tab.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := rbac.NormalizeRole(args[0])
			tab := strings.ToLower(strings.TrimSpace(args[1]))
			if !rbac.IsKnownTab(tab) {
				return fmt.Errorf("unknown tab %q", tab)
			}
			flags, err := parseActions(actions)
			if err != nil {
				return err
			}
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				roles := store.NewRolesStore(e.db)
				r, err := roles.FindByName(ctx, role)
				if err != nil {
					return err
				}
				if r == nil {
					return fmt.Errorf("unknown role %q", role)
				}
				grant := store.TabGrant{TabKey: tab, Read: flags.Read, Create: flags.Create, Update: flags.Update, Delete: flags.Delete}
				if err := roles.SetGrant(ctx, role, grant); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "role %s tab %s actions=%s\n", role, tab, actionList(flags))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&actions, "actions", "a", nil, "comma separated actions: read,create,update,delete")
	return cmd
}

func parseActions(raw []string) (rbac.Flags, error) {
	var f rbac.Flags
	for _, item := range raw {
		a, ok := rbac.ParseAction(item)
		if !ok {
			return rbac.Flags{}, fmt.Errorf("unknown action %q", item)
		}
		f = f.With(a)
	}
	return f, nil
}

func newNavCommand() *cobra.Command {
	nav := &cobra.Command{
		Use:   "nav",
		Short: "Inspect the sidebar navigation tree",
	}
	var file string
	check := &cobra.Command{
		Use:   "check",
		Short: "Validate the navigation tree and its path map",
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(file)
			if err != nil {
				return err
			}
			return checkTree(cmd.OutOrStdout(), tree)
		},
	}
	check.Flags().StringVarP(&file, "file", "f", "", "YAML tree to validate instead of the built-in one")

	list := &cobra.Command{
		Use:   "map",
		Short: "Print every route path and the tab key guarding it",
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(file)
			if err != nil {
				return err
			}
			m := navigation.GeneratePathPermissionMap(tree.AllItems())
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tTAB")
			for path, key := range m.Entries() {
				fmt.Fprintf(tw, "%s\t%s\n", path, key)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVarP(&file, "file", "f", "", "YAML tree to map instead of the built-in one")

	nav.AddCommand(check, list)
	return nav
}

func loadTree(file string) (*navigation.Tree, error) {
	if strings.TrimSpace(file) == "" {
		return navigation.Default(), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return navigation.Parse(data)
}

var errInvalidTree = errors.New("navigation tree has issues")

func checkTree(w io.Writer, tree *navigation.Tree) error {
	issues := navigation.Validate(tree, rbac.IsKnownTab)
	collisions := navigation.GeneratePathPermissionMap(tree.AllItems()).Collisions()
	sort.Slice(issues, func(i, j int) bool { return issues[i].String() < issues[j].String() })
	for _, is := range issues {
		fmt.Fprintf(w, "issue: %s\n", is)
	}
	for _, c := range collisions {
		fmt.Fprintf(w, "collision: %s kept=%s dropped=%s\n", c.Path, c.KeptKey, c.DroppedKey)
	}
	if len(issues) > 0 || len(collisions) > 0 {
		return fmt.Errorf("%w: %d issues, %d collisions", errInvalidTree, len(issues), len(collisions))
	}
	fmt.Fprintln(w, "navigation ok")
	return nil
}
