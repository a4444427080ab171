package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

var ErrBuiltInRole = errors.New("built-in role cannot be deleted")

type RolesStore interface {
	List(ctx context.Context) ([]Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	Upsert(ctx context.Context, role *Role) error
	SetGrant(ctx context.Context, roleName string, grant TabGrant) error
	Delete(ctx context.Context, name string) error
	EnsureBuiltIn(ctx context.Context, roles []Role) error
}

type rolesStore struct {
	db *sql.DB
}

func NewRolesStore(db *sql.DB) RolesStore {
	return &rolesStore{db: db}
}

func (s *rolesStore) List(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, description, built_in, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	var res []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, *r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	grants, err := s.allGrants(ctx)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Grants = grants[res[i].Name]
	}
	return res, nil
}

func (s *rolesStore) FindByName(ctx context.Context, name string) (*Role, error) {
	name = normalizeRoleName(name)
	row := s.db.QueryRowContext(ctx, `SELECT name, description, built_in, created_at, updated_at FROM roles WHERE name=?`, name)
	r, err := scanRole(row)
	if err != nil || r == nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT role_name, tab_key, can_read, can_create, can_update, can_delete FROM role_tab_grants WHERE role_name=? ORDER BY tab_key`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		_, g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		r.Grants = append(r.Grants, g)
	}
	return r, rows.Err()
}

func scanRole(row rowScanner) (*Role, error) {
	var r Role
	var builtIn int
	if err := row.Scan(&r.Name, &r.Description, &builtIn, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r.BuiltIn = builtIn == 1
	return &r, nil
}

func scanGrant(row rowScanner) (string, TabGrant, error) {
	var role string
	var g TabGrant
	var cr, cc, cu, cd int
	if err := row.Scan(&role, &g.TabKey, &cr, &cc, &cu, &cd); err != nil {
		return "", TabGrant{}, err
	}
	g.Read, g.Create, g.Update, g.Delete = cr == 1, cc == 1, cu == 1, cd == 1
	return role, g, nil
}

func (s *rolesStore) allGrants(ctx context.Context) (map[string][]TabGrant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role_name, tab_key, can_read, can_create, can_update, can_delete FROM role_tab_grants ORDER BY role_name, tab_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]TabGrant{}
	for rows.Next() {
		role, g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out[role] = append(out[role], g)
	}
	return out, rows.Err()
}

// Upsert writes the role row and replaces its grants in one transaction.
func (s *rolesStore) Upsert(ctx context.Context, role *Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := upsertRoleTx(ctx, tx, role); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func upsertRoleTx(ctx context.Context, tx *sql.Tx, role *Role) error {
	role.Name = normalizeRoleName(role.Name)
	if role.Name == "" {
		return errors.New("role name is required")
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `INSERT INTO roles(name, description, built_in, created_at, updated_at) VALUES(?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET description=excluded.description, updated_at=excluded.updated_at`,
		role.Name, role.Description, boolToInt(role.BuiltIn), now, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM role_tab_grants WHERE role_name=?`, role.Name); err != nil {
		return err
	}
	for _, g := range role.Grants {
		if err := insertGrantTx(ctx, tx, role.Name, g); err != nil {
			return err
		}
	}
	return nil
}

func insertGrantTx(ctx context.Context, tx *sql.Tx, roleName string, g TabGrant) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO role_tab_grants(role_name, tab_key, can_read, can_create, can_update, can_delete) VALUES(?,?,?,?,?,?)
		ON CONFLICT(role_name, tab_key) DO UPDATE SET can_read=excluded.can_read, can_create=excluded.can_create, can_update=excluded.can_update, can_delete=excluded.can_delete`,
		roleName, strings.TrimSpace(g.TabKey), boolToInt(g.Read), boolToInt(g.Create), boolToInt(g.Update), boolToInt(g.Delete))
	return err
}

func (s *rolesStore) SetGrant(ctx context.Context, roleName string, grant TabGrant) error {
	roleName = normalizeRoleName(roleName)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM roles WHERE name=?`, roleName).Scan(&n); err != nil {
		_ = tx.Rollback()
		return err
	}
	if n == 0 {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}
	if !grant.Read && !grant.Create && !grant.Update && !grant.Delete {
		_, err = tx.ExecContext(ctx, `DELETE FROM role_tab_grants WHERE role_name=? AND tab_key=?`, roleName, grant.TabKey)
	} else {
		err = insertGrantTx(ctx, tx, roleName, grant)
	}
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE roles SET updated_at=? WHERE name=?`, time.Now().UTC(), roleName); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *rolesStore) Delete(ctx context.Context, name string) error {
	existing, err := s.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return sql.ErrNoRows
	}
	if existing.BuiltIn {
		return ErrBuiltInRole
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM role_tab_grants WHERE role_name=?`, existing.Name); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE name=? AND built_in=0`, existing.Name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// EnsureBuiltIn inserts missing built-in roles; existing rows keep their edited grants.
func (s *rolesStore) EnsureBuiltIn(ctx context.Context, roles []Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, r := range roles {
		r.Name = normalizeRoleName(r.Name)
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM roles WHERE name=?`, r.Name).Scan(&n); err != nil {
			_ = tx.Rollback()
			return err
		}
		if n > 0 {
			continue
		}
		r.BuiltIn = true
		if err := upsertRoleTx(ctx, tx, &r); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func normalizeRoleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
