package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithAliasEnv(t *testing.T) {
	t.Setenv("APP_CONFIG", "config/does-not-exist.yaml")
	t.Setenv("STOREDESK_DB_DRIVER", "sqlite")
	t.Setenv("STOREDESK_DB_PATH", filepath.Join(t.TempDir(), "storedesk.db"))
	t.Setenv("STOREDESK_LISTEN_ADDR", "127.0.0.1:8080")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "dev")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9090" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected dev env, got %s", cfg.AppEnv)
	}
	if cfg.Access.UpstreamURL != "http://127.0.0.1:9090" {
		t.Fatalf("upstream must default to loopback, got %s", cfg.Access.UpstreamURL)
	}
	if cfg.Access.CacheTTL != 5*time.Minute {
		t.Fatalf("unexpected cache ttl: %s", cfg.Access.CacheTTL)
	}
	if cfg.Access.UnmappedPolicy != "allow" {
		t.Fatalf("unexpected unmapped policy: %s", cfg.Access.UnmappedPolicy)
	}
	if len(cfg.Access.BypassRoles) != 2 || cfg.Access.BypassRoles[0] != "superadmin" {
		t.Fatalf("unexpected bypass roles: %v", cfg.Access.BypassRoles)
	}
	if cfg.EffectivePepper() == "" {
		t.Fatal("dev env must fall back to dev pepper")
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	body := `app_env: dev
db_driver: sqlite
db_path: ` + filepath.ToSlash(filepath.Join(dir, "x.db")) + `
access:
  cache_ttl: 90s
  unmapped_policy: DENY
  bypass_roles: [" Admin ", "admin"]
storage:
  driver: db
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APP_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Access.CacheTTL != 90*time.Second {
		t.Fatalf("unexpected ttl: %s", cfg.Access.CacheTTL)
	}
	if cfg.Access.UnmappedPolicy != "deny" {
		t.Fatalf("policy must be normalized, got %s", cfg.Access.UnmappedPolicy)
	}
	if len(cfg.Access.BypassRoles) != 1 || cfg.Access.BypassRoles[0] != "admin" {
		t.Fatalf("bypass roles must be normalized and deduplicated: %v", cfg.Access.BypassRoles)
	}
	if cfg.Storage.Driver != "db" {
		t.Fatalf("unexpected storage driver: %s", cfg.Storage.Driver)
	}
}

func TestListenAddrWithPort(t *testing.T) {
	if got := listenAddrWithPort("0.0.0.0:8080", "9000"); got != "0.0.0.0:9000" {
		t.Fatalf("unexpected addr: %s", got)
	}
	if got := listenAddrWithPort("127.0.0.1:8080", "abc"); got != "127.0.0.1:8080" {
		t.Fatalf("non numeric port must be ignored: %s", got)
	}
}

func TestLoopbackURL(t *testing.T) {
	if got := loopbackURL("0.0.0.0:8443", true); got != "https://127.0.0.1:8443" {
		t.Fatalf("unexpected url: %s", got)
	}
	if got := loopbackURL("10.0.0.5:8080", false); got != "http://10.0.0.5:8080" {
		t.Fatalf("unexpected url: %s", got)
	}
}
