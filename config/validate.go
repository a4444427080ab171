package config

import (
	"fmt"
	"strings"
	"time"
)

const defaultPepper = "storedesk-dev-pepper-change-me"

func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.DBDriver {
	case "", "postgres", "pg":
		if cfg.DBURL == "" && cfg.DBPath == "" {
			return fmt.Errorf("db_url must be set for postgres driver")
		}
	case "sqlite", "sqlite3":
		if cfg.DBPath == "" {
			return fmt.Errorf("db_path must be set for sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported db_driver: %s", cfg.DBDriver)
	}
	switch cfg.Storage.Driver {
	case "memory", "redis", "db":
	default:
		return fmt.Errorf("unsupported storage.driver: %s", cfg.Storage.Driver)
	}
	switch cfg.Access.UnmappedPolicy {
	case "allow", "deny":
	default:
		return fmt.Errorf("access.unmapped_policy must be allow or deny, got %q", cfg.Access.UnmappedPolicy)
	}
	if cfg.Access.CacheTTL <= 0 {
		return fmt.Errorf("access.cache_ttl must be positive")
	}
	if cfg.Access.FetchTimeout <= 0 {
		return fmt.Errorf("access.fetch_timeout must be positive")
	}
	if cfg.Guard.WaitTimeout < 0 || cfg.Guard.WaitTimeout > time.Minute {
		return fmt.Errorf("guard.wait_timeout must be between 0 and 1m")
	}
	if !strings.HasPrefix(cfg.Access.SafeRoute, "/") {
		return fmt.Errorf("access.safe_route must be an absolute path")
	}
	for _, p := range cfg.Access.PublicPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("access.public_paths entry %q must start with /", p)
		}
	}
	if cfg.Sessions.TTL <= 0 {
		return fmt.Errorf("sessions.ttl must be positive")
	}
	if cfg.TLSEnabled && (cfg.TLSCert == "" || cfg.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key are required when tls_enabled=true")
	}
	if !cfg.IsDev() {
		if cfg.Pepper == "" || cfg.Pepper == defaultPepper {
			return fmt.Errorf("pepper must be set to a non-default value outside APP_ENV=dev")
		}
	}
	return nil
}

// EffectivePepper falls back to the dev pepper only in dev.
func (c *AppConfig) EffectivePepper() string {
	if c == nil {
		return ""
	}
	if c.Pepper == "" && c.IsDev() {
		return defaultPepper
	}
	return c.Pepper
}
