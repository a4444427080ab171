package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *AppConfig {
	cfg := &AppConfig{
		AppEnv:   "prod",
		DBDriver: "postgres",
		DBURL:    "postgres://localhost/storedesk",
		Pepper:   "prod-pepper",
		Sessions: SessionsConfig{TTL: time.Hour},
		Access: AccessConfig{
			CacheTTL:       5 * time.Minute,
			FetchTimeout:   10 * time.Second,
			UnmappedPolicy: "allow",
			SafeRoute:      "/dashboard",
			PublicPaths:    []string{"/login"},
		},
		Guard:   GuardConfig{WaitTimeout: 2 * time.Second},
		Storage: StorageConfig{Driver: "memory"},
	}
	return cfg
}

func TestValidateAcceptsBaseline(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("baseline must validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"unmapped policy", func(c *AppConfig) { c.Access.UnmappedPolicy = "maybe" }, "unmapped_policy"},
		{"storage driver", func(c *AppConfig) { c.Storage.Driver = "etcd" }, "storage.driver"},
		{"cache ttl", func(c *AppConfig) { c.Access.CacheTTL = 0 }, "cache_ttl"},
		{"safe route", func(c *AppConfig) { c.Access.SafeRoute = "dashboard" }, "safe_route"},
		{"public path", func(c *AppConfig) { c.Access.PublicPaths = []string{"login"} }, "public_paths"},
		{"pepper", func(c *AppConfig) { c.Pepper = "" }, "pepper"},
		{"sqlite path", func(c *AppConfig) { c.DBDriver = "sqlite"; c.DBPath = "" }, "db_path"},
		{"tls", func(c *AppConfig) { c.TLSEnabled = true }, "tls_cert"},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		err := Validate(cfg)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestValidateDevAllowsEmptyPepper(t *testing.T) {
	cfg := validConfig()
	cfg.AppEnv = "dev"
	cfg.Pepper = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("dev must allow empty pepper: %v", err)
	}
}
