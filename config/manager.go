package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	defaultConfigPath = "config/app.yaml"
	envPrefix         = "STOREDESK_"
)

func Load() (*AppConfig, error) {
	_ = godotenv.Load(".env")
	cfg := &AppConfig{}
	cfgPath := resolveConfigPath()
	if st, err := os.Stat(cfgPath); err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(cfgPath, cfg); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	applyEnvAliases(cfg)
	normalizeConfig(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvAliases(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	if v := getEnv("ENV", "APP_ENV"); v != "" {
		cfg.AppEnv = strings.TrimSpace(v)
	}
	if v := getEnv("PORT", envPrefix+"PORT"); v != "" {
		cfg.ListenAddr = listenAddrWithPort(cfg.ListenAddr, v)
	}
	if v := getEnv("DATABASE_URL"); v != "" && cfg.DBURL == "" {
		cfg.DBURL = strings.TrimSpace(v)
	}
	if v := getEnv("REDIS_ADDR"); v != "" && cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = strings.TrimSpace(v)
	}
}

func normalizeConfig(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.DBURL = strings.TrimSpace(cfg.DBURL)
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.Pepper = strings.TrimSpace(cfg.Pepper)
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Access.UnmappedPolicy = strings.ToLower(strings.TrimSpace(cfg.Access.UnmappedPolicy))
	cfg.Access.UpstreamURL = strings.TrimRight(strings.TrimSpace(cfg.Access.UpstreamURL), "/")
	cfg.Access.SafeRoute = strings.TrimSpace(cfg.Access.SafeRoute)
	cfg.Access.BypassRoles = cleanList(cfg.Access.BypassRoles, true)
	cfg.Access.PublicPaths = cleanList(cfg.Access.PublicPaths, false)
	cfg.Security.TrustedProxies = cleanList(cfg.Security.TrustedProxies, false)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "0.0.0.0:8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Access.UnmappedPolicy == "" {
		cfg.Access.UnmappedPolicy = "allow"
	}
	if cfg.Access.SafeRoute == "" {
		cfg.Access.SafeRoute = "/dashboard"
	}
	if cfg.Access.StorageName == "" {
		cfg.Access.StorageName = "permission-storage"
	}
	if cfg.Access.UpstreamURL == "" {
		cfg.Access.UpstreamURL = loopbackURL(cfg.ListenAddr, cfg.TLSEnabled)
	}
	if cfg.Guard.RetryAfter <= 0 {
		cfg.Guard.RetryAfter = 1
	}
	if cfg.Sessions.CookieName == "" {
		cfg.Sessions.CookieName = "storedesk_session"
	}
}

func cleanList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		v := strings.TrimSpace(raw)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// loopbackURL points the permission fetcher at this same process.
func loopbackURL(listenAddr string, tls bool) string {
	scheme := "http"
	if tls {
		scheme = "https"
	}
	host, port := "127.0.0.1", "8080"
	if idx := strings.LastIndex(listenAddr, ":"); idx >= 0 {
		if h := listenAddr[:idx]; h != "" && h != "0.0.0.0" && h != "::" && h != "[::]" {
			host = h
		}
		if p := listenAddr[idx+1:]; p != "" {
			port = p
		}
	}
	return scheme + "://" + host + ":" + port
}

func getEnv(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func resolveConfigPath() string {
	if v := getEnv("APP_CONFIG", envPrefix+"APP_CONFIG"); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultConfigPath
}

func listenAddrWithPort(currentAddr, portRaw string) string {
	port := strings.TrimSpace(portRaw)
	if port == "" {
		return currentAddr
	}
	if _, err := strconv.Atoi(port); err != nil {
		return currentAddr
	}
	host := "0.0.0.0"
	parts := strings.Split(strings.TrimSpace(currentAddr), ":")
	if len(parts) > 1 {
		host = strings.Join(parts[:len(parts)-1], ":")
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + port
}
