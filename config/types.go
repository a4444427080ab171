package config

import "time"

type AppConfig struct {
	ListenAddr    string              `yaml:"listen_addr" env:"STOREDESK_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	AppEnv        string              `yaml:"app_env" env:"STOREDESK_APP_ENV" env-default:"prod"`
	LogLevel      string              `yaml:"log_level" env:"STOREDESK_LOG_LEVEL" env-default:"info"`
	DBDriver      string              `yaml:"db_driver" env:"STOREDESK_DB_DRIVER"`
	DBURL         string              `yaml:"db_url" env:"STOREDESK_DB_URL"`
	DBPath        string              `yaml:"db_path" env:"STOREDESK_DB_PATH"`
	Pepper        string              `yaml:"pepper" env:"STOREDESK_PEPPER"`
	TLSEnabled    bool                `yaml:"tls_enabled" env:"STOREDESK_TLS_ENABLED"`
	TLSCert       string              `yaml:"tls_cert" env:"STOREDESK_TLS_CERT"`
	TLSKey        string              `yaml:"tls_key" env:"STOREDESK_TLS_KEY"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Access        AccessConfig        `yaml:"access"`
	Guard         GuardConfig         `yaml:"guard"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Janitor       JanitorConfig       `yaml:"janitor"`
	Security      SecurityConfig      `yaml:"security"`
}

func (c *AppConfig) IsDev() bool {
	if c == nil {
		return false
	}
	return c.AppEnv == "dev"
}

type SessionsConfig struct {
	TTL        time.Duration `yaml:"ttl" env:"STOREDESK_SESSION_TTL" env-default:"12h"`
	CookieName string        `yaml:"cookie_name" env:"STOREDESK_SESSION_COOKIE" env-default:"storedesk_session"`
	// IdleEvict drops a session's in-memory permission store after this much inactivity.
	IdleEvict time.Duration `yaml:"idle_evict" env:"STOREDESK_SESSION_IDLE_EVICT" env-default:"30m"`
}

type AccessConfig struct {
	UpstreamURL    string        `yaml:"upstream_url" env:"STOREDESK_ACCESS_UPSTREAM_URL"`
	CacheTTL       time.Duration `yaml:"cache_ttl" env:"STOREDESK_ACCESS_CACHE_TTL" env-default:"5m"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" env:"STOREDESK_ACCESS_FETCH_TIMEOUT" env-default:"10s"`
	BypassRoles    []string      `yaml:"bypass_roles" env:"STOREDESK_ACCESS_BYPASS_ROLES" env-default:"superadmin,admin"`
	UnmappedPolicy string        `yaml:"unmapped_policy" env:"STOREDESK_ACCESS_UNMAPPED_POLICY" env-default:"allow"`
	PublicPaths    []string      `yaml:"public_paths" env:"STOREDESK_ACCESS_PUBLIC_PATHS" env-default:"/login,/static,/healthz,/readyz,/metrics,/api/auth/login,/admin/access-control/me"`
	SafeRoute      string        `yaml:"safe_route" env:"STOREDESK_ACCESS_SAFE_ROUTE" env-default:"/dashboard"`
	StorageName    string        `yaml:"storage_name" env:"STOREDESK_ACCESS_STORAGE_NAME" env-default:"permission-storage"`
}

type GuardConfig struct {
	WaitTimeout time.Duration `yaml:"wait_timeout" env:"STOREDESK_GUARD_WAIT_TIMEOUT" env-default:"2s"`
	RetryAfter  int           `yaml:"retry_after_sec" env:"STOREDESK_GUARD_RETRY_AFTER" env-default:"1"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver" env:"STOREDESK_STORAGE_DRIVER" env-default:"memory"`
	Prefix        string `yaml:"prefix" env:"STOREDESK_STORAGE_PREFIX" env-default:"storedesk"`
	RedisAddr     string `yaml:"redis_addr" env:"STOREDESK_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"STOREDESK_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"STOREDESK_REDIS_DB"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"STOREDESK_METRICS_ENABLED" env-default:"true"`
	MetricsToken   string `yaml:"metrics_token" env:"STOREDESK_METRICS_TOKEN"`
}

type JanitorConfig struct {
	Enabled       bool   `yaml:"enabled" env:"STOREDESK_JANITOR_ENABLED" env-default:"true"`
	Schedule      string `yaml:"schedule" env:"STOREDESK_JANITOR_SCHEDULE" env-default:"@every 1m"`
	PolicyRefresh string `yaml:"policy_refresh" env:"STOREDESK_JANITOR_POLICY_REFRESH" env-default:"@every 5m"`
}

type SecurityConfig struct {
	TrustedProxies []string `yaml:"trusted_proxies" env:"STOREDESK_TRUSTED_PROXIES"`
}
