package store

import (
	"database/sql"
	"errors"
	"strings"

	"storedesk-admin/config"
	"storedesk-admin/core/utils"
	_ "modernc.org/sqlite"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Dialect resolves the configured driver name, defaulting to postgres when a
// DB URL is present and to sqlite when only a file path is.
func Dialect(cfg *config.AppConfig) string {
	if cfg == nil {
		return DialectPostgres
	}
	switch strings.ToLower(strings.TrimSpace(cfg.DBDriver)) {
	case "postgres", "pg":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	}
	if strings.TrimSpace(cfg.DBURL) == "" && strings.TrimSpace(cfg.DBPath) != "" {
		return DialectSQLite
	}
	return DialectPostgres
}

func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	switch Dialect(cfg) {
	case DialectPostgres:
		if strings.TrimSpace(cfg.DBURL) == "" {
			return nil, errors.New("STOREDESK_DB_URL is required for postgres")
		}
		db, err := sql.Open(postgresDriverName, cfg.DBURL)
		if err != nil {
			if logger != nil {
				logger.Errorf("db open failed: %v", err)
			}
			return nil, err
		}
		if logger != nil {
			logger.Printf("db open postgres")
		}
		return db, nil
	default:
		if strings.TrimSpace(cfg.DBPath) == "" {
			return nil, errors.New("STOREDESK_DB_PATH is required for sqlite")
		}
		db, err := sql.Open("sqlite", sqliteDSN(cfg.DBPath))
		if err != nil {
			if logger != nil {
				logger.Errorf("db open failed: %v", err)
			}
			return nil, err
		}
		// single writer; sqlite returns SQLITE_BUSY otherwise
		db.SetMaxOpenConns(1)
		if logger != nil {
			logger.Printf("db open sqlite path=%s", cfg.DBPath)
		}
		return db, nil
	}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
