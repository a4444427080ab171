package appbootstrap

import (
	"os"
	"path/filepath"
	"strings"

	"storedesk-admin/config"
	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

// ensureDataDir creates the directory of the sqlite file.
func ensureDataDir(cfg *config.AppConfig, logger *utils.Logger) error {
	if cfg == nil || store.Dialect(cfg) != store.DialectSQLite {
		return nil
	}
	p := strings.TrimSpace(cfg.DBPath)
	if p == "" || strings.HasPrefix(p, "file:") || strings.Contains(p, ":memory:") {
		return nil
	}
	dir := filepath.Dir(p)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		logger.Errorf("data dir init failed path=%s: %v", dir, err)
		return err
	}
	return nil
}
