package main

import (
	"context"
	"log"
	"time"

	"storedesk-admin/config"
	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger := utils.NewLoggerWithLevel(cfg.LogLevel)
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer db.Close()

	dialect := store.Dialect(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := store.ApplyMigrations(ctx, db, dialect, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	status, err := store.GetMigrationStatus(ctx, db, dialect)
	if err != nil {
		logger.Fatalf("migration status: %v", err)
	}
	logger.Printf("migrations applied version=%d latest=%d", status.Current, status.Latest)
}
