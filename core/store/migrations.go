package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"storedesk-admin/core/utils"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

func ApplyMigrations(ctx context.Context, db *sql.DB, dialect string, logger *utils.Logger) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	gooseDialect, dir := "postgres", "migrations/postgres"
	if dialect == DialectSQLite {
		gooseDialect, dir = "sqlite3", "migrations/sqlite"
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	if logger != nil {
		logger.Printf("applying goose migrations dialect=%s", gooseDialect)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	if logger != nil {
		logger.Printf("goose migrations applied")
	}
	return nil
}

type MigrationStatus struct {
	Current int64
	Latest  int64
}

func (s MigrationStatus) HasPending() bool { return s.Current < s.Latest }

func GetMigrationStatus(ctx context.Context, db *sql.DB, dialect string) (MigrationStatus, error) {
	gooseDialect, dir := "postgres", "migrations/postgres"
	if dialect == DialectSQLite {
		gooseDialect, dir = "sqlite3", "migrations/sqlite"
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return MigrationStatus{}, err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return MigrationStatus{}, err
	}
	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return MigrationStatus{}, err
	}
	var latest int64
	if last, err := migrations.Last(); err == nil {
		latest = last.Version
	}
	return MigrationStatus{Current: current, Latest: latest}, nil
}
