package db

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// postgresDialector returns the dialector for dsn after making sure the
// target database exists. Failing to create it is not fatal: the connect
// that follows reports the real problem.
func postgresDialector(dsn string, debug bool) gorm.Dialector {
	if err := ensureDatabase(dsn); err != nil && debug {
		slog.Warn("journal.ensure_database_failed", "error", err)
	}
	return postgres.Open(dsn)
}

// ensureDatabase creates the database named in dsn through the server's
// maintenance database when it is missing.
func ensureDatabase(dsn string) error {
	name := databaseName(dsn)
	if name == "" {
		return fmt.Errorf("no database name in %q", dsn)
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return err
	}
	u.Path = "/postgres"

	db, err := gorm.Open(postgres.Open(u.String()), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return fmt.Errorf("connect to maintenance database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var exists bool
	if err := db.Raw("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = ?)", name).Scan(&exists).Error; err != nil {
		return err
	}
	if exists {
		return nil
	}
	quoted := `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	if err := db.Exec("CREATE DATABASE " + quoted).Error; err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

// databaseName returns the path component of a postgres URL DSN.
func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
