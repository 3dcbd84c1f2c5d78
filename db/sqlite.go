package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	puresqlite "github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jacekjursza/codehem/models"
)

// Local SQLite drivers.
const (
	DriverSQLite = "sqlite" // mattn/go-sqlite3, needs cgo
	DriverPureGo = "purego" // modernc.org/sqlite, no cgo
)

// Config selects the journal database.
type Config struct {
	DSN    string
	Driver string // for local files only; libsql and postgres DSNs pick their own
	Debug  bool
}

// Connect opens the journal database described by cfg and migrates it.
func Connect(cfg Config) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("journal dsn is required")
	}
	if isLocalFile(cfg.DSN) {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	dialector, cleanup, err := dialect(cfg)
	if err != nil {
		return nil, err
	}
	level := logger.Silent
	if cfg.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if !isPostgres(cfg.DSN) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// In-memory databases and pragmas are per connection.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return db, nil
}

// dialect picks the gorm dialector for cfg. cleanup releases anything
// opened on the way when gorm.Open fails.
func dialect(cfg Config) (gorm.Dialector, func(), error) {
	noop := func() {}
	switch {
	case isPostgres(cfg.DSN):
		return postgresDialector(cfg.DSN, cfg.Debug), noop, nil
	case isURL(cfg.DSN):
		conn, err := libsqlConn(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		d := sqlite.New(sqlite.Config{DriverName: "libsql", Conn: conn, DSN: cfg.DSN})
		return d, func() { conn.Close() }, nil
	}
	d, err := localDialector(cfg.Driver, cfg.DSN)
	return d, noop, err
}

func libsqlConn(dsn string) (*sql.DB, error) {
	var (
		connector driver.Connector
		err       error
	)
	token := os.Getenv("CODEHEM_LIBSQL_AUTH_TOKEN")
	if token != "" {
		connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
	} else {
		connector, err = libsql.NewConnector(dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("libsql connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func localDialector(name, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(name) {
	case "", DriverSQLite:
		return sqlite.Open(dsn), nil
	case DriverPureGo:
		return puresqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unknown sqlite driver %q", name)
}

// isURL reports whether dsn names a remote libSQL server.
func isURL(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") || strings.HasPrefix(dsn, "libsql://")
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:")
}

func isLocalFile(dsn string) bool {
	return !isURL(dsn) && !isPostgres(dsn) && !isMemory(dsn)
}

// Migrate creates or updates the journal tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Session{}, &models.PatchRecord{})
}
