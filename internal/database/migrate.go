package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Registers the file:// source used when MIGRATIONS_PATH is set.
	_ "github.com/golang-migrate/migrate/v4/source/file"

	nexusdb "github.com/keyxmakerx/nexus/db"
)

// RunMigrations brings the kv_entries schema up to date. An empty path uses
// the migrations compiled into the binary; otherwise files are read from
// that directory.
func RunMigrations(db *sql.DB, migrationsPath string) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	var m *migrate.Migrate
	if migrationsPath == "" {
		var src source.Driver
		src, err = iofs.New(nexusdb.Migrations, "migrations")
		if err != nil {
			return fmt.Errorf("opening embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "mysql", driver)
	} else {
		m, err = migrate.NewWithDatabaseInstance("file://"+migrationsPath, "mysql", driver)
	}
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("kv schema ready",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
		slog.Bool("embedded", migrationsPath == ""),
	)
	return nil
}
