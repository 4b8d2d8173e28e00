// Package database opens the KV backends. Exactly one of Redis or MariaDB is
// connected at startup, chosen by KV_BACKEND.
package database

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "mysql" driver.
	_ "github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/nexus/internal/config"
)

// NewMariaDB opens a pool sized from DB_* settings and waits for the server
// to accept connections.
func NewMariaDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	p := defaultProbe
	p.name = "mariadb"
	if err := p.waitReady(ctx, db.PingContext); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
