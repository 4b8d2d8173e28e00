// Package db embeds the SQL migrations so the server binary can create the
// kv_entries table without a migrations directory on disk.
package db

import "embed"

// Migrations holds migrations/*.sql.
//
//go:embed migrations/*.sql
var Migrations embed.FS
