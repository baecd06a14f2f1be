package db

import "embed"

// MigrationFS holds the Postgres schema. The Mongo backend needs no
// migrations; its indexes are created at start-up.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
