package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered Postgres schema history. Names come from the
// registering file, so each migration lives in its own numbered file.
var Migrations = migrate.NewMigrations()
