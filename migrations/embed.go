// Package migrations embeds the SQL migration files into the binary.
//
// Files follow YYYYMMDD_HHMMSS_description.{up,down}.sql and are applied by
// database.DB.Migrate in version order:
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package migrations

import "embed"

// FS holds every migration file at its root.
//
//go:embed *.sql
var FS embed.FS
