// Package database provides SQLite connectivity for Gray Logic Hub.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations read from any fs.FS (the binary embeds them via
//     the migrations package)
//   - Connection lifecycle and health checks
//
// The hub keeps two kinds of data in SQLite: notification subscriptions
// added at runtime and the device property history. The device set itself
// lives in the JSON devices document, not here.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry defaults,
// and every .up.sql has a matching .down.sql.
package database
