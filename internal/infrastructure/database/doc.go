// Package database owns the SQLite store that holds rules, scenes, and event
// history.
//
// Open configures a single-connection pool with WAL journaling and a busy
// timeout, creates the parent directory if needed, and tightens the file mode
// to owner-only. Schema changes ship as embedded .up.sql/.down.sql pairs and
// are applied one transaction per migration:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are written additive-only so a down migration never strands data:
// new columns get defaults or allow NULL, and columns are never dropped or
// renamed. All query paths use parameterised statements.
package database
