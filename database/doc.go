// Package database provides a unified interface for connecting to metadata backends.
//
// # Supported Backends
//
//   - PostgreSQL: production backend using a pgx connection pool
//   - SQLite: single-node backend using modernc.org/sqlite
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{
//	    Type: "sqlite",
//	    DSN:  "bucketry.db",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	repo := db.Repo()
//
// Open connects, migrates and validates in one step. Connect only opens the
// connection, for commands that must not change the schema.
package database
