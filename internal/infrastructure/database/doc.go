// Package database provides relational store connectivity for Lifelog Core.
//
// This package manages:
//   - SQLite connections (mattn/go-sqlite3) with WAL mode for concurrent access
//   - Postgres connections (lib/pq) for shared deployments
//   - Placeholder rebinding so repositories write `?` once for both dialects
//   - Schema migrations embedded in the binary
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - SQLite database file permissions are set to 0600 (owner read/write only)
//   - Postgres DSNs carry credentials; supply them via LIFELOG_DATABASE_DSN
//
// Usage:
//
//	db, err := database.Open(database.Config{Driver: "sqlite3", Path: "./data/lifelog.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migrations are additive-only:
//   - New columns must be NULLABLE or have DEFAULT values
//   - Never DROP or RENAME columns in an up migration
//   - Each migration file has both .up.sql and .down.sql
package database
