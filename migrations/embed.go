// Package migrations embeds SQL migration files into the binary.
//
// Every file must run unchanged on SQLite and Postgres. Importing this package
// for its side effect registers the files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/lifelog-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files)
}
