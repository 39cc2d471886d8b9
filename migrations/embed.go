// Package migrations embeds the SQL migration files into the binary so the
// audit database can be created without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/plcbridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
