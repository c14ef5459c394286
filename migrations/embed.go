// Package migrations embeds SQL migration files into the binary, so the
// gateway can initialise its journal store without shipping loose SQL
// files to the device.
package migrations

import (
	"embed"

	"github.com/portmodel/cranelink/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the database package.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
