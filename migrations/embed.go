// Package migrations compiles the .up.sql/.down.sql pairs in this directory
// into the binary, so a deployed instance migrates itself without shipping
// loose SQL files. Importing the package for side effects is enough:
//
//	import _ "github.com/nfarrow/smart-office-core/migrations"
package migrations

import (
	"embed"

	"github.com/nfarrow/smart-office-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
