package auth

import "embed"

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS exposes the embedded schema migrations, one directory per
// SQL dialect, for the host application to register with its migrator.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
