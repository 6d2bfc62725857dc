// Package migrations embeds the goose migrations of the local key/value
// namespace, one directory per SQL dialect.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var all embed.FS

// For returns the migration directory of the given goose dialect
// ("sqlite3" or "postgres").
func For(dialect string) (fs.FS, error) {
	switch dialect {
	case "sqlite3":
		return fs.Sub(all, "sqlite")
	case "postgres":
		return fs.Sub(all, "postgres")
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
}
