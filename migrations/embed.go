// Package migrations embeds the goose schema migrations for each supported dialect.
package migrations

import "embed"

// FS holds one directory of migrations per goose dialect name.
//
//go:embed postgres/*.sql sqlite3/*.sql
var FS embed.FS
