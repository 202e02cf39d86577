// Package migrations embeds the SQL migrations for the sources lookup table.
package migrations

import "embed"

// FS holds the *.up.sql files applied at startup.
//
//go:embed *.sql
var FS embed.FS
