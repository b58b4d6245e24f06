// Package migrations embeds the SQL schema migrations so the server and the
// migrate CLI can apply them without a migrations directory on disk.
package migrations

import "embed"

// FS holds every NNN_name.up.sql / .down.sql pair in this directory
//
//go:embed *.sql
var FS embed.FS
