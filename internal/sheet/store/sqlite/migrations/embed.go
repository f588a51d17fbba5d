// Package migrations embeds the SQL schema history of the sheet store.
package migrations

import "embed"

// FS holds the sheet store migrations at its root.
//
//go:embed *.sql
var FS embed.FS
