// Package migrations embeds the SQL migrations of the SQLite store.
package migrations

import "embed"

// FS holds the numbered up/down migration pairs.
//
//go:embed *.sql
var FS embed.FS
