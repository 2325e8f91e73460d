// Package migrations carries the SQL schema migrations, embedded so the
// migrate binary needs no files on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
