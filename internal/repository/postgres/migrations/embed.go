// Package migrations holds the PostgreSQL schema, applied in filename
// order.
package migrations

import "embed"

// FS holds the ordered SQL migration files.
//
//go:embed *.sql
var FS embed.FS
