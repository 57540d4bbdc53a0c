// Package migrations embeds the schema files so the binary and the
// integration tests can migrate without a MIGRATIONS_DIR on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
