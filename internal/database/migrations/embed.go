// Package migrations embeds the goose SQL migrations applied by
// Manager.EnsureSchema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
