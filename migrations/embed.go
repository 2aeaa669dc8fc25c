// Package migrations embeds the Postgres schema for the remote backend.
package migrations

import "embed"

// FS holds the goose SQL migrations.
//
//go:embed *.sql
var FS embed.FS
