// Package migrations embeds the goose SQL migrations for the sync server's
// Postgres database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
