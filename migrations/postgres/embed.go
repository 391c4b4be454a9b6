// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contains the Postgres migrations for the secret version store.
//
//go:embed *.sql
var FS embed.FS
