// Package migrations embeds the PostgreSQL schema for script jobs.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
