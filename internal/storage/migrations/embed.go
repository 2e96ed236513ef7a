package migrations

import "embed"

// FS embeds the SQLite schema for attempt history and the local event log.
//
//go:embed *.sql
var FS embed.FS
