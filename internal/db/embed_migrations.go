package db

import "embed"

// MigrationFS embeds the payment_tokens and devices schema migrations.
// Applied by internal/db/migrate (cmd/migrate and integration tests).
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
