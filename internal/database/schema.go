package database

import _ "embed"

// Schema is the current table layout, generated from the migrations.
// Tests apply it directly to skip the migration machinery.
//
//go:embed sqlc/schema.sql
var Schema string
