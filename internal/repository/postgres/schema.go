package postgres

import _ "embed"

// Schema creates the tables used by the repositories. Statements are
// idempotent.
//
//go:embed schema.sql
var Schema string
