package sql

import _ "embed"

// Schema creates every table, index and trigger. It is safe to run repeatedly.
//
//go:embed schema.sql
var Schema string
