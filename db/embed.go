// Package db provides embedded database schema and seed files.
package db

import _ "embed"

// Schema contains the DDL statements for all checkout tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Seed contains demo catalog, stock, coupon and customer data consumed by
// cmd/seed-db.
//
//go:embed seed/seed.json
var Seed []byte
