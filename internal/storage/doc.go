// Package storage keeps an optional append-only audit trail of forwarded
// headlines and outbound posts.
//
// Drivers:
//   - "file": JSON Lines, one entry per line
//   - "sqlite": local database file (modernc.org/sqlite, no cgo)
//   - "postgres": shared database reached through a pgx pool
package storage
