// Package stores provides the persistence layer for pgtend: registered
// instances, resolved cluster snapshots, generated-file checksums, and
// an append-only event log, backed by SQLite.
package stores
