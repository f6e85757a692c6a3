// Package sqlite provides a SQLite-backed implementation of driven.SnapshotBackend.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Every vector document is one row of the
// vector_documents table, keyed by (collection, id). A save replaces the table
// contents inside a single transaction, so readers never see a half-written snapshot.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Embeddings are stored as little-endian float64 blobs and metadata as JSON text.
//
// # Data Location
//
// By default, the database is stored at ~/.sanctum/data/vectors.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
