// Package domain defines the core business entities for Sanctum's retrieval core.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A bounded text segment derived from a source document
//   - VectorDocument: An embedded record stored in a Collection
//   - Collection: One of the fixed named partitions of the vector store
//   - ConversationSummary: A persisted, retrievable session memory
//   - Preference: A saved writing preference, optionally scoped to a document
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
