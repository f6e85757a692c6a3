// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The RAG pipeline lives here: VectorStore (collections, cosine search,
// eviction on quota errors), IndexerService (chunk, embed, store),
// RetrieverService (token-budgeted context) and SessionMemoryService
// (conversation summaries and preferences).
package services
