// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Chunker: Splits document text into chunks
//   - EmbeddingService: Maps text to vectors. Indexing and retrieval need it.
//   - SnapshotBackend: Loads and saves the vector store snapshot (memory, file, SQLite, Postgres)
//   - EvictionPolicy: Decides what to drop when a snapshot exceeds the backend quota
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Conversation summarisation. Without it, summaries use the heuristic fallback.
//   - DocumentConverter: PDF/DOCX/HTML to markdown. Without it, only text files can be indexed.
//   - PromptStore: Custom prompt templates. Without it, built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or driving package
package driven
