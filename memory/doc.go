// Package memory provides the storage backends for conversation history:
// a process-local store for tests and demos, a SQLite store for durable
// single-node deployments and a vector store for semantic retrieval. All of
// them satisfy core.MemoryStore; the in-memory and SQLite stores also
// implement core.ConversationStore.
package memory
