// Package storage provides evidence store implementations: an in-memory
// store for tests and single-process use, and a SQLite store for durable
// audit trails.
package storage
