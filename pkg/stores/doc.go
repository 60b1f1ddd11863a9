// Package stores provides persistence layer implementations for Sealrunner.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and comprehensive CRUD operations for runs, deployment targets, events,
// the artifact index, facts, and audit (deployment journal) entries.
package stores
