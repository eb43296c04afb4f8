// package repositories provides the SQLite persistence layer consumed by
// the sync engine: tasks, projects, per-user sync state, and the
// append-only sync log.
package repositories
