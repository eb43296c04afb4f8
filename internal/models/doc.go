// package models defines the data model shared by the sync engine and its
// persistence layer: tasks, projects, per-user sync state, and the
// append-only sync log.
//
// Tasks and projects are owned by the host application; the engine only
// reads them and transitions the sync-relevant fields (RemoteEventID,
// SyncStatus, SyncError, LastSyncedAt).
package models
