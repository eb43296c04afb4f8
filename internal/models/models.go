package models

import (
	"fmt"
	"time"
)

// SyncStatus is the per-task synchronization state.
type SyncStatus string

const (
	SyncDisabled SyncStatus = "disabled"
	SyncPending  SyncStatus = "pending"
	SyncSynced   SyncStatus = "synced"
	SyncErrored  SyncStatus = "error"
)

// SyncOperation identifies what a sync log entry did.
type SyncOperation string

const (
	OpCreate SyncOperation = "create"
	OpUpdate SyncOperation = "update"
	OpDelete SyncOperation = "delete"
)

// SyncDirection identifies which store a sync log entry wrote to.
type SyncDirection string

const (
	ToRemote   SyncDirection = "to_remote"
	FromRemote SyncDirection = "from_remote"
)

// SyncOutcome is the recorded result of a sync log entry.
type SyncOutcome string

const (
	OutcomeSuccess  SyncOutcome = "success"
	OutcomeError    SyncOutcome = "error"
	OutcomeConflict SyncOutcome = "conflict"
)

// Task represents a scheduled work item. A task is eligible for calendar
// sync only while ScheduledDate is set.
type Task struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	ProjectID          string     `json:"project_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Status             string     `json:"status"`
	ScheduledDate      *string    `json:"scheduled_date"`       // YYYY-MM-DD
	ScheduledStartTime *string    `json:"scheduled_start_time"` // HH:MM
	ScheduledEndTime   *string    `json:"scheduled_end_time"`   // HH:MM
	IncludeTime        bool       `json:"include_time"`
	TimeSpent          int        `json:"time_spent"`     // minutes
	TimeEstimated      int        `json:"time_estimated"` // minutes
	RemoteEventID      *string    `json:"remote_event_id"`
	SyncStatus         SyncStatus `json:"sync_status"`
	SyncError          *string    `json:"sync_error"`
	LastSyncedAt       *time.Time `json:"last_synced_at"`
	RemoteModified     bool       `json:"remote_modified"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Validate checks the fields the engine requires before any remote call.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("task user id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("task title is required")
	}
	return nil
}

// Scheduled reports whether the task carries a scheduled date and is
// therefore eligible for calendar sync.
func (t *Task) Scheduled() bool {
	return t.ScheduledDate != nil && *t.ScheduledDate != ""
}

// Project groups tasks and carries the color the calendar event inherits.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"` // hex, e.g. "#4caf50"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required project fields.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("project id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	return nil
}

// SyncState is the single persisted cursor for one user's sync. It is
// created lazily on first use and rewritten only after a pass fully
// completes, so the continuation token never outruns the processed items.
type SyncState struct {
	UserID              string     `json:"user_id"`
	CalendarID          string     `json:"calendar_id"`
	LastFullSync        *time.Time `json:"last_full_sync"`
	LastIncrementalSync *time.Time `json:"last_incremental_sync"`
	ContinuationToken   *string    `json:"continuation_token"`
	Enabled             bool       `json:"is_enabled"`
	WebhookPending      bool       `json:"webhook_pending"`
	ChannelID           *string    `json:"channel_id"`
	ResourceID          *string    `json:"resource_id"`
	ChannelExpiration   *time.Time `json:"channel_expiration"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// SyncLogEntry is an immutable record of one sync operation. Entries are
// appended, never updated.
type SyncLogEntry struct {
	ID                 string        `json:"id"`
	UserID             string        `json:"user_id"`
	Operation          SyncOperation `json:"operation"`
	Direction          SyncDirection `json:"direction"`
	TaskID             string        `json:"task_id"`
	RemoteEventID      *string       `json:"remote_event_id"`
	Status             SyncOutcome   `json:"status"`
	ConflictResolution *string       `json:"conflict_resolution"`
	Error              *string       `json:"error"`
	CreatedAt          time.Time     `json:"created_at"`
}
