package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/shared"
)

// SyncLogRepository appends to and reads the immutable sync log. Entries
// are write-once; there is deliberately no update or delete.
type SyncLogRepository struct {
	db *sql.DB
}

// NewSyncLogRepository creates a new [SyncLogRepository] with the given database connection
func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Append inserts a new log entry with a generated id.
func (r *SyncLogRepository) Append(entry *models.SyncLogEntry) error {
	if entry.UserID == "" {
		return fmt.Errorf("%w: log entry user id is required", shared.ErrInvalidInput)
	}

	entry.ID = shared.GenerateID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO sync_log (id, user_id, operation, direction, task_id,
			remote_event_id, status, conflict_resolution, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, entry.ID, entry.UserID, entry.Operation,
		entry.Direction, entry.TaskID, nullString(entry.RemoteEventID),
		entry.Status, nullString(entry.ConflictResolution),
		nullString(entry.Error), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append sync log entry: %w", err)
	}

	return nil
}

// List retrieves the most recent log entries for a user, newest first.
func (r *SyncLogRepository) List(userID string, limit int) ([]*models.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, operation, direction, task_id,
			remote_event_id, status, conflict_resolution, error, created_at
		FROM sync_log
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []*models.SyncLogEntry
	for rows.Next() {
		var (
			e          models.SyncLogEntry
			eventID    sql.NullString
			resolution sql.NullString
			errMsg     sql.NullString
		)

		err := rows.Scan(&e.ID, &e.UserID, &e.Operation, &e.Direction, &e.TaskID,
			&eventID, &e.Status, &resolution, &errMsg, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}

		e.RemoteEventID = stringPtr(eventID)
		e.ConflictResolution = stringPtr(resolution)
		e.Error = stringPtr(errMsg)

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Count returns the total number of log entries for a user.
func (r *SyncLogRepository) Count(userID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sync_log WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync log entries: %w", err)
	}
	return n, nil
}
