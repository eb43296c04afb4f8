package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/shared"
)

// TaskRepository persists [models.Task] records. The engine reads tasks and
// rewrites their sync fields; task creation normally happens in the host
// application, except when a remote event is imported as a new task.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new [TaskRepository] with the given database connection
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, user_id, project_id, title, description, status,
	scheduled_date, scheduled_start_time, scheduled_end_time, include_time,
	time_spent, time_estimated, remote_event_id, sync_status, sync_error,
	last_synced_at, remote_modified, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	var (
		t              models.Task
		scheduledDate  sql.NullString
		startTime      sql.NullString
		endTime        sql.NullString
		remoteEventID  sql.NullString
		syncError      sql.NullString
		lastSyncedAt   sql.NullTime
		includeTime    int
		remoteModified int
	)

	err := row.Scan(&t.ID, &t.UserID, &t.ProjectID, &t.Title, &t.Description, &t.Status,
		&scheduledDate, &startTime, &endTime, &includeTime,
		&t.TimeSpent, &t.TimeEstimated, &remoteEventID, &t.SyncStatus, &syncError,
		&lastSyncedAt, &remoteModified, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.ScheduledDate = stringPtr(scheduledDate)
	t.ScheduledStartTime = stringPtr(startTime)
	t.ScheduledEndTime = stringPtr(endTime)
	t.RemoteEventID = stringPtr(remoteEventID)
	t.SyncError = stringPtr(syncError)
	t.LastSyncedAt = timePtr(lastSyncedAt)
	t.IncludeTime = includeTime != 0
	t.RemoteModified = remoteModified != 0

	return &t, nil
}

// Create inserts a new task.
func (r *TaskRepository) Create(task *models.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}
	if task.SyncStatus == "" {
		task.SyncStatus = models.SyncDisabled
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, task.ID, task.UserID, task.ProjectID, task.Title,
		task.Description, task.Status, nullString(task.ScheduledDate),
		nullString(task.ScheduledStartTime), nullString(task.ScheduledEndTime),
		boolInt(task.IncludeTime), task.TimeSpent, task.TimeEstimated,
		nullString(task.RemoteEventID), task.SyncStatus, nullString(task.SyncError),
		nullTime(task.LastSyncedAt), boolInt(task.RemoteModified),
		task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// Get retrieves a task by ID.
func (r *TaskRepository) Get(id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := scanTask(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	return task, nil
}

// GetByRemoteEventID retrieves the task currently holding the given remote
// event id, if any. Used to detect two tasks racing to claim one event.
func (r *TaskRepository) GetByRemoteEventID(eventID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE remote_event_id = ?`

	task, err := scanTask(r.db.QueryRow(query, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task by event id: %w", err)
	}

	return task, nil
}

// Update rewrites an existing task.
func (r *TaskRepository) Update(task *models.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE tasks
		SET project_id = ?, title = ?, description = ?, status = ?,
			scheduled_date = ?, scheduled_start_time = ?, scheduled_end_time = ?,
			include_time = ?, time_spent = ?, time_estimated = ?,
			remote_event_id = ?, sync_status = ?, sync_error = ?,
			last_synced_at = ?, remote_modified = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, task.ProjectID, task.Title, task.Description,
		task.Status, nullString(task.ScheduledDate), nullString(task.ScheduledStartTime),
		nullString(task.ScheduledEndTime), boolInt(task.IncludeTime), task.TimeSpent,
		task.TimeEstimated, nullString(task.RemoteEventID), task.SyncStatus,
		nullString(task.SyncError), nullTime(task.LastSyncedAt),
		boolInt(task.RemoteModified), task.UpdatedAt, task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, task.ID)
	}

	return nil
}

// UpdateSyncFields rewrites only the sync-relevant fields without touching
// updated_at, so an engine write is never mistaken for a local edit.
func (r *TaskRepository) UpdateSyncFields(task *models.Task) error {
	query := `
		UPDATE tasks
		SET remote_event_id = ?, sync_status = ?, sync_error = ?, last_synced_at = ?, remote_modified = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, nullString(task.RemoteEventID), task.SyncStatus,
		nullString(task.SyncError), nullTime(task.LastSyncedAt),
		boolInt(task.RemoteModified), task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task sync fields: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, task.ID)
	}

	return nil
}

// Delete removes a task by ID.
func (r *TaskRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}

	return nil
}

// ListScheduled retrieves all tasks for the user with a non-null scheduled
// date, the set eligible for pushing to the remote calendar.
func (r *TaskRepository) ListScheduled(userID string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = ? AND scheduled_date IS NOT NULL
		ORDER BY scheduled_date ASC, created_at ASC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tasks, nil
}

// CountByStatus returns the number of the user's tasks in each sync status.
func (r *TaskRepository) CountByStatus(userID string) (map[models.SyncStatus]int, error) {
	query := `SELECT sync_status, COUNT(*) FROM tasks WHERE user_id = ? GROUP BY sync_status`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.SyncStatus]int)
	for rows.Next() {
		var (
			status models.SyncStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
