package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/shared"
)

// SyncStateRepository persists the per-user [models.SyncState] record, the
// single source of truth for resuming incremental sync after a restart.
type SyncStateRepository struct {
	db *sql.DB
}

// NewSyncStateRepository creates a new [SyncStateRepository] with the given database connection
func NewSyncStateRepository(db *sql.DB) *SyncStateRepository {
	return &SyncStateRepository{db: db}
}

// Get retrieves the sync state for a user.
func (r *SyncStateRepository) Get(userID string) (*models.SyncState, error) {
	query := `
		SELECT user_id, calendar_id, last_full_sync, last_incremental_sync,
			continuation_token, is_enabled, webhook_pending,
			channel_id, resource_id, channel_expiration, updated_at
		FROM sync_state
		WHERE user_id = ?
	`

	var (
		st                models.SyncState
		lastFull          sql.NullTime
		lastIncremental   sql.NullTime
		token             sql.NullString
		enabled           int
		webhookPending    int
		channelID         sql.NullString
		resourceID        sql.NullString
		channelExpiration sql.NullTime
	)

	err := r.db.QueryRow(query, userID).Scan(&st.UserID, &st.CalendarID,
		&lastFull, &lastIncremental, &token, &enabled, &webhookPending,
		&channelID, &resourceID, &channelExpiration, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrStateNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sync state: %w", err)
	}

	st.LastFullSync = timePtr(lastFull)
	st.LastIncrementalSync = timePtr(lastIncremental)
	st.ContinuationToken = stringPtr(token)
	st.Enabled = enabled != 0
	st.WebhookPending = webhookPending != 0
	st.ChannelID = stringPtr(channelID)
	st.ResourceID = stringPtr(resourceID)
	st.ChannelExpiration = timePtr(channelExpiration)

	return &st, nil
}

// Upsert writes the full sync state record. Called once per completed sync
// pass so the continuation token and timestamps land together.
func (r *SyncStateRepository) Upsert(state *models.SyncState) error {
	if state.UserID == "" {
		return fmt.Errorf("%w: sync state user id is required", shared.ErrInvalidInput)
	}
	if state.CalendarID == "" {
		state.CalendarID = "primary"
	}
	state.UpdatedAt = time.Now()

	query := `
		INSERT INTO sync_state (user_id, calendar_id, last_full_sync, last_incremental_sync,
			continuation_token, is_enabled, webhook_pending,
			channel_id, resource_id, channel_expiration, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			calendar_id = excluded.calendar_id,
			last_full_sync = excluded.last_full_sync,
			last_incremental_sync = excluded.last_incremental_sync,
			continuation_token = excluded.continuation_token,
			is_enabled = excluded.is_enabled,
			webhook_pending = excluded.webhook_pending,
			channel_id = excluded.channel_id,
			resource_id = excluded.resource_id,
			channel_expiration = excluded.channel_expiration,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query, state.UserID, state.CalendarID,
		nullTime(state.LastFullSync), nullTime(state.LastIncrementalSync),
		nullString(state.ContinuationToken), boolInt(state.Enabled),
		boolInt(state.WebhookPending), nullString(state.ChannelID),
		nullString(state.ResourceID), nullTime(state.ChannelExpiration),
		state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert sync state: %w", err)
	}

	return nil
}
