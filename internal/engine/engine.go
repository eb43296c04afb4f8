package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/calsync/internal/calendar"
	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/repositories"
	"github.com/desertthunder/calsync/internal/shared"
	gcal "google.golang.org/api/calendar/v3"
)

const (
	defaultWindowDays = 30

	// maxPullPages caps pagination within a single pull phase.
	maxPullPages = 50

	// ownWriteSlack absorbs the gap between the provider stamping an event
	// and the engine recording lastSyncedAt for the same write, so a pass
	// does not re-process its own pushes.
	ownWriteSlack = 2 * time.Second
)

// Engine orchestrates bidirectional sync between one user's tasks and
// their remote calendar.
type Engine struct {
	userID   string
	client   calendar.Client
	tasks    *repositories.TaskRepository
	projects *repositories.ProjectRepository
	states   *repositories.SyncStateRepository
	logs     *repositories.SyncLogRepository
	logger   *log.Logger
	now      func() time.Time
	window   time.Duration
}

// Opts configures an [Engine].
type Opts struct {
	UserID     string
	Client     calendar.Client
	Tasks      *repositories.TaskRepository
	Projects   *repositories.ProjectRepository
	States     *repositories.SyncStateRepository
	Logs       *repositories.SyncLogRepository
	Logger     *log.Logger
	Now        func() time.Time // defaults to time.Now
	WindowDays int              // pull window half-width; defaults to 30
}

// New creates an [Engine] with the provided options.
func New(opts Opts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = defaultWindowDays
	}

	return &Engine{
		userID:   opts.UserID,
		client:   opts.Client,
		tasks:    opts.Tasks,
		projects: opts.Projects,
		states:   opts.States,
		logs:     opts.Logs,
		logger:   opts.Logger,
		now:      opts.Now,
		window:   time.Duration(opts.WindowDays) * 24 * time.Hour,
	}
}

// UserID returns the user this engine serves.
func (e *Engine) UserID() string {
	return e.userID
}

// ensureState loads the user's sync state, creating a default disabled
// record on first use.
func (e *Engine) ensureState() (*models.SyncState, error) {
	state, err := e.states.Get(e.userID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, shared.ErrStateNotFound) {
		return nil, err
	}

	state = &models.SyncState{UserID: e.userID, CalendarID: "primary"}
	if err := e.states.Upsert(state); err != nil {
		return nil, err
	}
	return state, nil
}

// InitializeSync creates the user's sync state record if it does not
// exist yet and returns it.
func (e *Engine) InitializeSync() (*models.SyncState, error) {
	return e.ensureState()
}

// GetSyncState returns the persisted sync state for the user.
func (e *Engine) GetSyncState() (*models.SyncState, error) {
	return e.states.Get(e.userID)
}

// ToggleSync enables or disables sync. Enabling triggers an immediate
// full sync so local and remote converge before incremental passes start.
func (e *Engine) ToggleSync(ctx context.Context, enabled bool, progress chan<- ProgressUpdate) error {
	state, err := e.ensureState()
	if err != nil {
		return err
	}
	if state.Enabled == enabled {
		return nil
	}

	state.Enabled = enabled
	if err := e.states.Upsert(state); err != nil {
		return err
	}

	e.logger.Info("sync toggled", "user", e.userID, "enabled", enabled)
	if enabled {
		return e.FullSync(ctx, progress)
	}
	return nil
}

// SyncTask pushes a single task to the remote calendar.
func (e *Engine) SyncTask(ctx context.Context, taskID string) error {
	task, err := e.tasks.Get(taskID)
	if err != nil {
		return err
	}
	return e.pushTask(ctx, task)
}

// pushTask creates or updates the remote event for the task. Unscheduled
// and sync-disabled tasks are skipped. A stale remote event id (the event
// was deleted out-of-band) heals itself by recreating the event.
func (e *Engine) pushTask(ctx context.Context, task *models.Task) error {
	if !task.Scheduled() || task.SyncStatus == models.SyncDisabled {
		return nil
	}
	project := e.projectFor(task)

	op := models.OpCreate
	var (
		eventID string
		err     error
	)

	if task.RemoteEventID != nil {
		op = models.OpUpdate
		eventID = *task.RemoteEventID
		err = e.client.UpdateEvent(ctx, eventID, task, project)
		if errors.Is(err, shared.ErrEventNotFound) {
			e.logger.Warn("remote event vanished, recreating", "task", task.ID, "event", eventID)
			op = models.OpCreate
			eventID, err = e.client.CreateEvent(ctx, task, project)
		}
	} else {
		eventID, err = e.client.CreateEvent(ctx, task, project)
	}
	if err != nil {
		return e.failPush(task, op, eventID, err)
	}

	if claimant, cerr := e.tasks.GetByRemoteEventID(eventID); cerr == nil && claimant != nil && claimant.ID != task.ID {
		cause := fmt.Errorf("%w: event %s already held by task %s", shared.ErrEventClaimed, eventID, claimant.ID)
		return e.failPush(task, op, eventID, cause)
	}

	now := e.now()
	task.RemoteEventID = &eventID
	task.SyncStatus = models.SyncSynced
	task.SyncError = nil
	task.LastSyncedAt = &now
	task.RemoteModified = false
	if err := e.tasks.UpdateSyncFields(task); err != nil {
		return err
	}

	e.appendLog(op, models.ToRemote, task.ID, eventID, models.OutcomeSuccess, "", nil)
	return nil
}

// failPush records a failed push on the task and in the sync log, then
// returns the original cause.
func (e *Engine) failPush(task *models.Task, op models.SyncOperation, eventID string, cause error) error {
	msg := cause.Error()
	task.SyncStatus = models.SyncErrored
	task.SyncError = &msg
	if err := e.tasks.UpdateSyncFields(task); err != nil {
		e.logger.Error("failed to record sync error", "task", task.ID, "err", err)
	}

	e.appendLog(op, models.ToRemote, task.ID, eventID, models.OutcomeError, "", cause)
	return cause
}

// DeleteTask removes the task's remote event. Removing the task row itself
// is the caller's responsibility; a task with no remote event is a no-op.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) error {
	task, err := e.tasks.Get(taskID)
	if err != nil {
		return err
	}
	if task.RemoteEventID == nil {
		return nil
	}

	eventID := *task.RemoteEventID
	if err := e.client.DeleteEvent(ctx, eventID); err != nil && !errors.Is(err, shared.ErrEventNotFound) {
		e.appendLog(models.OpDelete, models.ToRemote, task.ID, eventID, models.OutcomeError, "", err)
		return err
	}

	task.RemoteEventID = nil
	task.SyncStatus = models.SyncDisabled
	task.SyncError = nil
	if err := e.tasks.UpdateSyncFields(task); err != nil {
		return err
	}

	e.appendLog(models.OpDelete, models.ToRemote, task.ID, eventID, models.OutcomeSuccess, "", nil)
	return nil
}

// PushScheduled pushes every scheduled task for the user. One failing task
// does not stop the batch; auth and throttle failures do, since every
// remaining call would fail the same way.
func (e *Engine) PushScheduled(ctx context.Context, progress chan<- ProgressUpdate) (pushed, failed int, err error) {
	scheduled, err := e.tasks.ListScheduled(e.userID)
	if err != nil {
		return 0, 0, err
	}

	total := len(scheduled)
	for i, task := range scheduled {
		emit(progress, pushTaskUpdate(i+1, total, task.Title))

		if task.SyncStatus == models.SyncDisabled {
			continue
		}

		// Synced tasks are pushed again only when modified since the
		// last push.
		if task.SyncStatus == models.SyncSynced && task.LastSyncedAt != nil && !task.UpdatedAt.After(*task.LastSyncedAt) {
			continue
		}

		if perr := e.pushTask(ctx, task); perr != nil {
			failed++
			if errors.Is(perr, shared.ErrReauthRequired) || errors.Is(perr, shared.ErrRateLimited) {
				return pushed, failed, perr
			}
			e.logger.Warn("push failed", "task", task.ID, "err", perr)
			continue
		}
		pushed++
	}

	return pushed, failed, nil
}

// pull lists remote events. With a continuation token the provider returns
// only changes since that token; without one the listing is bounded to the
// engine's window around now. Pages are followed until exhausted.
func (e *Engine) pull(ctx context.Context, token string) ([]*gcal.Event, string, error) {
	now := e.now()
	opts := calendar.ListOptions{
		TimeMin:           now.Add(-e.window),
		TimeMax:           now.Add(e.window),
		ContinuationToken: token,
	}

	var (
		items    []*gcal.Event
		newToken string
	)

	for page := 0; page < maxPullPages; page++ {
		result, err := e.client.ListEvents(ctx, opts)
		if err != nil {
			return nil, "", err
		}

		items = append(items, result.Items...)
		if result.ContinuationToken != "" {
			newToken = result.ContinuationToken
		}
		if result.NextPageToken == "" {
			return items, newToken, nil
		}
		opts.PageToken = result.NextPageToken
	}

	return nil, "", fmt.Errorf("%w: pull exceeded %d pages", shared.ErrAPIRequest, maxPullPages)
}

// IncrementalSync pulls changes since the stored continuation token and
// processes them. An expired token (provider 410) falls back to a full
// sync. State is persisted once, after the whole pass completes.
func (e *Engine) IncrementalSync(ctx context.Context, progress chan<- ProgressUpdate) error {
	state, err := e.ensureState()
	if err != nil {
		return err
	}
	if !state.Enabled {
		e.logger.Debug("sync disabled, skipping incremental pass", "user", e.userID)
		return nil
	}

	var token string
	if state.ContinuationToken != nil {
		token = *state.ContinuationToken
	}

	items, newToken, err := e.pull(ctx, token)
	if errors.Is(err, shared.ErrSyncTokenExpired) {
		e.logger.Info("continuation token expired, falling back to full sync", "user", e.userID)
		return e.FullSync(ctx, progress)
	}
	if err != nil {
		return err
	}

	emit(progress, pullEventsUpdate(len(items)))
	e.processEvents(ctx, items, progress)

	now := e.now()
	if newToken != "" {
		state.ContinuationToken = &newToken
	}
	state.LastIncrementalSync = &now
	state.WebhookPending = false
	return e.states.Upsert(state)
}

// FullSync reconciles both sides from scratch: push every scheduled task,
// pull the full window, then acquire a fresh continuation token so the
// next incremental pass has a cursor. The windowed pull cannot yield a
// token, which is why the acquisition step exists.
func (e *Engine) FullSync(ctx context.Context, progress chan<- ProgressUpdate) error {
	state, err := e.ensureState()
	if err != nil {
		return err
	}

	pushed, failed, err := e.PushScheduled(ctx, progress)
	if err != nil {
		return err
	}
	e.logger.Info("push phase complete", "user", e.userID, "pushed", pushed, "failed", failed)

	items, _, err := e.pull(ctx, "")
	if err != nil {
		return err
	}
	emit(progress, pullEventsUpdate(len(items)))
	e.processEvents(ctx, items, progress)

	emit(progress, acquireTokenUpdate())
	_, token, err := e.client.ListEventsForFreshToken(ctx)
	if err != nil {
		return err
	}

	now := e.now()
	state.ContinuationToken = &token
	state.LastFullSync = &now
	state.LastIncrementalSync = &now
	state.WebhookPending = false
	return e.states.Upsert(state)
}

// processEvents applies pulled events one at a time; a failing event is
// logged and skipped so the rest of the batch still lands.
func (e *Engine) processEvents(ctx context.Context, items []*gcal.Event, progress chan<- ProgressUpdate) {
	total := len(items)
	for i, event := range items {
		emit(progress, processEventUpdate(i+1, total, event.Id))

		if err := e.processEvent(ctx, event); err != nil {
			e.logger.Warn("failed to process event", "event", event.Id, "err", err)
		}
	}
}

// processEvent routes one remote event: foreign events are ignored,
// cancellations sever the link, unknown task ids become imported tasks,
// and concurrent edits go through conflict resolution.
func (e *Engine) processEvent(ctx context.Context, event *gcal.Event) error {
	if !calendar.IsOurEvent(event) {
		return nil
	}
	taskID, ok := calendar.TaskIDFromEvent(event)
	if !ok {
		return nil
	}

	task, err := e.tasks.Get(taskID)
	if err != nil && !errors.Is(err, shared.ErrTaskNotFound) {
		return err
	}

	if event.Status == "cancelled" {
		if task == nil {
			return nil
		}
		return e.handleEventDeleted(task, event)
	}
	if task == nil {
		return e.createTaskFromEvent(event, taskID)
	}

	remoteModified, err := calendar.EventModifiedAt(event)
	if err != nil {
		return err
	}

	// Our own push echoed back.
	if task.LastSyncedAt != nil && remoteModified.Sub(*task.LastSyncedAt) < ownWriteSlack {
		return nil
	}

	localModified := task.UpdatedAt
	if isConflict(remoteModified, localModified) {
		return e.handleConflict(ctx, task, event, localModified, remoteModified)
	}

	if remoteModified.After(localModified) {
		if err := e.applyEvent(task, event); err != nil {
			return err
		}
		e.appendLog(models.OpUpdate, models.FromRemote, task.ID, event.Id, models.OutcomeSuccess, "", nil)
		return nil
	}

	// Local side is newer; push it back out.
	if task.RemoteEventID == nil {
		id := event.Id
		task.RemoteEventID = &id
	}
	return e.pushTask(ctx, task)
}

// handleEventDeleted reacts to a remote cancellation: the task survives,
// only the calendar link is severed.
func (e *Engine) handleEventDeleted(task *models.Task, event *gcal.Event) error {
	task.RemoteEventID = nil
	task.SyncStatus = models.SyncDisabled
	task.SyncError = nil
	if err := e.tasks.UpdateSyncFields(task); err != nil {
		return err
	}

	e.appendLog(models.OpDelete, models.FromRemote, task.ID, event.Id, models.OutcomeSuccess, "", nil)
	e.logger.Info("remote event cancelled, sync disabled for task", "task", task.ID, "event", event.Id)
	return nil
}

// createTaskFromEvent imports a remote event whose task no longer exists
// locally, reusing the task id carried in the ownership marker.
func (e *Engine) createTaskFromEvent(event *gcal.Event, taskID string) error {
	now := e.now()
	task := &models.Task{
		ID:        taskID,
		UserID:    e.userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if projectID, ok := calendar.ProjectIDFromEvent(event); ok {
		task.ProjectID = projectID
	}

	if err := calendar.EventToTask(event, task); err != nil {
		return err
	}

	id := event.Id
	task.RemoteEventID = &id
	task.SyncStatus = models.SyncSynced
	task.LastSyncedAt = &now
	task.RemoteModified = true

	if err := e.tasks.Create(task); err != nil {
		return err
	}

	e.appendLog(models.OpCreate, models.FromRemote, task.ID, event.Id, models.OutcomeSuccess, "", nil)
	return nil
}

// applyEvent overwrites the task from the event and persists it. Logging
// is left to the caller, which knows whether this was a plain update or a
// conflict resolution.
func (e *Engine) applyEvent(task *models.Task, event *gcal.Event) error {
	if err := calendar.EventToTask(event, task); err != nil {
		return err
	}

	now := e.now()
	id := event.Id
	task.RemoteEventID = &id
	task.SyncStatus = models.SyncSynced
	task.SyncError = nil
	task.LastSyncedAt = &now
	task.RemoteModified = true
	task.UpdatedAt = now

	return e.tasks.Update(task)
}

// handleConflict resolves near-simultaneous edits on both sides with
// last-modified-wins and records the resolution in the sync log.
func (e *Engine) handleConflict(ctx context.Context, task *models.Task, event *gcal.Event, localModified, remoteModified time.Time) error {
	winner := resolveWinner(localModified, remoteModified)
	e.logger.Info("conflict detected", "task", task.ID, "event", event.Id,
		"local", localModified, "remote", remoteModified, "winner", winner)

	if winner == WinnerRemote {
		if err := e.applyEvent(task, event); err != nil {
			return err
		}
		e.appendLog(models.OpUpdate, models.FromRemote, task.ID, event.Id, models.OutcomeConflict, string(winner), nil)
		return nil
	}

	project := e.projectFor(task)
	if err := e.client.UpdateEvent(ctx, event.Id, task, project); err != nil {
		return e.failPush(task, models.OpUpdate, event.Id, err)
	}

	now := e.now()
	id := event.Id
	task.RemoteEventID = &id
	task.SyncStatus = models.SyncSynced
	task.SyncError = nil
	task.LastSyncedAt = &now
	if err := e.tasks.UpdateSyncFields(task); err != nil {
		return err
	}

	e.appendLog(models.OpUpdate, models.ToRemote, task.ID, event.Id, models.OutcomeConflict, string(winner), nil)
	return nil
}

// projectFor resolves the task's project for event coloring; a missing
// project degrades to an uncolored event rather than failing the push.
func (e *Engine) projectFor(task *models.Task) *models.Project {
	if task.ProjectID == "" {
		return nil
	}

	project, err := e.projects.Get(task.ProjectID)
	if err != nil {
		e.logger.Debug("project lookup failed", "project", task.ProjectID, "err", err)
		return nil
	}
	return project
}

// StatusSummary aggregates the user's sync posture for display.
type StatusSummary struct {
	UserID              string                    `json:"user_id"`
	Enabled             bool                      `json:"enabled"`
	Authorized          bool                      `json:"authorized"`
	LastFullSync        *time.Time                `json:"last_full_sync"`
	LastIncrementalSync *time.Time                `json:"last_incremental_sync"`
	HasToken            bool                      `json:"has_token"`
	WebhookActive       bool                      `json:"webhook_active"`
	TaskCounts          map[models.SyncStatus]int `json:"task_counts"`
	LogCount            int                       `json:"log_count"`
}

// Status summarizes the user's sync state, task counts, and log volume.
func (e *Engine) Status() (*StatusSummary, error) {
	state, err := e.ensureState()
	if err != nil {
		return nil, err
	}

	counts, err := e.tasks.CountByStatus(e.userID)
	if err != nil {
		return nil, err
	}

	logCount, err := e.logs.Count(e.userID)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		UserID:              e.userID,
		Enabled:             state.Enabled,
		Authorized:          e.client.Authorized(),
		LastFullSync:        state.LastFullSync,
		LastIncrementalSync: state.LastIncrementalSync,
		HasToken:            state.ContinuationToken != nil,
		WebhookActive:       state.ChannelID != nil && state.ChannelExpiration != nil && state.ChannelExpiration.After(e.now()),
		TaskCounts:          counts,
		LogCount:            logCount,
	}, nil
}

// Logs returns the most recent sync log entries, newest first.
func (e *Engine) Logs(limit int) ([]*models.SyncLogEntry, error) {
	return e.logs.List(e.userID, limit)
}

// appendLog records one sync operation. A log write failure is reported
// but never fails the operation it describes.
func (e *Engine) appendLog(op models.SyncOperation, dir models.SyncDirection, taskID, eventID string, outcome models.SyncOutcome, resolution string, cause error) {
	entry := &models.SyncLogEntry{
		UserID:    e.userID,
		Operation: op,
		Direction: dir,
		TaskID:    taskID,
		Status:    outcome,
		CreatedAt: e.now(),
	}
	if eventID != "" {
		entry.RemoteEventID = &eventID
	}
	if resolution != "" {
		entry.ConflictResolution = &resolution
	}
	if cause != nil {
		msg := cause.Error()
		entry.Error = &msg
	}

	if err := e.logs.Append(entry); err != nil {
		e.logger.Error("failed to append sync log entry", "err", err)
	}
}
