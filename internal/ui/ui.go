package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/calsync/internal/engine"
	"github.com/desertthunder/calsync/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LogListView ViewState = iota
	SyncView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       *engine.Engine
	width        int
	height       int
	logList      list.Model
	status       *engine.StatusSummary
	progressChan chan engine.ProgressUpdate
	progress     engine.ProgressUpdate
	syncDone     chan error
	err          error
	help         help.Model
	keys         keyMap
}

var _ list.Item = entryItem{}

// entryItem wraps [models.SyncLogEntry] to implement [list.Item].
type entryItem struct {
	entry *models.SyncLogEntry
}

func (i entryItem) FilterValue() string { return i.entry.TaskID }

func (i entryItem) Title() string {
	arrow := "→ calendar"
	if i.entry.Direction == models.FromRemote {
		arrow = "← calendar"
	}
	return fmt.Sprintf("%s %s  task %s", i.entry.Operation, arrow, i.entry.TaskID)
}

func (i entryItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.entry.CreatedAt.Format("2006-01-02 15:04:05"), i.entry.Status)
	if i.entry.ConflictResolution != nil {
		desc = fmt.Sprintf("%s • winner: %s", desc, *i.entry.ConflictResolution)
	}
	if i.entry.Error != nil {
		desc = fmt.Sprintf("%s • %s", desc, *i.entry.Error)
	}
	return desc
}

type logsFetchedMsg struct {
	entries []*models.SyncLogEntry
	status  *engine.StatusSummary
	err     error
}

type progressUpdateMsg engine.ProgressUpdate

type syncCompleteMsg struct {
	err error
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, eng *engine.Engine) *Model {
	return &Model{
		ctx:    ctx,
		view:   LogListView,
		engine: eng,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init initializes the TUI by loading the sync log and status summary.
func (m *Model) Init() tea.Cmd {
	return m.fetchLogs()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.logList.Width() == 0 {
			m.logList.SetSize(msg.Width-4, msg.Height-10)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case LogListView:
			return m.handleLogListKeys(msg)
		case SyncView:
			return m.handleSyncKeys(msg)
		}

	case logsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.status = msg.status
		items := make([]list.Item, len(msg.entries))
		for i, entry := range msg.entries {
			items[i] = entryItem{entry: entry}
		}
		m.logList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.logList.Title = "Sync Log"
		m.logList.SetSize(m.width-4, m.height-10)
		m.view = LogListView
		return m, nil

	case progressUpdateMsg:
		m.progress = engine.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case syncCompleteMsg:
		m.err = msg.err
		m.progressChan = nil
		if msg.err != nil {
			return m, nil
		}
		return m, m.fetchLogs()
	}

	return m.updateList(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != SyncView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case LogListView:
		return m.renderLogList()
	case SyncView:
		return m.renderSync()
	default:
		return ""
	}
}

func (m *Model) handleLogListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		return m, m.fetchLogs()
	case "s":
		m.view = SyncView
		return m, m.startSync(false)
	case "S":
		m.view = SyncView
		return m, m.startSync(true)
	}

	var cmd tea.Cmd
	m.logList, cmd = m.logList.Update(msg)
	return m, cmd
}

func (m *Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == LogListView {
		m.logList, cmd = m.logList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchLogs() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.engine.Logs(100)
		if err != nil {
			return logsFetchedMsg{err: err}
		}
		status, err := m.engine.Status()
		return logsFetchedMsg{entries: entries, status: status, err: err}
	}
}

func (m *Model) startSync(full bool) tea.Cmd {
	m.progress = engine.ProgressUpdate{}
	m.progressChan = make(chan engine.ProgressUpdate, 50)
	progressChan := m.progressChan

	done := make(chan error, 1)
	go func() {
		var err error
		if full {
			err = m.engine.FullSync(m.ctx, progressChan)
		} else {
			err = m.engine.IncrementalSync(m.ctx, progressChan)
		}
		close(progressChan)
		done <- err
	}()
	m.syncDone = done

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return syncCompleteMsg{}
		}

		update, ok := <-m.progressChan
		if !ok {
			return syncCompleteMsg{err: <-m.syncDone}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderLogList() string {
	header := ""
	if m.status != nil {
		sync := styles.warn.Render("disabled")
		if m.status.Enabled {
			sync = styles.ok.Render("enabled")
		}
		auth := styles.ok.Render("authorized")
		if !m.status.Authorized {
			auth = styles.warn.Render("simulation mode")
		}
		header = styles.title.Render("Calendar Sync") +
			fmt.Sprintf("\nSync %s • %s • %d log entries\n", sync, auth, m.status.LogCount)
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n%s\n\n%s", header, m.logList.View(), helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing Calendar")

	var phase string
	switch m.progress.Phase {
	case engine.PushTasks:
		phase = fmt.Sprintf("Pushing tasks (%d/%d)", m.progress.Step, m.progress.Total)
	case engine.PullEvents:
		phase = "Pulling remote events..."
	case engine.ProcessEvents:
		phase = fmt.Sprintf("Processing events (%d/%d)", m.progress.Step, m.progress.Total)
	case engine.AcquireToken:
		phase = "Acquiring continuation token..."
	default:
		phase = "Working..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}
