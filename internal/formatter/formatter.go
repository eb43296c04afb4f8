// package formatter renders sync log entries and status summaries to the
// formats the CLI exposes (plain text, CSV, Markdown, JSON) and writes the
// corresponding export files.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/calsync/internal/engine"
	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/shared"
)

// Format identifies an export format.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

const logTimeLayout = "2006-01-02 15:04:05"

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// LogsToCSV converts sync log entries to CSV with columns:
// Time, Operation, Direction, Task, Event, Status, Resolution, Error
func LogsToCSV(entries []*models.SyncLogEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Time", "Operation", "Direction", "Task", "Event", "Status", "Resolution", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range entries {
		record := []string{
			entry.CreatedAt.Format(time.RFC3339),
			string(entry.Operation),
			string(entry.Direction),
			entry.TaskID,
			deref(entry.RemoteEventID),
			string(entry.Status),
			deref(entry.ConflictResolution),
			deref(entry.Error),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// LogsToText converts sync log entries to plain text, one line per entry.
func LogsToText(entries []*models.SyncLogEntry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Sync log: %d entries\n\n", len(entries)))

	for i, entry := range entries {
		line := fmt.Sprintf("%d. [%s] %s %s task=%s", i+1,
			entry.CreatedAt.Format(logTimeLayout), entry.Operation, entry.Direction, entry.TaskID)
		if id := deref(entry.RemoteEventID); id != "" {
			line += fmt.Sprintf(" event=%s", id)
		}
		line += fmt.Sprintf(" (%s)", entry.Status)
		if res := deref(entry.ConflictResolution); res != "" {
			line += fmt.Sprintf(" winner=%s", res)
		}
		if msg := deref(entry.Error); msg != "" {
			line += fmt.Sprintf(" error=%q", msg)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// LogsToMarkdown converts sync log entries to a Markdown table.
func LogsToMarkdown(entries []*models.SyncLogEntry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Sync Log\n\n")
	buf.WriteString(fmt.Sprintf("**Entries**: %d\n\n", len(entries)))
	buf.WriteString("| Time | Operation | Direction | Task | Event | Status | Resolution |\n")
	buf.WriteString("|------|-----------|-----------|------|-------|--------|------------|\n")

	for _, entry := range entries {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
			entry.CreatedAt.Format(logTimeLayout), entry.Operation, entry.Direction,
			entry.TaskID, deref(entry.RemoteEventID), entry.Status,
			deref(entry.ConflictResolution)))
	}

	return buf.Bytes(), nil
}

// LogsToJSON converts sync log entries to indented JSON.
func LogsToJSON(entries []*models.SyncLogEntry) ([]byte, error) {
	return shared.MarshalJSON(entries, true)
}

// ExportLogs renders entries in the requested format.
func ExportLogs(entries []*models.SyncLogEntry, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return LogsToCSV(entries)
	case FormatJSON:
		return LogsToJSON(entries)
	case FormatMarkdown:
		return LogsToMarkdown(entries)
	default:
		return LogsToText(entries)
	}
}

// WriteLogExport renders entries and writes them to a file. The filename
// defaults to sync_log.{ext} for the chosen format.
func WriteLogExport(entries []*models.SyncLogEntry, format Format, filepath string) (string, error) {
	data, err := ExportLogs(entries, format)
	if err != nil {
		return "", err
	}

	if filepath == "" {
		ext := map[Format]string{
			FormatCSV:      "csv",
			FormatJSON:     "json",
			FormatMarkdown: "md",
			FormatText:     "txt",
		}[format]
		filepath = "sync_log." + ext
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write log export: %w", err)
	}

	return filepath, nil
}

// StatusToJSON converts a status summary to indented JSON.
func StatusToJSON(summary *engine.StatusSummary) ([]byte, error) {
	return shared.MarshalJSON(summary, true)
}

var (
	statusTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusKeyStyle   = lipgloss.NewStyle().Bold(true).Width(14)
	statusOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func onOff(on bool) string {
	if on {
		return statusOKStyle.Render("enabled")
	}
	return statusWarnStyle.Render("disabled")
}

func stamp(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(logTimeLayout)
}

// RenderStatus renders a status summary for terminal display.
func RenderStatus(summary *engine.StatusSummary) string {
	var b strings.Builder

	b.WriteString(statusTitleStyle.Render("Calendar Sync Status"))
	b.WriteString("\n\n")

	auth := statusOKStyle.Render("authorized")
	if !summary.Authorized {
		auth = statusWarnStyle.Render("simulation mode (no credentials)")
	}

	rows := []struct{ key, value string }{
		{"User", summary.UserID},
		{"Sync", onOff(summary.Enabled)},
		{"Credentials", auth},
		{"Full sync", stamp(summary.LastFullSync)},
		{"Incremental", stamp(summary.LastIncrementalSync)},
	}
	for _, row := range rows {
		b.WriteString(statusKeyStyle.Render(row.key) + row.value + "\n")
	}

	if summary.WebhookActive {
		b.WriteString(statusKeyStyle.Render("Webhook") + statusOKStyle.Render("active") + "\n")
	}

	if len(summary.TaskCounts) > 0 {
		b.WriteString("\n" + statusTitleStyle.Render("Tasks") + "\n")
		for _, status := range []models.SyncStatus{models.SyncSynced, models.SyncPending, models.SyncErrored, models.SyncDisabled} {
			count, ok := summary.TaskCounts[status]
			if !ok {
				continue
			}
			value := fmt.Sprintf("%d", count)
			if status == models.SyncErrored && count > 0 {
				value = statusErrStyle.Render(value)
			}
			b.WriteString(statusKeyStyle.Render(string(status)) + value + "\n")
		}
	}

	b.WriteString(fmt.Sprintf("\n%d log entries recorded\n", summary.LogCount))
	return b.String()
}
