package formatter

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/calsync/internal/engine"
	"github.com/desertthunder/calsync/internal/models"
)

func sampleEntries() []*models.SyncLogEntry {
	eventID := "evt_1"
	resolution := "remote"
	errMsg := "status 500"

	return []*models.SyncLogEntry{
		{
			ID:            "log_1",
			UserID:        "user_1",
			Operation:     models.OpCreate,
			Direction:     models.ToRemote,
			TaskID:        "t1",
			RemoteEventID: &eventID,
			Status:        models.OutcomeSuccess,
			CreatedAt:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:                 "log_2",
			UserID:             "user_1",
			Operation:          models.OpUpdate,
			Direction:          models.FromRemote,
			TaskID:             "t1",
			RemoteEventID:      &eventID,
			Status:             models.OutcomeConflict,
			ConflictResolution: &resolution,
			CreatedAt:          time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC),
		},
		{
			ID:        "log_3",
			UserID:    "user_1",
			Operation: models.OpDelete,
			Direction: models.ToRemote,
			TaskID:    "t2",
			Status:    models.OutcomeError,
			Error:     &errMsg,
			CreatedAt: time.Date(2026, 3, 10, 9, 10, 0, 0, time.UTC),
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"", FormatText, false},
		{"CSV", FormatCSV, false},
		{"json", FormatJSON, false},
		{"markdown", FormatMarkdown, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestLogsToCSV(t *testing.T) {
	data, err := LogsToCSV(sampleEntries())
	if err != nil {
		t.Fatalf("LogsToCSV failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("Generated CSV does not parse: %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("Expected header + 3 rows, got %d", len(records))
	}
	if records[0][0] != "Time" || records[0][5] != "Status" {
		t.Errorf("Unexpected headers: %v", records[0])
	}
	if records[2][6] != "remote" {
		t.Errorf("Expected conflict resolution in row, got %q", records[2][6])
	}
	if records[3][7] != "status 500" {
		t.Errorf("Expected error message in row, got %q", records[3][7])
	}
}

func TestLogsToText(t *testing.T) {
	data, err := LogsToText(sampleEntries())
	if err != nil {
		t.Fatalf("LogsToText failed: %v", err)
	}
	text := string(data)

	if !strings.Contains(text, "3 entries") {
		t.Error("Expected entry count in header")
	}
	if !strings.Contains(text, "create to_remote task=t1 event=evt_1 (success)") {
		t.Errorf("Expected formatted entry line, got:\n%s", text)
	}
	if !strings.Contains(text, "winner=remote") {
		t.Error("Expected conflict winner in output")
	}
	if !strings.Contains(text, `error="status 500"`) {
		t.Error("Expected error message in output")
	}
}

func TestLogsToMarkdown(t *testing.T) {
	data, err := LogsToMarkdown(sampleEntries())
	if err != nil {
		t.Fatalf("LogsToMarkdown failed: %v", err)
	}
	text := string(data)

	if !strings.HasPrefix(text, "# Sync Log") {
		t.Error("Expected Markdown title")
	}
	if strings.Count(text, "\n|") < 5 {
		t.Errorf("Expected a table with 3 data rows, got:\n%s", text)
	}
}

func TestLogsToJSON(t *testing.T) {
	data, err := LogsToJSON(sampleEntries())
	if err != nil {
		t.Fatalf("LogsToJSON failed: %v", err)
	}

	var decoded []models.SyncLogEntry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Generated JSON does not parse: %v", err)
	}
	if len(decoded) != 3 || decoded[0].ID != "log_1" {
		t.Errorf("Unexpected decoded entries: %+v", decoded)
	}
}

func TestWriteLogExport(t *testing.T) {
	t.Run("writes the chosen format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs.csv")

		written, err := WriteLogExport(sampleEntries(), FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteLogExport failed: %v", err)
		}
		if written != path {
			t.Errorf("Expected path %s, got %s", path, written)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read export: %v", err)
		}
		if !strings.HasPrefix(string(content), "Time,") {
			t.Error("Expected CSV content")
		}
	})

	t.Run("defaults the filename by format", func(t *testing.T) {
		dir := t.TempDir()
		wd, _ := os.Getwd()
		if err := os.Chdir(dir); err != nil {
			t.Fatalf("Failed to chdir: %v", err)
		}
		defer os.Chdir(wd)

		written, err := WriteLogExport(sampleEntries(), FormatJSON, "")
		if err != nil {
			t.Fatalf("WriteLogExport failed: %v", err)
		}
		if written != "sync_log.json" {
			t.Errorf("Expected default filename, got %s", written)
		}
	})
}

func TestRenderStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	summary := &engine.StatusSummary{
		UserID:       "user_1",
		Enabled:      true,
		Authorized:   false,
		LastFullSync: &now,
		TaskCounts: map[models.SyncStatus]int{
			models.SyncSynced:  4,
			models.SyncErrored: 1,
		},
		LogCount: 12,
	}

	out := RenderStatus(summary)

	if !strings.Contains(out, "user_1") {
		t.Error("Expected user id in output")
	}
	if !strings.Contains(out, "simulation mode") {
		t.Error("Expected simulation-mode notice without credentials")
	}
	if !strings.Contains(out, "2026-03-10 09:00:00") {
		t.Error("Expected full sync timestamp")
	}
	if !strings.Contains(out, "never") {
		t.Error("Expected never for a missing timestamp")
	}
	if !strings.Contains(out, "12 log entries") {
		t.Error("Expected log count")
	}
}
