package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/calsync/internal/models"
	"google.golang.org/api/calendar/v3"
)

func strPtr(s string) *string { return &s }

func TestTaskToEvent(t *testing.T) {
	t.Run("all-day task becomes a date event with exclusive end", func(t *testing.T) {
		task := &models.Task{
			ID:            "t1",
			UserID:        "user_1",
			Title:         "Write report",
			Description:   "Quarterly numbers",
			ScheduledDate: strPtr("2026-03-10"),
		}

		event, err := TaskToEvent(task, nil)
		if err != nil {
			t.Fatalf("TaskToEvent failed: %v", err)
		}

		if event.Summary != "Write report" {
			t.Errorf("Expected summary, got %q", event.Summary)
		}
		if event.Start.Date != "2026-03-10" {
			t.Errorf("Expected start date 2026-03-10, got %s", event.Start.Date)
		}
		if event.End.Date != "2026-03-11" {
			t.Errorf("Expected exclusive end date 2026-03-11, got %s", event.End.Date)
		}
		if event.Start.DateTime != "" {
			t.Error("Expected no dateTime on an all-day event")
		}
	})

	t.Run("timed task becomes a dateTime event", func(t *testing.T) {
		task := &models.Task{
			ID:                 "t1",
			UserID:             "user_1",
			Title:              "Standup",
			ScheduledDate:      strPtr("2026-03-10"),
			ScheduledStartTime: strPtr("09:00"),
			ScheduledEndTime:   strPtr("09:30"),
			IncludeTime:        true,
		}

		event, err := TaskToEvent(task, nil)
		if err != nil {
			t.Fatalf("TaskToEvent failed: %v", err)
		}

		start, err := time.Parse(time.RFC3339, event.Start.DateTime)
		if err != nil {
			t.Fatalf("Bad start dateTime: %v", err)
		}
		if start.Format("15:04") != "09:00" {
			t.Errorf("Expected 09:00 start, got %s", start.Format("15:04"))
		}

		end, err := time.Parse(time.RFC3339, event.End.DateTime)
		if err != nil {
			t.Fatalf("Bad end dateTime: %v", err)
		}
		if !end.After(start) {
			t.Error("Expected end after start")
		}
	})

	t.Run("inverted time range is widened", func(t *testing.T) {
		task := &models.Task{
			ID:                 "t1",
			UserID:             "user_1",
			Title:              "Standup",
			ScheduledDate:      strPtr("2026-03-10"),
			ScheduledStartTime: strPtr("09:00"),
			ScheduledEndTime:   strPtr("09:00"),
			IncludeTime:        true,
		}

		event, err := TaskToEvent(task, nil)
		if err != nil {
			t.Fatalf("TaskToEvent failed: %v", err)
		}

		start, _ := time.Parse(time.RFC3339, event.Start.DateTime)
		end, _ := time.Parse(time.RFC3339, event.End.DateTime)
		if end.Sub(start) != 30*time.Minute {
			t.Errorf("Expected 30m span, got %v", end.Sub(start))
		}
	})

	t.Run("embeds the ownership marker", func(t *testing.T) {
		task := &models.Task{
			ID:            "t1",
			UserID:        "user_1",
			ProjectID:     "p1",
			Title:         "Write report",
			ScheduledDate: strPtr("2026-03-10"),
		}

		event, err := TaskToEvent(task, nil)
		if err != nil {
			t.Fatalf("TaskToEvent failed: %v", err)
		}

		if !IsOurEvent(event) {
			t.Error("Expected the event to carry the ownership marker")
		}
		if id, ok := TaskIDFromEvent(event); !ok || id != "t1" {
			t.Errorf("Expected task id t1, got %q (%v)", id, ok)
		}
		if id, ok := ProjectIDFromEvent(event); !ok || id != "p1" {
			t.Errorf("Expected project id p1, got %q (%v)", id, ok)
		}
	})

	t.Run("project supplies the event color", func(t *testing.T) {
		task := &models.Task{
			ID:            "t1",
			UserID:        "user_1",
			Title:         "Write report",
			ScheduledDate: strPtr("2026-03-10"),
		}
		project := &models.Project{ID: "p1", UserID: "user_1", Name: "Work", Color: "#4caf50"}

		event, err := TaskToEvent(task, project)
		if err != nil {
			t.Fatalf("TaskToEvent failed: %v", err)
		}
		if event.ColorId != "10" {
			t.Errorf("Expected color id 10, got %s", event.ColorId)
		}
		if !strings.Contains(event.Description, "Project: Work") {
			t.Error("Expected project name in the description")
		}
	})

	t.Run("unscheduled task is rejected", func(t *testing.T) {
		task := &models.Task{ID: "t1", UserID: "user_1", Title: "Someday"}

		if _, err := TaskToEvent(task, nil); err == nil {
			t.Fatal("Expected error for unscheduled task")
		}
	})
}

func TestEventToTask(t *testing.T) {
	t.Run("date event clears clock times", func(t *testing.T) {
		task := &models.Task{
			ID:                 "t1",
			UserID:             "user_1",
			Title:              "Old title",
			ScheduledStartTime: strPtr("09:00"),
			IncludeTime:        true,
		}
		event := &calendar.Event{
			Id:      "evt_1",
			Summary: "New title",
			Start:   &calendar.EventDateTime{Date: "2026-03-10"},
			End:     &calendar.EventDateTime{Date: "2026-03-11"},
		}

		if err := EventToTask(event, task); err != nil {
			t.Fatalf("EventToTask failed: %v", err)
		}

		if task.Title != "New title" {
			t.Errorf("Expected title applied, got %q", task.Title)
		}
		if task.ScheduledDate == nil || *task.ScheduledDate != "2026-03-10" {
			t.Errorf("Expected scheduled date, got %v", task.ScheduledDate)
		}
		if task.IncludeTime || task.ScheduledStartTime != nil {
			t.Error("Expected clock times cleared for an all-day event")
		}
	})

	t.Run("dateTime event derives clock times", func(t *testing.T) {
		start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
		end := start.Add(45 * time.Minute)
		task := &models.Task{ID: "t1", UserID: "user_1"}
		event := &calendar.Event{
			Id:      "evt_1",
			Summary: "Standup",
			Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
			End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
		}

		if err := EventToTask(event, task); err != nil {
			t.Fatalf("EventToTask failed: %v", err)
		}

		if task.ScheduledDate == nil || *task.ScheduledDate != "2026-03-10" {
			t.Errorf("Expected scheduled date, got %v", task.ScheduledDate)
		}
		if task.ScheduledStartTime == nil || *task.ScheduledStartTime != "09:00" {
			t.Errorf("Expected 09:00 start, got %v", task.ScheduledStartTime)
		}
		if task.ScheduledEndTime == nil || *task.ScheduledEndTime != "09:45" {
			t.Errorf("Expected 09:45 end, got %v", task.ScheduledEndTime)
		}
		if !task.IncludeTime {
			t.Error("Expected include time flag")
		}
	})

	t.Run("event without a start is rejected", func(t *testing.T) {
		task := &models.Task{ID: "t1", UserID: "user_1"}
		event := &calendar.Event{Id: "evt_1", Summary: "Broken"}

		if err := EventToTask(event, task); err == nil {
			t.Fatal("Expected error for event without start")
		}
	})
}

func TestDescriptionRoundTrip(t *testing.T) {
	t.Run("synthesized metadata is stripped on the way back", func(t *testing.T) {
		task := &models.Task{
			ID:            "t1",
			UserID:        "user_1",
			Title:         "Write report",
			Description:   "Quarterly numbers\nwith details",
			Status:        "in_progress",
			TimeEstimated: 150,
			TimeSpent:     30,
			ScheduledDate: strPtr("2026-03-10"),
		}
		project := &models.Project{ID: "p1", UserID: "user_1", Name: "Work", Color: "#4caf50"}

		event, err := TaskToEvent(task, project)
		if err != nil {
			t.Fatalf("TaskToEvent failed: %v", err)
		}

		if !strings.Contains(event.Description, "Estimated time: 2h30m") {
			t.Errorf("Expected estimated time in description, got %q", event.Description)
		}

		restored := &models.Task{ID: "t1", UserID: "user_1"}
		if err := EventToTask(event, restored); err != nil {
			t.Fatalf("EventToTask failed: %v", err)
		}

		if restored.Description != "Quarterly numbers\nwith details" {
			t.Errorf("Expected original description restored, got %q", restored.Description)
		}
	})

	t.Run("empty description stays empty", func(t *testing.T) {
		task := &models.Task{
			ID:            "t1",
			UserID:        "user_1",
			Title:         "Write report",
			ScheduledDate: strPtr("2026-03-10"),
		}

		event, err := TaskToEvent(task, nil)
		if err != nil {
			t.Fatalf("TaskToEvent failed: %v", err)
		}

		restored := &models.Task{ID: "t1", UserID: "user_1"}
		if err := EventToTask(event, restored); err != nil {
			t.Fatalf("EventToTask failed: %v", err)
		}
		if restored.Description != "" {
			t.Errorf("Expected empty description, got %q", restored.Description)
		}
	})
}

func TestOwnershipMarker(t *testing.T) {
	t.Run("foreign events are not ours", func(t *testing.T) {
		event := &calendar.Event{Id: "evt_1", Summary: "Dentist"}

		if IsOurEvent(event) {
			t.Error("Expected a foreign event")
		}
		if _, ok := TaskIDFromEvent(event); ok {
			t.Error("Expected no task id on a foreign event")
		}
	})

	t.Run("nil event is handled", func(t *testing.T) {
		if IsOurEvent(nil) {
			t.Error("Expected nil event to not be ours")
		}
	})
}

func TestColorIDFor(t *testing.T) {
	tests := []struct {
		hex  string
		want string
	}{
		{"#4caf50", "10"},
		{"#F44336", "11"},
		{"#123456", defaultColorID},
		{"", defaultColorID},
	}

	for _, tt := range tests {
		if got := ColorIDFor(tt.hex); got != tt.want {
			t.Errorf("ColorIDFor(%q) = %s, want %s", tt.hex, got, tt.want)
		}
	}
}

func TestEventModifiedAt(t *testing.T) {
	t.Run("parses the provider timestamp", func(t *testing.T) {
		stamp := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		event := &calendar.Event{Updated: stamp.Format(time.RFC3339)}

		got, err := EventModifiedAt(event)
		if err != nil {
			t.Fatalf("EventModifiedAt failed: %v", err)
		}
		if !got.Equal(stamp) {
			t.Errorf("Expected %v, got %v", stamp, got)
		}
	})

	t.Run("missing timestamp is an error", func(t *testing.T) {
		if _, err := EventModifiedAt(&calendar.Event{}); err == nil {
			t.Fatal("Expected error for missing timestamp")
		}
	})
}
