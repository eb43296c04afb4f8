package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/shared"
	"google.golang.org/api/calendar/v3"
)

// Ownership marker keys. The private extended-property slot is the only way
// the engine recognizes its own events on the way back in; without it every
// pull would re-import our own writes as new tasks.
const (
	propOwner     = "calsync_owner"
	propTaskID    = "calsync_task_id"
	propProjectID = "calsync_project_id"

	ownerTag = "calsync"
)

// descriptionFooter terminates the metadata block synthesized into event
// descriptions, so EventToTask can strip it back out.
const descriptionFooter = "--- synced by calsync ---"

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// defaultColorID is the neutral fallback for unknown project colors
// (Google's "Graphite").
const defaultColorID = "8"

// colorPalette maps project hex colors onto the provider's fixed event
// color ids.
var colorPalette = map[string]string{
	"#7986cb": "1",  // lavender
	"#33b679": "2",  // sage
	"#8bc34a": "2",  // sage
	"#8e24aa": "3",  // grape
	"#9c27b0": "3",  // grape
	"#e67c73": "4",  // flamingo
	"#e91e63": "4",  // flamingo
	"#f6bf26": "5",  // banana
	"#ffc107": "5",  // banana
	"#f4511e": "6",  // tangerine
	"#ff9800": "6",  // tangerine
	"#039be5": "7",  // peacock
	"#2196f3": "7",  // peacock
	"#616161": "8",  // graphite
	"#3f51b5": "9",  // blueberry
	"#673ab7": "9",  // blueberry
	"#0b8043": "10", // basil
	"#4caf50": "10", // basil
	"#d50000": "11", // tomato
	"#f44336": "11", // tomato
}

// ColorIDFor maps a project hex color onto a provider color id, defaulting
// to a neutral color on unknown input.
func ColorIDFor(hex string) string {
	if id, ok := colorPalette[strings.ToLower(hex)]; ok {
		return id
	}
	return defaultColorID
}

// TaskToEvent converts a task (and its project, which may be nil) into the
// provider event representation, embedding the ownership marker.
//
// A scheduled date with IncludeTime and both clock times becomes a timed
// event in the local zone; anything else becomes an all-day event with a
// date-only start and an exclusive next-day end.
func TaskToEvent(task *models.Task, project *models.Project) (*calendar.Event, error) {
	if task == nil {
		return nil, fmt.Errorf("%w: nil task", shared.ErrInvalidInput)
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if !task.Scheduled() {
		return nil, fmt.Errorf("%w: task %s has no scheduled date", shared.ErrInvalidInput, task.ID)
	}

	event := &calendar.Event{
		Summary:     task.Title,
		Description: buildDescription(task, project),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				propOwner:  ownerTag,
				propTaskID: task.ID,
			},
		},
	}

	if project != nil {
		event.ExtendedProperties.Private[propProjectID] = project.ID
		event.ColorId = ColorIDFor(project.Color)
	} else if task.ProjectID != "" {
		event.ExtendedProperties.Private[propProjectID] = task.ProjectID
	}

	date := *task.ScheduledDate
	if task.IncludeTime && task.ScheduledStartTime != nil && task.ScheduledEndTime != nil {
		start, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+*task.ScheduledStartTime, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: bad start time: %v", shared.ErrInvalidInput, err)
		}
		end, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+*task.ScheduledEndTime, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: bad end time: %v", shared.ErrInvalidInput, err)
		}
		if !end.After(start) {
			// Zero-length or inverted ranges are rejected by the provider.
			end = start.Add(30 * time.Minute)
		}

		event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}
		event.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)}
	} else {
		day, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("%w: bad scheduled date: %v", shared.ErrInvalidInput, err)
		}

		// All-day events use an exclusive end date.
		event.Start = &calendar.EventDateTime{Date: date}
		event.End = &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(dateLayout)}
	}

	return event, nil
}

// EventToTask applies the event's fields onto the task: title, the
// description with synthesized metadata stripped, and the schedule derived
// from whichever of date or dateTime the event start carries.
func EventToTask(event *calendar.Event, task *models.Task) error {
	if event == nil || task == nil {
		return fmt.Errorf("%w: nil event or task", shared.ErrInvalidInput)
	}
	if event.Start == nil {
		return fmt.Errorf("%w: event %s has no start", shared.ErrInvalidInput, event.Id)
	}

	task.Title = event.Summary
	task.Description = stripMetadata(event.Description)

	switch {
	case event.Start.Date != "":
		date := event.Start.Date
		task.ScheduledDate = &date
		task.ScheduledStartTime = nil
		task.ScheduledEndTime = nil
		task.IncludeTime = false

	case event.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, event.Start.DateTime)
		if err != nil {
			return fmt.Errorf("%w: bad event start: %v", shared.ErrInvalidInput, err)
		}
		start = start.In(time.Local)

		date := start.Format(dateLayout)
		startHM := start.Format(timeLayout)
		task.ScheduledDate = &date
		task.ScheduledStartTime = &startHM
		task.IncludeTime = true

		if event.End != nil && event.End.DateTime != "" {
			end, err := time.Parse(time.RFC3339, event.End.DateTime)
			if err != nil {
				return fmt.Errorf("%w: bad event end: %v", shared.ErrInvalidInput, err)
			}
			endHM := end.In(time.Local).Format(timeLayout)
			task.ScheduledEndTime = &endHM
		} else {
			task.ScheduledEndTime = nil
		}

	default:
		return fmt.Errorf("%w: event %s start has neither date nor dateTime", shared.ErrInvalidInput, event.Id)
	}

	return nil
}

// IsOurEvent reports whether the event carries this engine's ownership
// marker. Events without it belong to the user's own calendar and must
// never be imported.
func IsOurEvent(event *calendar.Event) bool {
	if event == nil || event.ExtendedProperties == nil {
		return false
	}
	return event.ExtendedProperties.Private[propOwner] == ownerTag
}

// TaskIDFromEvent recovers the originating task id from the ownership
// marker. Absence is a normal, checked case.
func TaskIDFromEvent(event *calendar.Event) (string, bool) {
	if event == nil || event.ExtendedProperties == nil {
		return "", false
	}
	id, ok := event.ExtendedProperties.Private[propTaskID]
	return id, ok && id != ""
}

// ProjectIDFromEvent recovers the project id from the ownership marker.
func ProjectIDFromEvent(event *calendar.Event) (string, bool) {
	if event == nil || event.ExtendedProperties == nil {
		return "", false
	}
	id, ok := event.ExtendedProperties.Private[propProjectID]
	return id, ok && id != ""
}

// EventModifiedAt parses the provider-side last-modified timestamp.
func EventModifiedAt(event *calendar.Event) (time.Time, error) {
	if event == nil || event.Updated == "" {
		return time.Time{}, fmt.Errorf("%w: event has no updated timestamp", shared.ErrInvalidInput)
	}
	t, err := time.Parse(time.RFC3339, event.Updated)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad updated timestamp: %v", shared.ErrInvalidInput, err)
	}
	return t, nil
}

// buildDescription synthesizes the event description: the task's free-text
// description, a blank line, then the metadata block and footer.
func buildDescription(task *models.Task, project *models.Project) string {
	var b strings.Builder

	if task.Description != "" {
		b.WriteString(task.Description)
		b.WriteString("\n\n")
	}

	if project != nil {
		b.WriteString(fmt.Sprintf("Project: %s\n", project.Name))
	}
	if task.TimeEstimated > 0 {
		b.WriteString(fmt.Sprintf("Estimated time: %s\n", shared.FormatMinutes(task.TimeEstimated)))
	}
	if task.TimeSpent > 0 {
		b.WriteString(fmt.Sprintf("Time spent: %s\n", shared.FormatMinutes(task.TimeSpent)))
	}
	if task.Status != "" {
		b.WriteString(fmt.Sprintf("Status: %s\n", task.Status))
	}

	b.WriteString("\n")
	b.WriteString(descriptionFooter)

	return b.String()
}

// metadataPrefixes are the line starts of the synthesized metadata block.
var metadataPrefixes = []string{"Project: ", "Estimated time: ", "Time spent: ", "Status: "}

// stripMetadata removes the footer and the synthesized metadata lines,
// returning the task's original free-text description.
func stripMetadata(desc string) string {
	if i := strings.Index(desc, descriptionFooter); i >= 0 {
		desc = desc[:i]
	}

	lines := strings.Split(desc, "\n")
	end := len(lines)
	for end > 0 {
		line := strings.TrimSpace(lines[end-1])
		if line == "" {
			end--
			continue
		}
		meta := false
		for _, prefix := range metadataPrefixes {
			if strings.HasPrefix(line, prefix) {
				meta = true
				break
			}
		}
		if !meta {
			break
		}
		end--
	}

	return strings.TrimRight(strings.Join(lines[:end], "\n"), "\n ")
}
