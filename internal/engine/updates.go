package engine

import "fmt"

// ProgressUpdate represents a progress event during a long-running sync pass.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	PushTasks Phase = iota
	PullEvents
	ProcessEvents
	AcquireToken
)

func (p Phase) String() string {
	switch p {
	case PushTasks:
		return "push_tasks"
	case PullEvents:
		return "pull_events"
	case ProcessEvents:
		return "process_events"
	case AcquireToken:
		return "acquire_token"
	default:
		return ""
	}
}

func pushTaskUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PushTasks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Pushing: %s", step, total, title),
	}
}

func pullEventsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PullEvents,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Pulled %d remote events", count),
	}
}

func processEventUpdate(step, total int, eventID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ProcessEvents,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Processing event %s", step, total, eventID),
	}
}

func acquireTokenUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   AcquireToken,
		Step:    1,
		Total:   1,
		Message: "Acquiring fresh continuation token...",
	}
}

// emit sends a progress update without blocking; a slow or absent
// consumer never stalls a sync pass.
func emit(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
