package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/shared"
	"google.golang.org/api/calendar/v3"
)

// SimulatedClient implements [Client] without any network I/O, used when no
// bearer credential is configured. It hands out synthetic ids and keeps
// events in memory, so callers see "configured but empty" behavior; the
// Authorized capability check is the only way to tell the difference.
type SimulatedClient struct {
	mu       sync.Mutex
	events   map[string]*calendar.Event
	tokenSeq int
	logger   *log.Logger
}

// NewSimulatedClient creates an empty [SimulatedClient].
func NewSimulatedClient(logger *log.Logger) *SimulatedClient {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SimulatedClient{
		events: make(map[string]*calendar.Event),
		logger: logger,
	}
}

// Authorized reports that no real credentials back this client.
func (c *SimulatedClient) Authorized() bool {
	return false
}

// CreateEvent stores the converted event under a synthetic id.
func (c *SimulatedClient) CreateEvent(ctx context.Context, task *models.Task, project *models.Project) (string, error) {
	event, err := TaskToEvent(task, project)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	event.Id = "sim_" + shared.GenerateID()
	event.Status = "confirmed"
	event.Updated = time.Now().UTC().Format(time.RFC3339)
	c.events[event.Id] = event

	c.logger.Debug("simulated event create", "event", event.Id, "task", task.ID)
	return event.Id, nil
}

// UpdateEvent rewrites a stored event.
func (c *SimulatedClient) UpdateEvent(ctx context.Context, eventID string, task *models.Task, project *models.Project) error {
	event, err := TaskToEvent(task, project)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.events[eventID]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrEventNotFound, eventID)
	}

	event.Id = eventID
	event.Status = "confirmed"
	event.Updated = time.Now().UTC().Format(time.RFC3339)
	c.events[eventID] = event

	return nil
}

// DeleteEvent removes a stored event.
func (c *SimulatedClient) DeleteEvent(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.events[eventID]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrEventNotFound, eventID)
	}
	delete(c.events, eventID)

	return nil
}

// GetEvent fetches a stored event.
func (c *SimulatedClient) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	event, ok := c.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrEventNotFound, eventID)
	}

	return event, nil
}

// ListEvents returns no changes and a fresh synthetic token.
func (c *SimulatedClient) ListEvents(ctx context.Context, opts ListOptions) (*ListResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokenSeq++
	return &ListResult{
		Items:             nil,
		ContinuationToken: fmt.Sprintf("sim-token-%d", c.tokenSeq),
	}, nil
}

// ListEventsForFreshToken returns all stored events with a synthetic token.
func (c *SimulatedClient) ListEventsForFreshToken(ctx context.Context) ([]*calendar.Event, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]*calendar.Event, 0, len(c.events))
	for _, event := range c.events {
		items = append(items, event)
	}

	c.tokenSeq++
	return items, fmt.Sprintf("sim-token-%d", c.tokenSeq), nil
}

// Watch returns a synthetic channel that expires in a week.
func (c *SimulatedClient) Watch(ctx context.Context, channelID, webhookURL string) (*Channel, error) {
	if channelID == "" || webhookURL == "" {
		return nil, fmt.Errorf("%w: channel id and webhook URL are required", shared.ErrInvalidInput)
	}

	return &Channel{
		ID:         channelID,
		ResourceID: "sim_" + shared.GenerateID(),
		Expiration: time.Now().Add(7 * 24 * time.Hour),
	}, nil
}

// StopChannel is a no-op for simulated channels.
func (c *SimulatedClient) StopChannel(ctx context.Context, channelID, resourceID string) error {
	return nil
}
