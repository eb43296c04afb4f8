// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/calsync/internal/calendar"
	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/shared"
	gcal "google.golang.org/api/calendar/v3"
)

// MockClient is a test double for [calendar.Client]. Each method delegates
// to the corresponding function field when set and falls back to a benign
// default otherwise, so tests only stub what they exercise.
type MockClient struct {
	AuthorizedFunc   func() bool
	CreateEventFunc  func(ctx context.Context, task *models.Task, project *models.Project) (string, error)
	UpdateEventFunc  func(ctx context.Context, eventID string, task *models.Task, project *models.Project) error
	DeleteEventFunc  func(ctx context.Context, eventID string) error
	GetEventFunc     func(ctx context.Context, eventID string) (*gcal.Event, error)
	ListEventsFunc   func(ctx context.Context, opts calendar.ListOptions) (*calendar.ListResult, error)
	FreshTokenFunc   func(ctx context.Context) ([]*gcal.Event, string, error)
	WatchFunc        func(ctx context.Context, channelID, webhookURL string) (*calendar.Channel, error)
	StopChannelFunc  func(ctx context.Context, channelID, resourceID string) error

	// Call counters for asserting interaction patterns.
	CreateCalls     int
	UpdateCalls     int
	DeleteCalls     int
	ListCalls       int
	FreshTokenCalls int
	WatchCalls      int
	StopCalls       int
}

func (m *MockClient) Authorized() bool {
	if m.AuthorizedFunc != nil {
		return m.AuthorizedFunc()
	}
	return true
}

func (m *MockClient) CreateEvent(ctx context.Context, task *models.Task, project *models.Project) (string, error) {
	m.CreateCalls++
	if m.CreateEventFunc != nil {
		return m.CreateEventFunc(ctx, task, project)
	}
	return "evt_mock", nil
}

func (m *MockClient) UpdateEvent(ctx context.Context, eventID string, task *models.Task, project *models.Project) error {
	m.UpdateCalls++
	if m.UpdateEventFunc != nil {
		return m.UpdateEventFunc(ctx, eventID, task, project)
	}
	return nil
}

func (m *MockClient) DeleteEvent(ctx context.Context, eventID string) error {
	m.DeleteCalls++
	if m.DeleteEventFunc != nil {
		return m.DeleteEventFunc(ctx, eventID)
	}
	return nil
}

func (m *MockClient) GetEvent(ctx context.Context, eventID string) (*gcal.Event, error) {
	if m.GetEventFunc != nil {
		return m.GetEventFunc(ctx, eventID)
	}
	return nil, nil
}

func (m *MockClient) ListEvents(ctx context.Context, opts calendar.ListOptions) (*calendar.ListResult, error) {
	m.ListCalls++
	if m.ListEventsFunc != nil {
		return m.ListEventsFunc(ctx, opts)
	}
	return &calendar.ListResult{}, nil
}

func (m *MockClient) ListEventsForFreshToken(ctx context.Context) ([]*gcal.Event, string, error) {
	m.FreshTokenCalls++
	if m.FreshTokenFunc != nil {
		return m.FreshTokenFunc(ctx)
	}
	return nil, "token-fresh", nil
}

func (m *MockClient) Watch(ctx context.Context, channelID, webhookURL string) (*calendar.Channel, error) {
	m.WatchCalls++
	if m.WatchFunc != nil {
		return m.WatchFunc(ctx, channelID, webhookURL)
	}
	return &calendar.Channel{ID: channelID, ResourceID: "res_mock"}, nil
}

func (m *MockClient) StopChannel(ctx context.Context, channelID, resourceID string) error {
	m.StopCalls++
	if m.StopChannelFunc != nil {
		return m.StopChannelFunc(ctx, channelID, resourceID)
	}
	return nil
}

// MustOpenDB opens an in-memory SQLite database with the schema applied
// and closes it when the test finishes.
func MustOpenDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
