package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/shared"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

// sleeper records requested waits instead of sleeping.
type sleeper struct {
	waits []time.Duration
}

func (s *sleeper) sleep(d time.Duration) {
	s.waits = append(s.waits, d)
}

func newTestClient(serverURL string, sleep func(time.Duration)) *GoogleClient {
	return NewGoogleClient(GoogleClientOpts{
		BaseURL: serverURL,
		Tokens:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		Sleep:   sleep,
		Logger:  shared.NewLogger(io.Discard),
	})
}

func testTask() *models.Task {
	date := "2026-03-10"
	return &models.Task{
		ID:            "t1",
		UserID:        "user_1",
		Title:         "Write report",
		ScheduledDate: &date,
	}
}

func TestGoogleClientRateLimiting(t *testing.T) {
	ctx := context.Background()

	t.Run("retries once after a 429 and succeeds", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if requests == 1 {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			json.NewEncoder(w).Encode(&calendar.Event{Id: "evt_1"})
		}))
		defer server.Close()

		s := &sleeper{}
		client := newTestClient(server.URL, s.sleep)

		id, err := client.CreateEvent(ctx, testTask(), nil)
		if err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
		if id != "evt_1" {
			t.Errorf("Expected event id evt_1, got %s", id)
		}
		if requests != 2 {
			t.Errorf("Expected 2 requests, got %d", requests)
		}
		if len(s.waits) != 1 || s.waits[0] != 3*time.Second {
			t.Errorf("Expected one 3s wait, got %v", s.waits)
		}
	})

	t.Run("second 429 is fatal", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		s := &sleeper{}
		client := newTestClient(server.URL, s.sleep)

		_, err := client.CreateEvent(ctx, testTask(), nil)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Fatalf("Expected rate limited error, got %v", err)
		}
		if requests != 2 {
			t.Errorf("Expected exactly 2 requests, got %d", requests)
		}
		if len(s.waits) != 1 {
			t.Errorf("Expected exactly one wait, got %v", s.waits)
		}
	})

	t.Run("defaults the wait when Retry-After is missing", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if requests == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			json.NewEncoder(w).Encode(&calendar.Event{Id: "evt_1"})
		}))
		defer server.Close()

		s := &sleeper{}
		client := newTestClient(server.URL, s.sleep)

		if _, err := client.CreateEvent(ctx, testTask(), nil); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
		if len(s.waits) != 1 || s.waits[0] != defaultRetryAfter {
			t.Errorf("Expected one default wait, got %v", s.waits)
		}
	})
}

func TestGoogleClientStatusMapping(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"401 demands reauthorization", http.StatusUnauthorized, shared.ErrReauthRequired},
		{"410 expires the continuation token", http.StatusGone, shared.ErrSyncTokenExpired},
		{"404 means event not found", http.StatusNotFound, shared.ErrEventNotFound},
		{"500 is a generic API failure", http.StatusInternalServerError, shared.ErrAPIRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server.URL, (&sleeper{}).sleep)

			_, err := client.GetEvent(ctx, "evt_1")
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestListEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("sends bearer token and window bounds without a token", func(t *testing.T) {
		var query url.Values
		var auth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query()
			auth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(&calendar.Events{NextSyncToken: "tok_1"})
		}))
		defer server.Close()

		client := newTestClient(server.URL, (&sleeper{}).sleep)

		min := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
		max := time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)
		result, err := client.ListEvents(ctx, ListOptions{TimeMin: min, TimeMax: max})
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}

		if auth != "Bearer test-token" {
			t.Errorf("Expected bearer auth header, got %q", auth)
		}
		if query.Get("timeMin") == "" || query.Get("timeMax") == "" {
			t.Error("Expected time bounds in the query")
		}
		if query.Get("showDeleted") != "true" {
			t.Error("Expected cancelled events to be requested")
		}
		if query.Get("syncToken") != "" {
			t.Error("Expected no sync token in a windowed listing")
		}
		if result.ContinuationToken != "tok_1" {
			t.Errorf("Expected continuation token tok_1, got %s", result.ContinuationToken)
		}
	})

	t.Run("a continuation token replaces the window bounds", func(t *testing.T) {
		var query url.Values
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query()
			json.NewEncoder(w).Encode(&calendar.Events{NextSyncToken: "tok_2"})
		}))
		defer server.Close()

		client := newTestClient(server.URL, (&sleeper{}).sleep)

		min := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
		_, err := client.ListEvents(ctx, ListOptions{TimeMin: min, ContinuationToken: "tok_1"})
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}

		if query.Get("syncToken") != "tok_1" {
			t.Errorf("Expected sync token tok_1, got %q", query.Get("syncToken"))
		}
		if query.Get("timeMin") != "" || query.Get("timeMax") != "" {
			t.Error("Expected time bounds to be omitted with a token")
		}
	})
}

func TestListUntilToken(t *testing.T) {
	ctx := context.Background()

	t.Run("follows pages until the provider yields a token", func(t *testing.T) {
		pages := map[string]*ListResult{
			"":       {Items: []*calendar.Event{{Id: "e1"}}, NextPageToken: "p2"},
			"p2":     {Items: []*calendar.Event{{Id: "e2"}}, NextPageToken: "p3"},
			"p3":     {Items: []*calendar.Event{{Id: "e3"}}, ContinuationToken: "tok_1"},
		}

		items, token, err := listUntilToken(ctx, maxListPages, func(pageToken string) (*ListResult, error) {
			page, ok := pages[pageToken]
			if !ok {
				return nil, fmt.Errorf("unexpected page token %q", pageToken)
			}
			return page, nil
		})
		if err != nil {
			t.Fatalf("listUntilToken failed: %v", err)
		}
		if token != "tok_1" {
			t.Errorf("Expected token tok_1, got %s", token)
		}
		if len(items) != 3 {
			t.Errorf("Expected 3 items, got %d", len(items))
		}
	})

	t.Run("fails when enumeration ends without a token", func(t *testing.T) {
		_, _, err := listUntilToken(ctx, maxListPages, func(pageToken string) (*ListResult, error) {
			return &ListResult{}, nil
		})
		if !errors.Is(err, shared.ErrNoSyncToken) {
			t.Fatalf("Expected no-token error, got %v", err)
		}
	})

	t.Run("enforces the page cap", func(t *testing.T) {
		calls := 0
		_, _, err := listUntilToken(ctx, maxListPages, func(pageToken string) (*ListResult, error) {
			calls++
			return &ListResult{NextPageToken: "again"}, nil
		})
		if !errors.Is(err, shared.ErrNoSyncToken) {
			t.Fatalf("Expected no-token error, got %v", err)
		}
		if calls != maxListPages {
			t.Errorf("Expected %d fetches, got %d", maxListPages, calls)
		}
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := listUntilToken(cancelled, maxListPages, func(pageToken string) (*ListResult, error) {
			t.Error("Fetch should not run with a cancelled context")
			return &ListResult{}, nil
		})
		if err == nil {
			t.Fatal("Expected an error")
		}
	})
}

func TestNewClient(t *testing.T) {
	t.Run("missing credentials select simulation mode", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		client := NewClient(cfg, shared.NewLogger(io.Discard))

		if client.Authorized() {
			t.Error("Expected an unauthorized simulated client")
		}

		id, err := client.CreateEvent(context.Background(), testTask(), nil)
		if err != nil {
			t.Fatalf("Simulated create failed: %v", err)
		}
		if id == "" {
			t.Error("Expected a simulated event id")
		}
	})

	t.Run("configured tokens select the real client", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Credentials.Google.AccessToken = "token"

		client := NewClient(cfg, shared.NewLogger(io.Discard))
		if !client.Authorized() {
			t.Error("Expected an authorized client")
		}
	})
}
