package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/calsync/internal/shared"
)

type recordedNotification struct {
	channelID     string
	resourceID    string
	resourceState string
}

func TestNotificationHandler(t *testing.T) {
	newHandler := func() (*NotificationHandler, *[]recordedNotification) {
		var calls []recordedNotification
		notifier := NotifierFunc(func(channelID, resourceID, resourceState string) {
			calls = append(calls, recordedNotification{channelID, resourceID, resourceState})
		})
		return NewNotificationHandler(notifier, shared.NewLogger(io.Discard)), &calls
	}

	t.Run("acknowledges and dispatches a change notification", func(t *testing.T) {
		handler, calls := newHandler()

		req := httptest.NewRequest(http.MethodPost, "/notifications", nil)
		req.Header.Set("X-Goog-Channel-ID", "ch_1")
		req.Header.Set("X-Goog-Resource-ID", "res_1")
		req.Header.Set("X-Goog-Resource-State", "exists")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
		if len(*calls) != 1 {
			t.Fatalf("Expected 1 dispatch, got %d", len(*calls))
		}
		got := (*calls)[0]
		if got.channelID != "ch_1" || got.resourceID != "res_1" || got.resourceState != "exists" {
			t.Errorf("Unexpected dispatch: %+v", got)
		}
	})

	t.Run("handshake is dispatched with its state", func(t *testing.T) {
		handler, calls := newHandler()

		req := httptest.NewRequest(http.MethodPost, "/notifications", nil)
		req.Header.Set("X-Goog-Channel-ID", "ch_1")
		req.Header.Set("X-Goog-Resource-State", "sync")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
		if len(*calls) != 1 || (*calls)[0].resourceState != "sync" {
			t.Errorf("Expected handshake dispatched, got %+v", *calls)
		}
	})

	t.Run("missing headers are acknowledged but dropped", func(t *testing.T) {
		handler, calls := newHandler()

		req := httptest.NewRequest(http.MethodPost, "/notifications", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 even for malformed notifications, got %d", rec.Code)
		}
		if len(*calls) != 0 {
			t.Errorf("Expected no dispatch, got %d", len(*calls))
		}
	})

	t.Run("registers under the notifications route", func(t *testing.T) {
		handler, _ := newHandler()

		routes := handler.Routes()
		if len(routes) != 1 || routes[0] != "/notifications" {
			t.Errorf("Unexpected routes: %v", routes)
		}
	})
}
