package server

import (
	"io"
	"net/http"

	"github.com/charmbracelet/log"
)

// Notifier reacts to a push notification for a channel. Implemented by the
// engine registry; errors are logged, never surfaced to the provider.
type Notifier interface {
	Notify(channelID, resourceID, resourceState string)
}

// NotifierFunc adapts a function to the [Notifier] interface.
type NotifierFunc func(channelID, resourceID, resourceState string)

func (f NotifierFunc) Notify(channelID, resourceID, resourceState string) {
	f(channelID, resourceID, resourceState)
}

// NotificationHandler receives calendar push notifications.
//
// The provider retries delivery on any non-2xx status, so the handler
// acknowledges everything with 200, including malformed requests, and
// hands the channel headers to the notifier for the actual sync work.
type NotificationHandler struct {
	notifier Notifier
	logger   *log.Logger
}

// NewNotificationHandler creates a handler that forwards notifications to
// the given notifier.
func NewNotificationHandler(notifier Notifier, logger *log.Logger) *NotificationHandler {
	return &NotificationHandler{notifier: notifier, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *NotificationHandler) Routes() []string {
	return []string{"/notifications"}
}

// ServeHTTP acknowledges the notification and dispatches it.
//
// The notification body is empty by contract; everything of interest is in
// the X-Goog-* headers.
func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	io.Copy(io.Discard, r.Body)

	channelID := r.Header.Get("X-Goog-Channel-ID")
	resourceID := r.Header.Get("X-Goog-Resource-ID")
	resourceState := r.Header.Get("X-Goog-Resource-State")

	w.WriteHeader(http.StatusOK)

	if channelID == "" || resourceState == "" {
		h.logger.Warn("notification missing channel headers, dropped")
		return
	}

	h.logger.Debug("notification received",
		"channel", channelID, "resource", resourceID, "state", resourceState)
	h.notifier.Notify(channelID, resourceID, resourceState)
}
