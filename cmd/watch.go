package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/calsync/internal/calendar"
	"github.com/desertthunder/calsync/internal/engine"
	"github.com/desertthunder/calsync/internal/server"
	"github.com/desertthunder/calsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// WatchStart registers (or renews) the push-notification channel.
func (r *Runner) WatchStart(ctx context.Context, cmd *cli.Command) error {
	webhookURL := cmd.String("url")
	if webhookURL == "" {
		webhookURL = r.config.Sync.WebhookURL
	}
	if webhookURL == "" {
		return fmt.Errorf("%w: webhook URL must be set via --url or sync.webhook_url", shared.ErrMissingArgument)
	}

	var channel *calendar.Channel
	err := r.runExclusive(func(e *engine.Engine) error {
		var err error
		channel, err = e.EnsureChannel(ctx, webhookURL)
		return err
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Notification channel active\n")
	r.writePlain("  Channel: %s\n", channel.ID)
	r.writePlain("  Resource: %s\n", channel.ResourceID)
	if !channel.Expiration.IsZero() {
		r.writePlain("  Expires: %s\n", channel.Expiration.Format(time.RFC3339))
	}
	return nil
}

// WatchStop tears down the push-notification channel.
func (r *Runner) WatchStop(ctx context.Context, cmd *cli.Command) error {
	err := r.runExclusive(func(e *engine.Engine) error {
		return e.StopWebhookChannel(ctx)
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Notification channel stopped\n")
	return nil
}

// Serve runs the HTTP receiver for calendar push notifications until
// interrupted. Each notification is dispatched under the user's
// registry lock, so notifications delivered concurrently run their
// sync passes one at a time.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A notification recorded before a crash may never have finished
	// its pass. Catch up before accepting new ones.
	if err := r.runExclusive(func(e *engine.Engine) error {
		return e.ResumePending(ctx)
	}); err != nil {
		r.logger.Warn("failed to resume pending sync", "error", err)
	}

	handler := server.NewNotificationHandler(server.NotifierFunc(func(channelID, resourceID, resourceState string) {
		err := r.runExclusive(func(e *engine.Engine) error {
			return e.HandleNotification(ctx, channelID, resourceState)
		})
		if err != nil {
			r.logger.Error("notification handling failed", "channel", channelID, "error", err)
		}
	}), r.logger)

	router := server.NewBasicRouter()
	router.Handler(handler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("notification receiver listening at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	r.writePlain("→ Listening for calendar notifications at %s\n", serverAddr)
	r.writePlain("→ Press Ctrl+C to stop\n")

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	return nil
}
