package engine

import (
	"context"
	"testing"
	"time"

	"github.com/desertthunder/calsync/internal/calendar"
	"github.com/desertthunder/calsync/internal/models"
)

func TestEnsureChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("registers and persists a channel", func(t *testing.T) {
		env := newTestEnv(t)

		expiration := time.Now().Add(7 * 24 * time.Hour).Truncate(time.Second)
		env.client.WatchFunc = func(ctx context.Context, channelID, webhookURL string) (*calendar.Channel, error) {
			if webhookURL != "https://example.com/hook" {
				t.Errorf("Unexpected webhook URL: %s", webhookURL)
			}
			return &calendar.Channel{ID: channelID, ResourceID: "res_1", Expiration: expiration}, nil
		}

		channel, err := env.engine.EnsureChannel(ctx, "https://example.com/hook")
		if err != nil {
			t.Fatalf("EnsureChannel failed: %v", err)
		}
		if channel.ID == "" || channel.ResourceID != "res_1" {
			t.Errorf("Unexpected channel: %+v", channel)
		}

		state, err := env.states.Get(testUser)
		if err != nil {
			t.Fatalf("Failed to get sync state: %v", err)
		}
		if state.ChannelID == nil || *state.ChannelID != channel.ID {
			t.Errorf("Expected persisted channel id %s, got %v", channel.ID, state.ChannelID)
		}
		if state.ResourceID == nil || *state.ResourceID != "res_1" {
			t.Errorf("Expected persisted resource id, got %v", state.ResourceID)
		}
		if state.ChannelExpiration == nil {
			t.Error("Expected persisted channel expiration")
		}
	})

	t.Run("reuses a channel that is far from expiry", func(t *testing.T) {
		env := newTestEnv(t)

		channelID := "ch_live"
		resourceID := "res_live"
		expiration := time.Now().Add(72 * time.Hour)
		state := &models.SyncState{
			UserID:            testUser,
			ChannelID:         &channelID,
			ResourceID:        &resourceID,
			ChannelExpiration: &expiration,
		}
		if err := env.states.Upsert(state); err != nil {
			t.Fatalf("Failed to upsert sync state: %v", err)
		}

		channel, err := env.engine.EnsureChannel(ctx, "https://example.com/hook")
		if err != nil {
			t.Fatalf("EnsureChannel failed: %v", err)
		}

		if env.client.WatchCalls != 0 {
			t.Errorf("Expected no watch calls, got %d", env.client.WatchCalls)
		}
		if channel.ID != "ch_live" {
			t.Errorf("Expected existing channel reused, got %s", channel.ID)
		}
	})

	t.Run("replaces a channel close to expiry", func(t *testing.T) {
		env := newTestEnv(t)

		channelID := "ch_old"
		resourceID := "res_old"
		expiration := time.Now().Add(time.Hour)
		state := &models.SyncState{
			UserID:            testUser,
			ChannelID:         &channelID,
			ResourceID:        &resourceID,
			ChannelExpiration: &expiration,
		}
		if err := env.states.Upsert(state); err != nil {
			t.Fatalf("Failed to upsert sync state: %v", err)
		}

		channel, err := env.engine.EnsureChannel(ctx, "https://example.com/hook")
		if err != nil {
			t.Fatalf("EnsureChannel failed: %v", err)
		}

		if env.client.StopCalls != 1 {
			t.Errorf("Expected old channel stopped, got %d stop calls", env.client.StopCalls)
		}
		if env.client.WatchCalls != 1 {
			t.Errorf("Expected new channel registered, got %d watch calls", env.client.WatchCalls)
		}
		if channel.ID == "ch_old" {
			t.Error("Expected a new channel id")
		}
	})

	t.Run("rejects an empty webhook URL", func(t *testing.T) {
		env := newTestEnv(t)

		if _, err := env.engine.EnsureChannel(ctx, ""); err == nil {
			t.Fatal("Expected error for empty webhook URL")
		}
	})
}

func TestStopWebhookChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("stops and clears channel metadata", func(t *testing.T) {
		env := newTestEnv(t)

		channelID := "ch_1"
		resourceID := "res_1"
		expiration := time.Now().Add(72 * time.Hour)
		state := &models.SyncState{
			UserID:            testUser,
			ChannelID:         &channelID,
			ResourceID:        &resourceID,
			ChannelExpiration: &expiration,
		}
		if err := env.states.Upsert(state); err != nil {
			t.Fatalf("Failed to upsert sync state: %v", err)
		}

		if err := env.engine.StopWebhookChannel(ctx); err != nil {
			t.Fatalf("StopWebhookChannel failed: %v", err)
		}

		if env.client.StopCalls != 1 {
			t.Errorf("Expected 1 stop call, got %d", env.client.StopCalls)
		}

		got, err := env.states.Get(testUser)
		if err != nil {
			t.Fatalf("Failed to get sync state: %v", err)
		}
		if got.ChannelID != nil || got.ResourceID != nil || got.ChannelExpiration != nil {
			t.Errorf("Expected channel metadata cleared, got %+v", got)
		}
	})

	t.Run("no-op without a channel", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.engine.StopWebhookChannel(ctx); err != nil {
			t.Fatalf("StopWebhookChannel failed: %v", err)
		}
		if env.client.StopCalls != 0 {
			t.Errorf("Expected no stop calls, got %d", env.client.StopCalls)
		}
	})
}

func TestHandleNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("handshake is acknowledged without work", func(t *testing.T) {
		env := newTestEnv(t)
		env.mustRegisterChannel(t, "ch_1", "tok_1")

		if err := env.engine.HandleNotification(ctx, "ch_1", "sync"); err != nil {
			t.Fatalf("HandleNotification failed: %v", err)
		}
		if env.client.ListCalls != 0 {
			t.Errorf("Expected no list calls for handshake, got %d", env.client.ListCalls)
		}
	})

	t.Run("change notification runs an incremental pass", func(t *testing.T) {
		env := newTestEnv(t)
		env.mustRegisterChannel(t, "ch_1", "tok_1")

		env.client.ListEventsFunc = func(ctx context.Context, opts calendar.ListOptions) (*calendar.ListResult, error) {
			return &calendar.ListResult{ContinuationToken: "tok_2"}, nil
		}

		if err := env.engine.HandleNotification(ctx, "ch_1", "exists"); err != nil {
			t.Fatalf("HandleNotification failed: %v", err)
		}

		if env.client.ListCalls != 1 {
			t.Errorf("Expected one list call, got %d", env.client.ListCalls)
		}

		state, err := env.states.Get(testUser)
		if err != nil {
			t.Fatalf("Failed to get sync state: %v", err)
		}
		if state.WebhookPending {
			t.Error("Expected webhook pending flag cleared after the pass")
		}
		if state.ContinuationToken == nil || *state.ContinuationToken != "tok_2" {
			t.Errorf("Expected token tok_2, got %v", state.ContinuationToken)
		}
	})

	t.Run("notification for a replaced channel is ignored", func(t *testing.T) {
		env := newTestEnv(t)
		env.mustRegisterChannel(t, "ch_new", "tok_1")

		if err := env.engine.HandleNotification(ctx, "ch_old", "exists"); err != nil {
			t.Fatalf("HandleNotification failed: %v", err)
		}

		if env.client.ListCalls != 0 {
			t.Errorf("Expected no list calls, got %d", env.client.ListCalls)
		}

		state, err := env.states.Get(testUser)
		if err != nil {
			t.Fatalf("Failed to get sync state: %v", err)
		}
		if state.WebhookPending {
			t.Error("Expected webhook pending flag untouched")
		}
	})

	t.Run("notification without a registered channel is ignored", func(t *testing.T) {
		env := newTestEnv(t)
		env.mustEnableSync(t, "tok_1")

		if err := env.engine.HandleNotification(ctx, "ch_1", "exists"); err != nil {
			t.Fatalf("HandleNotification failed: %v", err)
		}
		if env.client.ListCalls != 0 {
			t.Errorf("Expected no list calls, got %d", env.client.ListCalls)
		}
	})

	t.Run("disabled user ignores notifications", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.engine.HandleNotification(ctx, "ch_1", "exists"); err != nil {
			t.Fatalf("HandleNotification failed: %v", err)
		}
		if env.client.ListCalls != 0 {
			t.Errorf("Expected no list calls, got %d", env.client.ListCalls)
		}
	})
}

func TestResumePending(t *testing.T) {
	ctx := context.Background()

	t.Run("runs the pass recorded before a crash", func(t *testing.T) {
		env := newTestEnv(t)

		token := "tok_1"
		state := &models.SyncState{
			UserID:            testUser,
			Enabled:           true,
			ContinuationToken: &token,
			WebhookPending:    true,
		}
		if err := env.states.Upsert(state); err != nil {
			t.Fatalf("Failed to upsert sync state: %v", err)
		}

		env.client.ListEventsFunc = func(ctx context.Context, opts calendar.ListOptions) (*calendar.ListResult, error) {
			return &calendar.ListResult{ContinuationToken: "tok_2"}, nil
		}

		if err := env.engine.ResumePending(ctx); err != nil {
			t.Fatalf("ResumePending failed: %v", err)
		}

		if env.client.ListCalls != 1 {
			t.Errorf("Expected one list call, got %d", env.client.ListCalls)
		}

		got, err := env.states.Get(testUser)
		if err != nil {
			t.Fatalf("Failed to get sync state: %v", err)
		}
		if got.WebhookPending {
			t.Error("Expected webhook pending flag cleared")
		}
		if got.ContinuationToken == nil || *got.ContinuationToken != "tok_2" {
			t.Errorf("Expected token tok_2, got %v", got.ContinuationToken)
		}
	})

	t.Run("no-op without a pending notification", func(t *testing.T) {
		env := newTestEnv(t)
		env.mustEnableSync(t, "tok_1")

		if err := env.engine.ResumePending(ctx); err != nil {
			t.Fatalf("ResumePending failed: %v", err)
		}
		if env.client.ListCalls != 0 {
			t.Errorf("Expected no list calls, got %d", env.client.ListCalls)
		}
	})

	t.Run("no-op when sync is disabled", func(t *testing.T) {
		env := newTestEnv(t)

		state := &models.SyncState{UserID: testUser, WebhookPending: true}
		if err := env.states.Upsert(state); err != nil {
			t.Fatalf("Failed to upsert sync state: %v", err)
		}

		if err := env.engine.ResumePending(ctx); err != nil {
			t.Fatalf("ResumePending failed: %v", err)
		}
		if env.client.ListCalls != 0 {
			t.Errorf("Expected no list calls, got %d", env.client.ListCalls)
		}
	})
}
