package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/calsync/internal/calendar"
	"github.com/desertthunder/calsync/internal/shared"
)

// channelRenewalLead is how much remaining lifetime a registered channel
// needs before it is reused instead of replaced.
const channelRenewalLead = 24 * time.Hour

// EnsureChannel registers a push-notification channel for the user's
// calendar. An existing registration with at least channelRenewalLead
// left before expiry is reused; an expiring one is stopped and replaced.
// Channel metadata is persisted in the sync state.
func (e *Engine) EnsureChannel(ctx context.Context, webhookURL string) (*calendar.Channel, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("%w: webhook URL is required", shared.ErrInvalidInput)
	}

	state, err := e.ensureState()
	if err != nil {
		return nil, err
	}

	if state.ChannelID != nil && state.ChannelExpiration != nil &&
		state.ChannelExpiration.After(e.now().Add(channelRenewalLead)) {
		channel := &calendar.Channel{
			ID:         *state.ChannelID,
			Expiration: *state.ChannelExpiration,
		}
		if state.ResourceID != nil {
			channel.ResourceID = *state.ResourceID
		}
		return channel, nil
	}

	if state.ChannelID != nil && state.ResourceID != nil {
		if err := e.client.StopChannel(ctx, *state.ChannelID, *state.ResourceID); err != nil {
			e.logger.Warn("failed to stop expiring channel", "channel", *state.ChannelID, "err", err)
		}
	}

	channel, err := e.client.Watch(ctx, shared.GenerateID(), webhookURL)
	if err != nil {
		return nil, err
	}

	state.ChannelID = &channel.ID
	state.ResourceID = &channel.ResourceID
	expiration := channel.Expiration
	state.ChannelExpiration = &expiration
	if err := e.states.Upsert(state); err != nil {
		return nil, err
	}

	e.logger.Info("push channel registered", "user", e.userID,
		"channel", channel.ID, "expires", channel.Expiration)
	return channel, nil
}

// StopWebhookChannel tears down the registered channel and clears its
// metadata. A user with no channel is a no-op.
func (e *Engine) StopWebhookChannel(ctx context.Context) error {
	state, err := e.ensureState()
	if err != nil {
		return err
	}
	if state.ChannelID == nil {
		return nil
	}

	if state.ResourceID != nil {
		if err := e.client.StopChannel(ctx, *state.ChannelID, *state.ResourceID); err != nil {
			return err
		}
	}

	state.ChannelID = nil
	state.ResourceID = nil
	state.ChannelExpiration = nil
	return e.states.Upsert(state)
}

// HandleNotification reacts to a push notification from the provider.
// The initial "sync" handshake is acknowledged without work; anything
// else marks the state dirty and runs an incremental pass. Disabled
// users ignore notifications entirely, and so do notifications
// addressed to a channel other than the registered one (a replaced
// channel can keep delivering until the provider processes the stop).
func (e *Engine) HandleNotification(ctx context.Context, channelID, resourceState string) error {
	if resourceState == "sync" {
		e.logger.Debug("push channel handshake acknowledged", "user", e.userID)
		return nil
	}

	state, err := e.ensureState()
	if err != nil {
		return err
	}
	if !state.Enabled {
		return nil
	}
	if state.ChannelID == nil || channelID != *state.ChannelID {
		e.logger.Debug("ignoring notification for unregistered channel",
			"user", e.userID, "channel", channelID)
		return nil
	}

	state.WebhookPending = true
	if err := e.states.Upsert(state); err != nil {
		return err
	}

	return e.IncrementalSync(ctx, nil)
}

// ResumePending runs an incremental pass when a notification was
// recorded but its pass never completed, for example a crash between
// the webhook write and the state upsert at the end of the pass.
func (e *Engine) ResumePending(ctx context.Context) error {
	state, err := e.ensureState()
	if err != nil {
		return err
	}
	if !state.Enabled || !state.WebhookPending {
		return nil
	}

	e.logger.Info("resuming pending webhook sync", "user", e.userID)
	return e.IncrementalSync(ctx, nil)
}
