package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/matchup/apiserver/types"
	"go.uber.org/zap"
)

// EventPublisher sends a payload to a named channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// EventChannels names the channels account events are published to.
type EventChannels struct {
	Verification string
	Assignment   string
}

// Events publishes account events. A nil *Events or a nil publisher drops
// every event.
type Events struct {
	publisher EventPublisher
	channels  EventChannels
	log       *zap.Logger
	now       func() time.Time
}

func NewEvents(publisher EventPublisher, channels EventChannels, log *zap.Logger) *Events {
	if log == nil {
		log = zap.NewNop()
	}
	return &Events{
		publisher: publisher,
		channels:  channels,
		log:       log,
		now:       time.Now,
	}
}

// AccountCreated asks downstream consumers to send the activation email.
func (e *Events) AccountCreated(ctx context.Context, user types.User) {
	if e == nil {
		return
	}
	e.publish(ctx, e.channels.Verification, types.AccountEvent{
		Type:   types.EventAccountCreated,
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Active: user.IsActive,
	})
}

// AccessAssigned records a successful group/permission assignment.
func (e *Events) AccessAssigned(ctx context.Context, user types.User, permissionIDs, groupIDs []int) {
	if e == nil {
		return
	}
	e.publish(ctx, e.channels.Assignment, types.AccountEvent{
		Type:          types.EventAccessAssigned,
		UserID:        user.ID,
		Email:         user.Email,
		Role:          user.Role,
		Active:        user.IsActive,
		PermissionIDs: permissionIDs,
		GroupIDs:      groupIDs,
	})
}

// publish never fails the caller: the triggering write has already been
// committed, so errors are logged.
func (e *Events) publish(ctx context.Context, channel string, event types.AccountEvent) {
	if e.publisher == nil || channel == "" {
		return
	}
	event.OccurredAt = e.now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		e.log.Error("marshal account event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	id, err := e.publisher.Publish(ctx, channel, data, map[string]string{
		"type":         event.Type,
		"content_type": "application/json",
		"user_id":      strconv.Itoa(event.UserID),
	})
	if err != nil {
		e.log.Error("publish account event",
			zap.String("channel", channel),
			zap.String("type", event.Type),
			zap.Int("user_id", event.UserID),
			zap.Error(err))
		return
	}
	e.log.Debug("account event published",
		zap.String("channel", channel),
		zap.String("type", event.Type),
		zap.String("message_id", id))
}
