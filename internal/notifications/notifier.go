// Package notifications publishes account events into Redis channels.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published on a user's channel.
const (
	EventInfraction = "moderation.infraction"
	EventSuspended  = "moderation.suspended"
	EventPromoted   = "account.promoted"
)

// UserEvent is the payload delivered to a single user.
type UserEvent struct {
	Type            string     `json:"type"`
	UserID          string     `json:"user_id"`
	ReportID        uint       `json:"report_id,omitempty"`
	InfractionCount int        `json:"infraction_count,omitempty"`
	SuspendedUntil  *time.Time `json:"suspended_until,omitempty"`
	Level           int        `json:"level,omitempty"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID string, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishEvent encodes ev and publishes it on the user's channel.
func (n *Notifier) PublishEvent(ctx context.Context, ev UserEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.PublishUser(ctx, ev.UserID, string(payload))
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID string) string {
	return "notifications:user:" + userID
}
