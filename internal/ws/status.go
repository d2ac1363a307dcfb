package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusChannel = "user_status"

// StatusUpdate is the wire form of a presence transition on the Redis
// pub/sub channel.
type StatusUpdate struct {
	UserID     string     `json:"userId"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// RedisStatusPublisher mirrors presence transitions into Redis:
// presence:{userID} holds the current status for plain reads, and the
// user_status channel carries transition events for other processes. The
// in-memory tracker stays authoritative; this is read-only sharing.
type RedisStatusPublisher struct {
	client *redis.Client
}

func NewRedisStatusPublisher(client *redis.Client) *RedisStatusPublisher {
	return &RedisStatusPublisher{client: client}
}

func (p *RedisStatusPublisher) PublishStatus(ctx context.Context, t Transition) error {
	update := StatusUpdate{UserID: t.UserID, Status: "offline"}
	if t.Online {
		update.Status = "online"
	} else {
		lastSeen := t.LastSeenAt
		update.LastSeenAt = &lastSeen
	}

	if err := p.client.Set(ctx, "presence:"+t.UserID, update.Status, 0).Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, statusChannel, payload).Err()
}
