package chathub

import (
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisEventPrefix = "events:"

// RedisNotifier publishes events on events:<user> so every server instance
// can deliver them to its own clients.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return n.client.Publish(ctx, redisEventPrefix+ev.UserID, data).Err()
}

// ListenRedis pattern-subscribes to every user channel and hands decoded
// events to local. It returns when ctx is done.
func ListenRedis(ctx context.Context, client *redis.Client, local Notifier) error {
	pubsub := client.PSubscribe(ctx, redisEventPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	l := log.Ctx(ctx)
	l.Info().Msg("listening for redis events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				l.Warn().Err(err).Str("channel", msg.Channel).Msg("failed to decode redis event")
				continue
			}
			if ev.UserID == "" {
				ev.UserID = strings.TrimPrefix(msg.Channel, redisEventPrefix)
			}
			if err := local.Notify(ctx, ev); err != nil && ctx.Err() == nil {
				l.Warn().Err(err).Str(log.FieldUserID, ev.UserID).Msg("failed to dispatch redis event")
			}
		}
	}
}
