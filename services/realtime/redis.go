package realtimesvc

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/realtime"
)

// RedisChannel is the pub/sub channel shared by every API instance.
const RedisChannel = "edufam:realtime"

// RedisBroker publishes events to Redis and relays the events received from Redis into the local hub,
// so that the sessions of every instance get them.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	logger core.Logger
}

var _ realtime.Broker = (*RedisBroker)(nil)

func NewRedisBroker(client *redis.Client, hub *Hub, logger core.Logger) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, logger: logger}
}

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func (b *RedisBroker) Publish(ctx context.Context, evt realtime.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	if err := b.client.Publish(ctx, RedisChannel, data).Err(); err != nil {
		return errors.Wrap(err, "publishing to redis")
	}
	return nil
}

func (b *RedisBroker) Subscribe(topic string, fn func(realtime.Event)) func() {
	return b.hub.Subscribe(topic, fn)
}

// Run relays the Redis messages to the hub until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, RedisChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "subscribing to "+RedisChannel)
	}
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.relay(ctx, msg.Payload)
		}
	}
}

func (b *RedisBroker) relay(ctx context.Context, payload string) {
	var evt realtime.Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn("decoding realtime event", errors.Wrap(err, RedisChannel))
		return
	}
	_ = b.hub.Publish(ctx, evt)
}
