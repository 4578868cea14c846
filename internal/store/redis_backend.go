package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend against a Redis-compatible hash server
// using github.com/redis/go-redis/v9, following the same
// Subscribe(ctx, topic).Channel() / Publish(ctx, topic, payload) pattern
// the teacher's dcache reference client uses for its own invalidation
// channel.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend wraps an existing redis client. Callers are expected to
// construct the client (redis.NewClient, redis.NewClusterClient, ...)
// from the `database.redis` config value.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) HGet(ctx context.Context, hashKey, field string) ([]byte, bool, error) {
	val, err := b.client.HGet(ctx, hashKey, field).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("HGET %s %s: %w", hashKey, field, err)
	}
	return val, true, nil
}

func (b *RedisBackend) HGetAll(ctx context.Context, hashKey string) (map[string][]byte, error) {
	res, err := b.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("HGETALL %s: %w", hashKey, err)
	}
	out := make(map[string][]byte, len(res))
	for field, val := range res {
		out[field] = []byte(val)
	}
	return out, nil
}

func (b *RedisBackend) HSet(ctx context.Context, hashKey, field string, value []byte) error {
	if err := b.client.HSet(ctx, hashKey, field, value).Err(); err != nil {
		return fmt.Errorf("HSET %s %s: %w", hashKey, field, err)
	}
	return nil
}

func (b *RedisBackend) HDel(ctx context.Context, hashKey, field string) (bool, error) {
	n, err := b.client.HDel(ctx, hashKey, field).Result()
	if err != nil {
		return false, fmt.Errorf("HDEL %s %s: %w", hashKey, field, err)
	}
	return n > 0, nil
}

func (b *RedisBackend) Publish(ctx context.Context, topic, payload string) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("PUBLISH %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBackend) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("SUBSCRIBE %s: %w", topic, err)
	}
	return newRedisSubscription(ps), nil
}

// redisSubscription adapts *redis.PubSub's Channel() to the Subscription
// contract: a dedicated connection, not restartable once it ends.
type redisSubscription struct {
	ps   *redis.PubSub
	out  chan string
	done chan struct{}
	err  error
}

func newRedisSubscription(ps *redis.PubSub) *redisSubscription {
	s := &redisSubscription{
		ps:   ps,
		out:  make(chan string),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	ch := s.ps.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.out <- msg.Payload:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan string { return s.out }
func (s *redisSubscription) Err() error               { return s.err }

func (s *redisSubscription) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.ps.Close()
}
