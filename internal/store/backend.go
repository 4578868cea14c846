// Package store implements the Tiered Store described in spec §4.2: a
// cache-coherent (P, key) -> V store layered over a shared external hash
// server, with an item cache, a collection cache, and pub/sub-driven
// invalidation across instances.
//
// The backing server is reached only through the narrow Backend
// interface below, mirroring the teacher's RemoteCache abstraction
// (cache-manager/service.go) so the Redis-backed production
// implementation and the in-memory fake used by tests are
// interchangeable.
package store

import "context"

// Backend is the set of backing hash-server operations the Tiered Store
// consumes (spec §6): HGET, HGETALL, HSET, HDEL, PUBLISH, SUBSCRIBE.
type Backend interface {
	HGet(ctx context.Context, hashKey, field string) ([]byte, bool, error)
	HGetAll(ctx context.Context, hashKey string) (map[string][]byte, error)
	HSet(ctx context.Context, hashKey, field string, value []byte) error
	HDel(ctx context.Context, hashKey, field string) (bool, error)
	Publish(ctx context.Context, topic, payload string) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription is a single dedicated connection to the pub/sub endpoint,
// delivering message payloads for one topic. It is not restartable: once
// closed or broken, callers must Subscribe again (spec §4.2 "subscribe").
type Subscription interface {
	// Messages yields one payload per published notification. The
	// channel is closed when the subscription ends, permanently or
	// otherwise; callers should check Err after it closes.
	Messages() <-chan string
	Err() error
	Close() error
}
