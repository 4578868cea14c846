package store

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process Backend used by unit tests that don't
// need real Redis protocol behavior (redis_backend_test.go drives
// RedisBackend over miniredis when that matters). MemoryBackend
// exercises the same interface the
// Tiered Store depends on without any network I/O.
type MemoryBackend struct {
	mu    sync.RWMutex
	hash  map[string]map[string][]byte
	subMu sync.Mutex
	subs  map[string][]*memorySubscription
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		hash: make(map[string]map[string][]byte),
		subs: make(map[string][]*memorySubscription),
	}
}

func (b *MemoryBackend) HGet(ctx context.Context, hashKey, field string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.hash[hashKey]
	if !ok {
		return nil, false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (b *MemoryBackend) HGetAll(ctx context.Context, hashKey string) (map[string][]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string][]byte)
	for k, v := range b.hash[hashKey] {
		out[k] = v
	}
	return out, nil
}

func (b *MemoryBackend) HSet(ctx context.Context, hashKey, field string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hash[hashKey]
	if !ok {
		h = make(map[string][]byte)
		b.hash[hashKey] = h
	}
	h[field] = value
	return nil
}

func (b *MemoryBackend) HDel(ctx context.Context, hashKey, field string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hash[hashKey]
	if !ok {
		return false, nil
	}
	_, existed := h[field]
	delete(h, field)
	return existed, nil
}

func (b *MemoryBackend) Publish(ctx context.Context, topic, payload string) error {
	b.subMu.Lock()
	subs := append([]*memorySubscription(nil), b.subs[topic]...)
	b.subMu.Unlock()
	for _, s := range subs {
		s.deliver(payload)
	}
	return nil
}

func (b *MemoryBackend) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	s := &memorySubscription{
		out:   make(chan string, 64),
		topic: topic,
		owner: b,
	}
	b.subMu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.subMu.Unlock()
	return s, nil
}

type memorySubscription struct {
	out    chan string
	topic  string
	owner  *MemoryBackend
	closed bool
	mu     sync.Mutex
}

func (s *memorySubscription) deliver(payload string) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	select {
	case s.out <- payload:
	default:
	}
}

func (s *memorySubscription) Messages() <-chan string { return s.out }
func (s *memorySubscription) Err() error               { return nil }

func (s *memorySubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.owner.subMu.Lock()
	subs := s.owner.subs[s.topic]
	for i, sub := range subs {
		if sub == s {
			s.owner.subs[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.owner.subMu.Unlock()

	close(s.out)
	return nil
}
