package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/masquerade-labs/masquerade/internal/apperr"
	"github.com/masquerade-labs/masquerade/internal/ttlmap"
)

// Path is anything that renders to a string scope path (spec §4.2): a
// parsed FlagPath, or one of the well-known collection names ("paths",
// "users").
type Path interface {
	Flatten() string
}

// CollectionPath is a Path backed by a single well-known string, used for
// the "paths" and "users" collections that aren't (owner, app, env)
// scopes.
type CollectionPath string

func (c CollectionPath) Flatten() string { return string(c) }

// Codec pairs the marshal/unmarshal functions a value type needs to cross
// the wire boundary (spec §4.2 "Serialization"). It is supplied by the
// caller rather than implemented as methods on V so that domain types
// stay free of store-specific interfaces.
type Codec[V any] struct {
	// Encode serializes a value to the bulk-string wire form (its JSON
	// encoding, per spec). If Encode cannot represent a failure through
	// its own error return (mirroring the original wire-level contract
	// where encoding failure is smuggled as the literal sentinel
	// "fail"), it may return that sentinel instead; Upsert detects it
	// either way.
	Encode func(V) ([]byte, error)
	Decode func([]byte) (V, error)
}

// failSentinel is the legacy wire-level signal for "encoding failed",
// kept for backward compatibility with callers that cannot return an
// error from their own serialize step (spec §4.2, §9 Design Notes).
var failSentinel = []byte("fail")

func isSerializationFailure(data []byte, err error) bool {
	if err != nil {
		return true
	}
	return len(data) == len(failSentinel) && string(data) == string(failSentinel)
}

// Config holds the recognized Tiered Store options (spec §4.2).
type Config struct {
	// Prefix is prepended to every backing-store key. Default "masquerade".
	Prefix string
	// Topic is the pub/sub channel every mutation publishes on. May
	// equal Prefix.
	Topic string
	// CacheDuration is the freshness window W for both caches; 0
	// disables age-based expiry.
	CacheDuration time.Duration
}

// Store is the cache-coherent (P, key) -> V store of spec §4.2.
type Store[P Path, V any] struct {
	backend Backend
	codec   Codec[V]
	cfg     Config
	log     *zap.Logger

	itemCache *ttlmap.Map
	collCache *ttlmap.Map

	group singleflight.Group
}

// New constructs a Tiered Store over backend using cfg and codec. log may
// be nil, in which case a no-op logger is used.
func New[P Path, V any](backend Backend, cfg Config, codec Codec[V], log *zap.Logger) *Store[P, V] {
	if cfg.Prefix == "" {
		cfg.Prefix = "masquerade"
	}
	if cfg.Topic == "" {
		cfg.Topic = cfg.Prefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store[P, V]{
		backend:   backend,
		codec:     codec,
		cfg:       cfg,
		log:       log,
		itemCache: ttlmap.New(cfg.CacheDuration),
		collCache: ttlmap.New(cfg.CacheDuration),
	}
}

func (s *Store[P, V]) hashKey(p P) string {
	return fmt.Sprintf("%s:%s", s.cfg.Prefix, p.Flatten())
}

// cacheKeys derives the item- and collection-cache keys for (p, key),
// both namespaced by the configured prefix. Spec §9 flags the original
// design's collection-cache key as missing the prefix, which lets two
// Tiered Store instances with different prefixes but the same backing
// server collide; deriving both keys through this single helper closes
// that gap (see SPEC_FULL.md REDESIGN FLAGS disposition).
func (s *Store[P, V]) cacheKeys(p P, key string) (collectionKey, itemKey string) {
	flat := p.Flatten()
	collectionKey = fmt.Sprintf("%s:%s:all_flags$", s.cfg.Prefix, flat)
	itemKey = fmt.Sprintf("%s:%s/%s", s.cfg.Prefix, flat, key)
	return
}

// Get returns the value stored under (p, key). The second return value
// reports whether the key exists at all (absence is not an error).
func (s *Store[P, V]) Get(ctx context.Context, p P, key string) (V, bool, error) {
	var zero V
	if key == "" {
		return zero, false, apperr.EmptyKey()
	}

	_, itemKey := s.cacheKeys(p, key)

	if cached, ok, err := s.itemCache.Get(itemKey); err != nil {
		return zero, false, err
	} else if ok {
		return cached.(V), true, nil
	}

	res, err, _ := s.group.Do(itemKey, func() (any, error) {
		data, found, err := s.backend.HGet(ctx, s.hashKey(p), key)
		if err != nil {
			return nil, apperr.Wrap(apperr.BackingStoreFailure, "HGET failed", err)
		}
		if !found {
			return nil, nil
		}
		v, err := s.codec.Decode(data)
		if err != nil {
			return nil, apperr.Wrap(apperr.BackingStoreFailure, "decode failed", err)
		}
		if _, _, err := s.itemCache.Insert(itemKey, v); err != nil {
			s.log.Warn("item cache fill failed", zap.Error(err))
		}
		return v, nil
	})
	if err != nil {
		return zero, false, err
	}
	if res == nil {
		return zero, false, nil
	}
	return res.(V), true, nil
}

// GetAll returns every (key, value) pair stored under scope p.
func (s *Store[P, V]) GetAll(ctx context.Context, p P) (map[string]V, error) {
	collectionKey, _ := s.cacheKeys(p, "")

	if cached, ok, err := s.collCache.Get(collectionKey); err != nil {
		return nil, err
	} else if ok {
		m := cached.(map[string]V)
		out := make(map[string]V, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}

	res, err, _ := s.group.Do(collectionKey, func() (any, error) {
		raw, err := s.backend.HGetAll(ctx, s.hashKey(p))
		if err != nil {
			return nil, apperr.Wrap(apperr.BackingStoreFailure, "HGETALL failed", err)
		}
		out := make(map[string]V, len(raw))
		for field, data := range raw {
			v, err := s.codec.Decode(data)
			if err != nil {
				return nil, apperr.Wrap(apperr.BackingStoreFailure, "decode failed", err)
			}
			out[field] = v
		}
		if _, _, err := s.collCache.Insert(collectionKey, out); err != nil {
			s.log.Warn("collection cache fill failed", zap.Error(err))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	m := res.(map[string]V)
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

// Upsert writes value under (p, key), returning the prior value if one
// existed. See spec §4.2 for the exact write-path ordering.
func (s *Store[P, V]) Upsert(ctx context.Context, p P, key string, value V) (prior V, hadPrior bool, err error) {
	var zero V
	if key == "" {
		return zero, false, apperr.EmptyKey()
	}

	hashKey := s.hashKey(p)

	priorData, found, err := s.backend.HGet(ctx, hashKey, key)
	if err != nil {
		return zero, false, apperr.Wrap(apperr.BackingStoreFailure, "HGET failed", err)
	}
	if found {
		prior, err = s.codec.Decode(priorData)
		if err != nil {
			return zero, false, apperr.Wrap(apperr.BackingStoreFailure, "decode failed", err)
		}
		hadPrior = true
	}

	data, encErr := s.codec.Encode(value)
	if isSerializationFailure(data, encErr) {
		return zero, false, apperr.Wrap(apperr.SerializationFailure, "failed to serialize item", encErr)
	}

	if err := s.backend.HSet(ctx, hashKey, key, data); err != nil {
		return zero, false, apperr.Wrap(apperr.BackingStoreFailure, "HSET failed", err)
	}

	s.invalidateAndNotify(ctx, p, key)

	return prior, hadPrior, nil
}

// Delete removes (p, key), returning the prior value if one existed.
func (s *Store[P, V]) Delete(ctx context.Context, p P, key string) (prior V, hadPrior bool, err error) {
	var zero V
	if key == "" {
		return zero, false, apperr.EmptyKey()
	}

	hashKey := s.hashKey(p)

	priorData, found, err := s.backend.HGet(ctx, hashKey, key)
	if err != nil {
		return zero, false, apperr.Wrap(apperr.BackingStoreFailure, "HGET failed", err)
	}
	if found {
		prior, err = s.codec.Decode(priorData)
		if err != nil {
			return zero, false, apperr.Wrap(apperr.BackingStoreFailure, "decode failed", err)
		}
		hadPrior = true
	}

	if _, err := s.backend.HDel(ctx, hashKey, key); err != nil {
		return zero, false, apperr.Wrap(apperr.BackingStoreFailure, "HDEL failed", err)
	}

	s.invalidateAndNotify(ctx, p, key)

	return prior, hadPrior, nil
}

// invalidateAndNotify clears the local cache entries for (p, key) and
// publishes both invalidation notices. Per spec §4.2/§7, a publish
// failure after a successful mutation is logged and swallowed: local
// state is already consistent, and remote instances converge on their
// next cache expiry.
func (s *Store[P, V]) invalidateAndNotify(ctx context.Context, p P, key string) {
	collectionKey, itemKey := s.cacheKeys(p, key)

	if err := s.collCache.Clear(); err != nil {
		s.log.Warn("collection cache clear failed", zap.Error(err))
	}
	if _, _, err := s.itemCache.Remove(itemKey); err != nil {
		s.log.Warn("item cache remove failed", zap.Error(err))
	}

	if err := s.backend.Publish(ctx, s.cfg.Topic, collectionKey); err != nil {
		s.log.Warn("publish collection invalidation failed", zap.Error(err))
	}
	if err := s.backend.Publish(ctx, s.cfg.Topic, itemKey); err != nil {
		s.log.Warn("publish item invalidation failed", zap.Error(err))
	}
}

// Matches reports whether an invalidation message (as delivered by
// Subscribe/Updater) refers to scope p — either its collection key or
// one of its item keys. Stream handlers use this to decide whether a
// notification is relevant to the scope they're serving (spec §4.4
// "Flag stream").
func (s *Store[P, V]) Matches(p P, message string) bool {
	collectionKey, _ := s.cacheKeys(p, "")
	itemPrefix := fmt.Sprintf("%s:%s/", s.cfg.Prefix, p.Flatten())
	return message == collectionKey || strings.HasPrefix(message, itemPrefix)
}

// Notify publishes both the collection and item invalidation keys for
// (p, key) without performing a mutation — used when an external change
// to the backing store must be broadcast to other instances.
func (s *Store[P, V]) Notify(ctx context.Context, p P, key string) error {
	collectionKey, itemKey := s.cacheKeys(p, key)
	if err := s.backend.Publish(ctx, s.cfg.Topic, collectionKey); err != nil {
		return apperr.Wrap(apperr.BackingStoreFailure, "publish failed", err)
	}
	if err := s.backend.Publish(ctx, s.cfg.Topic, itemKey); err != nil {
		return apperr.Wrap(apperr.BackingStoreFailure, "publish failed", err)
	}
	return nil
}

// Subscribe opens a dedicated connection subscribed to this store's
// topic. Each call opens a new connection; the returned Subscription is
// not restartable (spec §4.2).
func (s *Store[P, V]) Subscribe(ctx context.Context) (Subscription, error) {
	sub, err := s.backend.Subscribe(ctx, s.cfg.Topic)
	if err != nil {
		return nil, apperr.Wrap(apperr.BackingStoreFailure, "subscribe failed", err)
	}
	return sub, nil
}

// Updater runs the background cache-invalidation consumer described in
// spec §4.2: subscribe, and for every incoming message remove that key
// from both caches. It blocks until the subscription ends (permanently,
// or because ctx is cancelled) and then returns. The process-wide
// bootstrap is expected to invoke this exactly once per Tiered Store, in
// its own goroutine.
func (s *Store[P, V]) Updater(ctx context.Context) error {
	sub, err := s.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-sub.Messages():
			if !ok {
				if err := sub.Err(); err != nil {
					s.log.Error("updater subscription ended", zap.Error(err))
					return err
				}
				return nil
			}
			if _, _, err := s.itemCache.Remove(key); err != nil {
				s.log.Warn("updater item cache remove failed", zap.Error(err))
			}
			if _, _, err := s.collCache.Remove(key); err != nil {
				s.log.Warn("updater collection cache remove failed", zap.Error(err))
			}
		}
	}
}
