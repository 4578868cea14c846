// Package ttlmap implements the TTL Map described in spec §4.1: a
// concurrent string-keyed map where every entry carries its insertion
// timestamp and is considered live only within a configured freshness
// window W (W == 0 disables age-based expiry entirely).
//
// Grounded on the locking discipline of the teacher's L1Cache
// (cache-manager/cache.go): a single sync.RWMutex guards a plain map, with
// readers taking RLock and writers taking Lock. Unlike L1Cache this map
// has no capacity bound and performs no LRU eviction or background sweep
// — spec §4.1 requires only explicit eviction (remove/clear) and a cheap
// read-time freshness check, not a bounded cache.
package ttlmap

import (
	"sync"
	"time"

	"github.com/masquerade-labs/masquerade/internal/apperr"
)

type entry struct {
	value    any
	insertAt time.Time
}

// Map is a concurrent map from string key to (value, insertion time),
// subject to a single freshness window. The zero value is not usable;
// construct with New.
type Map struct {
	mu       sync.RWMutex
	window   time.Duration
	entries  map[string]entry
	poisoned bool
}

// New creates a TTL Map with freshness window w. w == 0 means entries
// never expire by age; they are only reclaimed by Remove/Clear or by
// being overwritten.
func New(w time.Duration) *Map {
	return &Map{
		window:  w,
		entries: make(map[string]entry),
	}
}

// Get returns the value for key if an entry exists and is live (age <= W,
// or W == 0). It does not evict stale entries; a stale entry is simply
// reported as absent.
func (m *Map) Get(key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.poisoned {
		return nil, false, apperr.Poisoned()
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.window > 0 && time.Since(e.insertAt) > m.window {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Insert stores value under key with the current timestamp, returning
// the prior value if one existed (regardless of its freshness).
func (m *Map) Insert(key string, value any) (prior any, hadPrior bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return nil, false, apperr.Poisoned()
	}
	old, hadPrior := m.entries[key]
	m.entries[key] = entry{value: value, insertAt: time.Now()}
	if hadPrior {
		return old.value, true, nil
	}
	return nil, false, nil
}

// Remove deletes key, returning the prior value if one existed.
func (m *Map) Remove(key string) (prior any, hadPrior bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return nil, false, apperr.Poisoned()
	}
	old, hadPrior := m.entries[key]
	delete(m.entries, key)
	if hadPrior {
		return old.value, true, nil
	}
	return nil, false, nil
}

// Clear removes all entries.
func (m *Map) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return apperr.Poisoned()
	}
	m.entries = make(map[string]entry)
	return nil
}

// GetAll returns a snapshot mapping of every live entry. Entries
// returned were live at some instant during the call, per spec §4.1.
func (m *Map) GetAll() (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.poisoned {
		return nil, apperr.Poisoned()
	}
	now := time.Now()
	out := make(map[string]any, len(m.entries))
	for k, e := range m.entries {
		if m.window > 0 && now.Sub(e.insertAt) > m.window {
			continue
		}
		out[k] = e.value
	}
	return out, nil
}

// poison marks the map unusable for all future operations. It exists so
// the "lock abandoned" failure mode of spec §4.1 (translated from a Rust
// Mutex/RwLock poison error) has a concrete trigger in Go, where a
// goroutine holding the lock that panics would otherwise simply crash the
// process. Call sites that recover from a panic inside a locked section
// should call poison before re-panicking or returning.
func (m *Map) poison() {
	m.mu.Lock()
	m.poisoned = true
	m.mu.Unlock()
}
