// Package identitymap provides a concurrent map keyed by persisted-entity
// identities. Lookups go through the keys' own Hash and Equal methods, so a
// key type decides what "the same row" means.
package identitymap

import "sync"

const (
	// DefaultShards is the shard count used when none is configured.
	DefaultShards = 16
	// MaxShards bounds the configured shard count.
	MaxShards = 256
)

// Key is implemented by identity types stored in a Map. Equal must be
// consistent with Hash: equal keys must return equal hashes.
type Key interface {
	Equal(other any) bool
	Hash() uint64
}

type entry[K Key, V any] struct {
	key   K
	value V
}

type shard[K Key, V any] struct {
	mu      sync.RWMutex
	buckets map[uint64][]entry[K, V]
	size    int
}

// Map is a sharded hash table of identities. The zero value is an empty map
// with DefaultShards shards.
type Map[K Key, V any] struct {
	once   sync.Once
	shards []*shard[K, V]
}

// New creates a Map with the given number of shards. Values below 1 select
// DefaultShards and values above MaxShards are clamped.
func New[K Key, V any](shards int) *Map[K, V] {
	if shards < 1 {
		shards = DefaultShards
	}

	if shards > MaxShards {
		shards = MaxShards
	}

	return &Map[K, V]{shards: newShards[K, V](shards)}
}

func newShards[K Key, V any](n int) []*shard[K, V] {
	shards := make([]*shard[K, V], n)
	for i := range shards {
		shards[i] = &shard[K, V]{buckets: make(map[uint64][]entry[K, V])}
	}

	return shards
}

// shardList returns the shards, allocating them on first use of a zero Map.
func (m *Map[K, V]) shardList() []*shard[K, V] {
	m.once.Do(func() {
		if m.shards == nil {
			m.shards = newShards[K, V](DefaultShards)
		}
	})

	return m.shards
}

func (m *Map[K, V]) shardFor(hash uint64) *shard[K, V] {
	shards := m.shardList()

	return shards[hash%uint64(len(shards))]
}

// Get returns the value stored for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	hash := key.Hash()
	s := m.shardFor(hash)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.buckets[hash] {
		if e.key.Equal(key) {
			return e.value, true
		}
	}

	var zero V

	return zero, false
}

// LoadOrStore returns the value already stored for key, if any. Otherwise it
// stores value and returns it. loaded reports whether the value was present.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	hash := key.Hash()
	s := m.shardFor(hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.buckets[hash] {
		if e.key.Equal(key) {
			return e.value, true
		}
	}

	s.buckets[hash] = append(s.buckets[hash], entry[K, V]{key: key, value: value})
	s.size++

	return value, false
}

// Put stores value for key, replacing any previous value.
func (m *Map[K, V]) Put(key K, value V) {
	hash := key.Hash()
	s := m.shardFor(hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[hash]
	for i, e := range bucket {
		if e.key.Equal(key) {
			bucket[i].value = value

			return
		}
	}

	s.buckets[hash] = append(bucket, entry[K, V]{key: key, value: value})
	s.size++
}

// Delete removes key and reports whether it was present.
func (m *Map[K, V]) Delete(key K) bool {
	hash := key.Hash()
	s := m.shardFor(hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[hash]
	for i, e := range bucket {
		if !e.key.Equal(key) {
			continue
		}

		if len(bucket) == 1 {
			delete(s.buckets, hash)
		} else {
			s.buckets[hash] = append(bucket[:i:i], bucket[i+1:]...)
		}

		s.size--

		return true
	}

	return false
}

// Len returns the number of stored keys.
func (m *Map[K, V]) Len() int {
	n := 0

	for _, s := range m.shardList() {
		s.mu.RLock()
		n += s.size
		s.mu.RUnlock()
	}

	return n
}

// Range calls fn for every entry until fn returns false. Each shard is
// snapshotted before fn is called, so fn may modify the map.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, s := range m.shardList() {
		s.mu.RLock()

		entries := make([]entry[K, V], 0, s.size)
		for _, bucket := range s.buckets {
			entries = append(entries, bucket...)
		}

		s.mu.RUnlock()

		for _, e := range entries {
			if !fn(e.key, e.value) {
				return
			}
		}
	}
}

// Keys returns every stored key in no particular order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Len())

	m.Range(func(key K, _ V) bool {
		keys = append(keys, key)

		return true
	})

	return keys
}

// Clear removes every entry.
func (m *Map[K, V]) Clear() {
	for _, s := range m.shardList() {
		s.mu.Lock()
		s.buckets = make(map[uint64][]entry[K, V])
		s.size = 0
		s.mu.Unlock()
	}
}
