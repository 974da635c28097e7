// Package decaymap is a generic in-memory map whose entries expire after a
// per-entry duration. Expired entries are hidden from readers immediately and
// physically removed on access or by Cleanup.
package decaymap

import (
	"sync"
	"time"
)

func Zilch[T any]() T {
	var zero T
	return zero
}

// Impl is a lazy key->value map. It's a wrapper around a map and a mutex. If
// values exceed their time-to-live, they are pruned at Get time.
type Impl[K comparable, V any] struct {
	data map[K]decayMapEntry[V]
	lock sync.RWMutex

	// now is swappable for tests.
	now func() time.Time
}

type decayMapEntry[V any] struct {
	Value  V
	expiry time.Time
}

// New creates a new DecayMap of key type K and value type V.
//
// Key types must be comparable to work with maps.
func New[K comparable, V any]() *Impl[K, V] {
	return &Impl[K, V]{
		data: make(map[K]decayMapEntry[V]),
		now:  time.Now,
	}
}

// expire forcibly expires a key by setting its time-to-live one second in the past.
func (m *Impl[K, V]) expire(key K) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	val, ok := m.data[key]
	if !ok {
		return false
	}

	val.expiry = m.now().Add(-1 * time.Second)
	m.data[key] = val
	return true
}

// Delete a value from the DecayMap by key.
//
// If the value does not exist, return false. Return true after deletion.
func (m *Impl[K, V]) Delete(key K) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.data[key]; !ok {
		return false
	}

	delete(m.data, key)
	return true
}

// Get gets a value from the DecayMap by key.
//
// If a value has expired, forcibly delete it if it was not updated.
func (m *Impl[K, V]) Get(key K) (V, bool) {
	m.lock.RLock()
	value, ok := m.data[key]
	m.lock.RUnlock()

	if !ok {
		return Zilch[V](), false
	}

	if m.now().After(value.expiry) {
		m.lock.Lock()
		// Re-check after acquiring the write lock in case it was updated.
		if val, ok := m.data[key]; ok && val.expiry.Equal(value.expiry) {
			delete(m.data, key)
		}
		m.lock.Unlock()

		return Zilch[V](), false
	}

	return value.Value, true
}

// Set sets a key value pair in the map.
func (m *Impl[K, V]) Set(key K, value V, ttl time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.data[key] = decayMapEntry[V]{
		Value:  value,
		expiry: m.now().Add(ttl),
	}
}

// Touch extends the lifetime of an existing, unexpired key. It reports whether
// the key was present.
func (m *Impl[K, V]) Touch(key K, ttl time.Duration) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	val, ok := m.data[key]
	if !ok || m.now().After(val.expiry) {
		return false
	}

	val.expiry = m.now().Add(ttl)
	m.data[key] = val
	return true
}

// GetOrCreate returns the live value for key and extends its lifetime to ttl.
// When there is none, it stores create() instead. Both happen under one lock,
// so concurrent callers for a missing key all get the same value. loaded
// reports whether the value already existed.
func (m *Impl[K, V]) GetOrCreate(key K, ttl time.Duration, create func() V) (value V, loaded bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	entry, ok := m.data[key]
	loaded = ok && !now.After(entry.expiry)
	if !loaded {
		entry.Value = create()
	}

	entry.expiry = now.Add(ttl)
	m.data[key] = entry
	return entry.Value, loaded
}

// Cleanup removes all expired entries from the DecayMap.
func (m *Impl[K, V]) Cleanup() {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	for key, val := range m.data {
		if now.After(val.expiry) {
			delete(m.data, key)
		}
	}
}

// Len returns the number of entries in the DecayMap, expired or not.
func (m *Impl[K, V]) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.data)
}
