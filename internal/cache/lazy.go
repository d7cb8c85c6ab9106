package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// lazyModule holds one value materialized on first access. Readers
// double-check under a read-lock before falling through to a
// singleflight-coalesced initializer, mirroring the teacher's
// OrderCache (mutex-guarded map + singleflight.Group) generalized to a
// single lazily-built value instead of a per-key map.
type lazyModule[T any] struct {
	mu    sync.RWMutex
	value *T
	group singleflight.Group
}

func (m *lazyModule[T]) get(init func() (T, error)) (T, error) {
	m.mu.RLock()
	if m.value != nil {
		v := *m.value
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()

	v, err, _ := m.group.Do("init", func() (interface{}, error) {
		m.mu.RLock()
		if m.value != nil {
			v := *m.value
			m.mu.RUnlock()
			return v, nil
		}
		m.mu.RUnlock()

		val, err := init()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.value = &val
		m.mu.Unlock()
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// replace publishes a new value atomically, the Go equivalent of the
// source's update_*_module setters.
func (m *lazyModule[T]) replace(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = &v
}

func (m *lazyModule[T]) invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = nil
}

// keyedCache is a per-key variant of lazyModule, used for remote price
// stats where each item's data is fetched independently. Grounded
// directly on the teacher's OrderCache: a mutex-guarded map plus a
// singleflight.Group keyed by the same string used to index the map,
// so concurrent first-touches for the same item coalesce into one
// fetch.
type keyedCache[T any] struct {
	mu    sync.RWMutex
	byKey map[string]T
	group singleflight.Group
}

func newKeyedCache[T any]() *keyedCache[T] {
	return &keyedCache[T]{byKey: make(map[string]T)}
}

func (c *keyedCache[T]) get(key string, fetch func() (T, error)) (T, error) {
	c.mu.RLock()
	if v, ok := c.byKey[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		if v, ok := c.byKey[key]; ok {
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()

		val, err := fetch()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.byKey[key] = val
		c.mu.Unlock()
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *keyedCache[T]) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = make(map[string]T)
}
