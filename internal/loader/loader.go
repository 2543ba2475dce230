// Package loader provides request-scoped batching and caching of lookups.
package loader

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// BatchFunc fetches values for keys. Keys without a value are left out of the map.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

type entry[V any] struct {
	value V
	found bool
}

// Loader caches lookups for the lifetime of one request. Concurrent loads of
// the same key share a single fetch. Errors are not cached.
type Loader[K comparable, V any] struct {
	batch BatchFunc[K, V]
	group singleflight.Group

	mu    sync.RWMutex
	cache map[K]entry[V]
}

// New creates a new loader.
func New[K comparable, V any](batch BatchFunc[K, V]) *Loader[K, V] {
	return &Loader[K, V]{
		batch: batch,
		cache: make(map[K]entry[V]),
	}
}

// Prime records the results of a lookup done elsewhere. Keys missing from
// values are cached as not found.
func (l *Loader[K, V]) Prime(keys []K, values map[K]V) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, key := range keys {
		value, found := values[key]
		l.cache[key] = entry[V]{value: value, found: found}
	}
}

// Load returns the value for key and whether it exists.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, bool, error) {
	if cached, ok := l.cached(key); ok {
		return cached.value, cached.found, nil
	}

	result, err, _ := l.group.Do(fmt.Sprint(key), func() (any, error) {
		// Another caller may have filled the cache while we waited
		if cached, ok := l.cached(key); ok {
			return cached, nil
		}

		values, err := l.batch(ctx, []K{key})
		if err != nil {
			return nil, err
		}

		value, found := values[key]
		loaded := entry[V]{value: value, found: found}

		l.mu.Lock()
		l.cache[key] = loaded
		l.mu.Unlock()

		return loaded, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}

	loaded := result.(entry[V])
	return loaded.value, loaded.found, nil
}

func (l *Loader[K, V]) cached(key K) (entry[V], bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cached, ok := l.cache[key]
	return cached, ok
}
