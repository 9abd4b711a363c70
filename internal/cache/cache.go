// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cache provides a small concurrency-safe memoization map,
// used to cache resolved method metadata per client.
package cache

import "sync"

// Map memoizes values by key. The zero value is not usable; call [New].
type Map[K comparable, V any] struct {
	mu   sync.Mutex
	data map[K]V
}

// New initializes a [Map].
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		data: make(map[K]V),
	}
}

// GetOr returns the value memoized under k, computing and storing it
// with f on first use. f runs under the map lock, so lookups of the
// same key observe a single computation.
func (m *Map[K, V]) GetOr(k K, f func() (V, error)) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[k]
	if ok {
		return v, nil
	}

	v, err := f()
	if err != nil {
		return v, err
	}

	m.data[k] = v
	return v, nil
}
