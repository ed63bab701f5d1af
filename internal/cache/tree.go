// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cache

import (
	"maps"
	"slices"
	"sync"
)

// Tree stores the top-level elements a Cache merges into.
//
// Store and Remove report false when the tree declined the change; the cache
// then emits no event for that key.
type Tree[T any] interface {
	Load(key string) (T, bool, error)
	Store(key string, value T) (bool, error)
	Remove(key string) (T, bool, error)
	Keys() ([]string, error)
}

// MapTree is an in-memory Tree.
type MapTree[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewMapTree[T any]() *MapTree[T] {
	return &MapTree[T]{items: make(map[string]T)}
}

func (m *MapTree[T]) Load(key string) (T, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MapTree[T]) Store(key string, value T) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return true, nil
}

func (m *MapTree[T]) Remove(key string) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if ok {
		delete(m.items, key)
	}
	return v, ok, nil
}

func (m *MapTree[T]) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Collect(maps.Keys(m.items)), nil
}

// Len returns the number of stored elements.
func (m *MapTree[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Snapshot returns a shallow copy of the stored elements.
func (m *MapTree[T]) Snapshot() map[string]T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.items)
}
