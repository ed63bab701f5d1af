// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package store keeps the local copy of a synchronized collection.
//
// Every collection is backed by one EntryStore holding a models.Entry per
// key. Backends: an in-memory map, a JSON document on disk and an SQLite
// database. A Factory opens the store of a collection by name.
package store

import (
	"context"

	"github.com/MKhiriev/go-firesync/models"
)

// ModifyFunc computes the new state of one entry from its current state.
// current is nil when the key is absent. Returning nil removes the entry;
// returning ErrSkipModify leaves the store untouched.
type ModifyFunc func(current *models.Entry) (*models.Entry, error)

// EntryStore is a durable string-keyed map of entries.
type EntryStore interface {
	// Get returns ErrEntryNotFound when key is absent.
	Get(ctx context.Context, key string) (models.Entry, error)
	// All returns every entry ordered by key.
	All(ctx context.Context) ([]models.Entry, error)
	Set(ctx context.Context, entries ...models.Entry) error
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error
	// Modify runs fn and applies its result atomically with respect to any
	// other call on the same store. fn must not call the store.
	Modify(ctx context.Context, key string, fn ModifyFunc) error
	Close() error
}

// Factory opens the store of one collection. filenameModifier separates
// several local copies of the same collection.
type Factory func(collection, filenameModifier string) (EntryStore, error)
