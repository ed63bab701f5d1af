// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultPriority is assigned to entries written without an explicit priority.
const DefaultPriority = 1

// SyncState tells the reconciliation loop which network operation an entry
// is waiting for.
type SyncState int

const (
	// SyncNone means the entry is in sync with the remote store.
	SyncNone SyncState = iota
	// SyncPull means the entry must be refetched from the remote store.
	SyncPull
	// SyncPut means the entry must be fully overwritten remotely.
	SyncPut
	// SyncPatch means the entry must be merged remotely.
	SyncPatch
)

func (s SyncState) String() string {
	switch s {
	case SyncNone:
		return "none"
	case SyncPull:
		return "pull"
	case SyncPut:
		return "put"
	case SyncPatch:
		return "patch"
	default:
		return fmt.Sprintf("sync_state(%d)", int(s))
	}
}

// Pending reports whether the entry carries a local write that has not been
// confirmed by the remote store yet.
func (s SyncState) Pending() bool {
	return s == SyncPut || s == SyncPatch
}

// Entry is one locally stored element of a synchronized collection.
//
// Data is the authoritative serialized JSON. Empty or "null" data means the
// element has no value: a placeholder waiting for a pull or a delete waiting
// for its push.
type Entry struct {
	Key       string    `json:"key"`
	Data      string    `json:"data"`
	Priority  int       `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
	SyncState SyncState `json:"sync_state"`
	IsPartial bool      `json:"is_partial"`

	decoded any
}

// NewEntry builds an entry stamped with the current time.
func NewEntry(key, data string, priority int, state SyncState) Entry {
	if priority == 0 {
		priority = DefaultPriority
	}
	return Entry{
		Key:       key,
		Data:      data,
		Priority:  priority,
		Timestamp: time.Now().UTC(),
		SyncState: state,
	}
}

// HasData reports whether Data holds a value.
func (e *Entry) HasData() bool {
	return !IsNullData(e.Data)
}

// Same reports whether o describes the same revision of the entry.
func (e *Entry) Same(o *Entry) bool {
	return e.Key == o.Key &&
		e.Data == o.Data &&
		e.SyncState == o.SyncState &&
		e.Timestamp.Equal(o.Timestamp)
}

// Decode returns the typed projection of e.Data. The value is cached on the
// entry, so callers must treat it as read-only.
func Decode[T any](e *Entry) (T, error) {
	if v, ok := e.decoded.(T); ok {
		return v, nil
	}

	var v T
	if !e.HasData() {
		return v, nil
	}
	if err := json.Unmarshal([]byte(e.Data), &v); err != nil {
		return v, fmt.Errorf("decode entry %q: %w", e.Key, err)
	}
	e.decoded = v
	return v, nil
}

// IsNullData reports whether a serialized value means "no value".
func IsNullData(data string) bool {
	trimmed := strings.TrimSpace(data)
	return trimmed == "" || trimmed == "null"
}
