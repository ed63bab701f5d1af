// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// ChangeKind is the type of change an Event reports.
type ChangeKind int

const (
	InsertOrUpdate ChangeKind = iota
	Delete
)

func (k ChangeKind) String() string {
	if k == Delete {
		return "delete"
	}
	return "insert_or_update"
}

// Source tells where a change came from.
type Source int

const (
	// SourceOffline is a local write or a replay of resident entries.
	SourceOffline Source = iota
	// SourceOnlineInitial is the initial pull performed on subscription.
	SourceOnlineInitial
	// SourceOnlineStream is a server-sent event.
	SourceOnlineStream
	// SourceOnlinePull is an explicit refetch.
	SourceOnlinePull
	// SourceOnlinePush is the acknowledgement of a pushed local write.
	SourceOnlinePush
)

func (s Source) String() string {
	switch s {
	case SourceOffline:
		return "offline"
	case SourceOnlineInitial:
		return "online_initial"
	case SourceOnlineStream:
		return "online_stream"
	case SourceOnlinePull:
		return "online_pull"
	case SourceOnlinePush:
		return "online_push"
	default:
		return "unknown"
	}
}

// Event is a change of one top-level element of a collection.
//
// For Delete events Object holds the last known value, or the zero value
// when none is known.
type Event[T any] struct {
	Key    string
	Object T
	Kind   ChangeKind
	Source Source
}

// EmptyEvent reports that an observed element has no data yet.
func EmptyEvent[T any](src Source) Event[T] {
	return Event[T]{Source: src}
}

// IsEmpty reports whether e is a "no data yet" event.
func (e Event[T]) IsEmpty() bool {
	return e.Key == ""
}
