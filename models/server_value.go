// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// ServerValue is a placeholder the remote store replaces with a value it
// computes when the write is applied.
type ServerValue map[string]any

// ServerTimestamp resolves to the server's current time in milliseconds.
func ServerTimestamp() ServerValue {
	return ServerValue{".sv": "timestamp"}
}

// ServerIncrement atomically adds delta to the current numeric value.
func ServerIncrement(delta float64) ServerValue {
	return ServerValue{".sv": map[string]any{"increment": delta}}
}
