// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cache

import "errors"

var (
	// ErrUnknownField is returned when a path segment names no field of the
	// struct it is applied to.
	ErrUnknownField = errors.New("unknown field")

	// ErrNotContainer is returned when a path continues below a value that
	// cannot hold children (a number, a string, a map with non-string keys).
	ErrNotContainer = errors.New("value is not a container")

	// ErrInvalidIndex is returned when a slice segment is not a valid index.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrInvalidPayload is returned when the fragment cannot be decoded into
	// the terminal location.
	ErrInvalidPayload = errors.New("invalid payload")
)
