// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"fmt"
	"strings"
)

// InitialPullStrategy selects what is fetched when observation starts.
type InitialPullStrategy int

const (
	// PullNone skips the initial pull.
	PullNone InitialPullStrategy = iota
	// PullMissingOnly fetches only keys greater than the largest local key.
	PullMissingOnly
	// PullEverything fetches the whole collection.
	PullEverything
)

func (s InitialPullStrategy) String() string {
	switch s {
	case PullNone:
		return "none"
	case PullMissingOnly:
		return "missing_only"
	case PullEverything:
		return "everything"
	default:
		return fmt.Sprintf("initial_pull(%d)", int(s))
	}
}

// ParseInitialPullStrategy parses the textual form produced by String.
func ParseInitialPullStrategy(s string) (InitialPullStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PullNone, nil
	case "missing_only", "missingonly", "missing":
		return PullMissingOnly, nil
	case "everything", "all":
		return PullEverything, nil
	}
	return PullNone, fmt.Errorf("unknown initial pull strategy %q", s)
}

// StreamingOptions selects what the live subscription listens to.
type StreamingOptions int

const (
	// StreamNone disables the live subscription.
	StreamNone StreamingOptions = iota
	// StreamLatestOnly listens to keys greater than the largest local key.
	StreamLatestOnly
	// StreamEverything listens to the whole collection.
	StreamEverything
)

func (s StreamingOptions) String() string {
	switch s {
	case StreamNone:
		return "none"
	case StreamLatestOnly:
		return "latest_only"
	case StreamEverything:
		return "everything"
	default:
		return fmt.Sprintf("streaming(%d)", int(s))
	}
}

// ParseStreamingOptions parses the textual form produced by String.
func ParseStreamingOptions(s string) (StreamingOptions, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return StreamNone, nil
	case "latest_only", "latestonly", "latest":
		return StreamLatestOnly, nil
	case "everything", "all":
		return StreamEverything, nil
	}
	return StreamNone, fmt.Errorf("unknown streaming option %q", s)
}
