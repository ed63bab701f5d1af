// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the sample chat application runtime.
//
// It wires the synchronized message collection, its local store and the
// terminal UI into a single process lifecycle.
package client
