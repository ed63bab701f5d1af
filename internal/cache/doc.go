// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package cache applies remote patches to a typed object tree.
//
// A patch is a slash-delimited path plus a serialized fragment, as delivered
// by the remote store's event stream ("/dino/ds/height", "5"). Cache walks
// the path through maps, structs, slices and pointers, merges the fragment at
// the terminal location and reports every changed top-level element.
//
// Struct fields are matched by json tag or by Go name, case-insensitively.
// The lookup table for each struct type is built once and shared.
//
// Top-level elements live in a Tree. MapTree keeps them in memory; the sync
// engine plugs in a tree backed by its entry store.
package cache
