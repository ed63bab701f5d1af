// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides the transport to the remote JSON tree store.
//
// A [Query] addresses a location in the tree together with its filter
// parameters and auth token source; a [Transport] performs REST calls and
// opens event streams against the URL a Query builds. Non-2xx responses are
// returned as [*RequestError] wrapping the sentinel values in errors.go so
// that callers can use [errors.Is] (e.g. [ErrUnauthorized] for 401).
package adapter

import (
	"context"
	"io"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/transport_mock.go -package=mock

// Transport defines the REST operations of the remote store. Bodies are
// serialized JSON.
type Transport interface {
	// Get returns the JSON value stored at q; "null" when nothing is stored.
	Get(ctx context.Context, q *Query) ([]byte, error)

	// Put overwrites the value stored at q.
	Put(ctx context.Context, q *Query, body []byte) error

	// Post stores body under a server-generated child of q and returns the
	// child key.
	Post(ctx context.Context, q *Query, body []byte) (string, error)

	// Patch merges the top-level members of body into the value at q.
	Patch(ctx context.Context, q *Query, body []byte) error

	// Delete removes the value stored at q.
	Delete(ctx context.Context, q *Query) error

	// Stream opens a server-sent events stream for q. The caller owns the
	// returned body and must close it.
	Stream(ctx context.Context, q *Query) (io.ReadCloser, error)
}
