package service

import (
	"context"
)

// Collection is the offline-first view of one remote collection. It is
// implemented by RealtimeDatabase.
type Collection[T any] interface {
	Put(ctx context.Context, key string, obj T, opts ...WriteOption) error
	Patch(ctx context.Context, key string, obj T, opts ...WriteOption) error
	Post(ctx context.Context, obj T, opts ...WriteOption) (string, error)
	Delete(ctx context.Context, key string, opts ...WriteOption) error

	PutProperty(ctx context.Context, key, path string, value any, opts ...WriteOption) error
	PatchProperty(ctx context.Context, key, path string, value any, opts ...WriteOption) error
	PostProperty(ctx context.Context, key, path string, value any, opts ...WriteOption) (string, error)
	DeleteProperty(ctx context.Context, key, path string, opts ...WriteOption) error

	Get(ctx context.Context, key string) (T, bool, error)
	Entries(ctx context.Context) (map[string]T, error)
	Fetch(ctx context.Context, key string) (T, bool, error)
	Pull(ctx context.Context, key string, opts ...WriteOption) error
	PullAll(ctx context.Context) error
	Sync(ctx context.Context) error

	Observe() *Observation[T]
	SyncErrors() <-chan error

	Start(ctx context.Context)
	Stop()
	Close() error
}

var _ Collection[struct{}] = (*RealtimeDatabase[struct{}])(nil)
