// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MKhiriev/go-firesync/internal/adapter"
	"github.com/MKhiriev/go-firesync/internal/cache"
	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/internal/store"
	"github.com/MKhiriev/go-firesync/internal/stream"
	"github.com/MKhiriev/go-firesync/models"
)

const (
	defaultSyncPeriod       = 10 * time.Second
	defaultStreamRetryDelay = 2 * time.Second
	syncErrorsBufferSize    = 64
	maxParallelOps          = 16
)

// Options tune a RealtimeDatabase. Start from DefaultOptions.
type Options struct {
	// InitialPull selects what is fetched when the first observer subscribes.
	InitialPull models.InitialPullStrategy
	// Streaming selects what the live subscription listens to.
	Streaming models.StreamingOptions
	// PushChanges enables sending local writes to the remote store.
	PushChanges bool
	// SyncPeriod is the pause between two reconciliation passes.
	SyncPeriod time.Duration
	// StreamRetryDelay is the pause before a dropped stream reconnects.
	StreamRetryDelay time.Duration
	// StreamBackoff overrides the reconnection delays; nil waits
	// StreamRetryDelay every time.
	StreamBackoff stream.BackoffFactory
	// ElementRoot narrows observation to a single element of the collection.
	ElementRoot string
	// FilenameModifier separates several local copies of one collection.
	FilenameModifier string
	// StreamErrorHandler decides whether the stream reconnects after a
	// failure. Failures are reported on SyncErrors either way.
	StreamErrorHandler stream.ErrorHandler
}

// DefaultOptions listens to new keys only, pulls the keys missing locally
// and pushes local changes every 10 seconds.
func DefaultOptions() Options {
	return Options{
		InitialPull:      models.PullMissingOnly,
		Streaming:        models.StreamLatestOnly,
		PushChanges:      true,
		SyncPeriod:       defaultSyncPeriod,
		StreamRetryDelay: defaultStreamRetryDelay,
	}
}

// RealtimeDatabase is an offline-first copy of one remote collection.
//
// Writes land in the local entry store and are visible immediately; a
// background loop pushes them to the remote store and refetches entries
// marked for pull. Observers get one ordered event stream made of the
// resident entries, local writes, the initial pull and the live stream.
//
// The background machinery runs while at least one Observation is open or
// after Start, until Stop.
type RealtimeDatabase[T any] struct {
	query     *adapter.Query
	transport adapter.Transport
	store     store.EntryStore
	opts      Options

	// emitMu serialises entry mutations with event publication, so that an
	// observer never misses or duplicates a change between replay and
	// registration.
	emitMu      sync.Mutex
	subscribers map[*Observation[T]]struct{}

	// runMu guards the background machinery. Background goroutines never
	// take it.
	runMu        sync.Mutex
	refs         int
	manual       bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	intakeFailed atomic.Bool

	errs   chan error
	closed atomic.Bool

	logger *logger.Logger
}

// NewRealtimeDatabase opens the local store of the collection root points
// at. Nothing runs in the background until Start or Observe.
func NewRealtimeDatabase[T any](
	root *adapter.Query,
	transport adapter.Transport,
	storeFactory store.Factory,
	opts Options,
	log *logger.Logger,
) (*RealtimeDatabase[T], error) {
	if opts.SyncPeriod <= 0 {
		opts.SyncPeriod = defaultSyncPeriod
	}
	if opts.StreamRetryDelay <= 0 {
		opts.StreamRetryDelay = defaultStreamRetryDelay
	}

	entries, err := storeFactory(reflect.TypeFor[T]().String(), opts.FilenameModifier)
	if err != nil {
		return nil, err
	}

	child := log.GetChildLogger()
	child.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("collection", root.Path()).Str("engine_id", uuid.NewString())
	})

	return &RealtimeDatabase[T]{
		query:       root,
		transport:   transport,
		store:       entries,
		opts:        opts,
		subscribers: make(map[*Observation[T]]struct{}),
		errs:        make(chan error, syncErrorsBufferSize),
		logger:      child,
	}, nil
}

// SyncErrors delivers failures of the background machinery. Errors are
// dropped when nobody drains the channel. It is closed by Close.
func (db *RealtimeDatabase[T]) SyncErrors() <-chan error {
	return db.errs
}

// Start runs the background machinery until Stop, regardless of observers.
func (db *RealtimeDatabase[T]) Start(ctx context.Context) {
	if db.closed.Load() {
		return
	}

	db.runMu.Lock()
	defer db.runMu.Unlock()

	db.stopLocked()
	db.manual = true
	db.startLocked(ctx)
}

// Stop halts the background machinery and waits for it to exit. Open
// observations stay open; the next Observe starts the machinery again.
func (db *RealtimeDatabase[T]) Stop() {
	db.runMu.Lock()
	defer db.runMu.Unlock()

	db.manual = false
	db.stopLocked()
}

// Close stops the machinery, ends every observation and closes the store.
func (db *RealtimeDatabase[T]) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}

	db.runMu.Lock()
	db.manual = false
	db.refs = 0
	db.stopLocked()
	db.runMu.Unlock()

	db.endSubscribers(nil)
	close(db.errs)
	return db.store.Close()
}

// acquire registers one more observer and starts the machinery when it is
// not running. It reports false once the database is closed.
func (db *RealtimeDatabase[T]) acquire() bool {
	db.runMu.Lock()
	defer db.runMu.Unlock()

	if db.closed.Load() {
		return false
	}
	db.refs++
	if db.cancel == nil || db.intakeFailed.Load() {
		db.stopLocked()
		db.startLocked(context.Background())
	}
	return true
}

// release drops one observer and stops the machinery with the last one.
func (db *RealtimeDatabase[T]) release() {
	db.runMu.Lock()
	defer db.runMu.Unlock()

	if db.refs > 0 {
		db.refs--
	}
	if db.refs == 0 && !db.manual {
		db.stopLocked()
	}
}

func (db *RealtimeDatabase[T]) startLocked(ctx context.Context) {
	runCtx, cancel := context.WithCancel(db.logger.WithContext(ctx))
	db.cancel = cancel
	db.intakeFailed.Store(false)

	db.wg.Add(2)
	go func() {
		defer db.wg.Done()
		db.syncLoop(runCtx)
	}()
	go func() {
		defer db.wg.Done()
		db.runIntake(runCtx)
	}()

	db.logger.Debug().
		Str("initial_pull", db.opts.InitialPull.String()).
		Str("streaming", db.opts.Streaming.String()).
		Msg("background machinery started")
}

func (db *RealtimeDatabase[T]) stopLocked() {
	cancel := db.cancel
	db.cancel = nil
	if cancel == nil {
		return
	}
	cancel()
	db.wg.Wait()
	db.logger.Debug().Msg("background machinery stopped")
}

// report sends err to SyncErrors without blocking. Failures caused by the
// machinery shutting down are not reported.
func (db *RealtimeDatabase[T]) report(ctx context.Context, op, key string, err error) {
	if ctx.Err() != nil {
		return
	}
	db.logger.Err(err).Str("op", op).Str("key", key).Msg("sync failure")
	select {
	case db.errs <- &SyncError{Op: op, Key: key, Err: err}:
	default:
		db.logger.Warn().Str("op", op).Msg("sync error dropped: channel is full")
	}
}

func (db *RealtimeDatabase[T]) checkOpen() error {
	if db.closed.Load() {
		return ErrDatabaseClosed
	}
	return nil
}

// newCache returns a merge cache writing through tree.
func (db *RealtimeDatabase[T]) newCache(tree cache.Tree[T]) *cache.Cache[T] {
	return cache.NewWithTree[T](tree)
}
