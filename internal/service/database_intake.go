package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sethvargo/go-retry"

	"github.com/MKhiriev/go-firesync/internal/adapter"
	"github.com/MKhiriev/go-firesync/internal/keygen"
	"github.com/MKhiriev/go-firesync/internal/stream"
	"github.com/MKhiriev/go-firesync/models"
)

// intakeMerger applies remote fragments to the entry store. It publishes
// the changes itself, under emitMu, so they are ordered with local writes;
// nothing is left for the caller to deliver.
type intakeMerger[T any] struct {
	db     *RealtimeDatabase[T]
	ctx    context.Context
	source models.Source

	// bounded is set when the query covers part of the collection only; a
	// null root then means "nothing in range", not "collection deleted".
	bounded bool
}

func (m *intakeMerger[T]) PushData(path, data string) ([]models.Event[T], error) {
	tree := m.db.remoteTree(m.ctx)
	if strings.Trim(path, "/") == "" && models.IsNullData(data) {
		if m.bounded {
			return nil, nil
		}
		// the collection is gone remotely; unpushed local writes survive
		tree.accept = func(current *models.Entry) bool {
			return !current.SyncState.Pending()
		}
	}

	m.db.emitMu.Lock()
	defer m.db.emitMu.Unlock()

	events, err := m.db.newCache(tree).PushData(path, data)
	for i := range events {
		events[i].Source = m.source
	}
	m.db.publishLocked(events...)
	return nil, err
}

// runIntake performs the initial pull and then follows the live stream
// until ctx is cancelled or the stream fails for good.
func (db *RealtimeDatabase[T]) runIntake(ctx context.Context) {
	if err := db.initialPull(ctx); err != nil {
		db.report(ctx, OpInitialPull, "", err)
	}
	if ctx.Err() != nil {
		return
	}

	q, ok := db.streamQuery(ctx)
	if !ok {
		return
	}

	backoff := db.opts.StreamBackoff
	if backoff == nil {
		backoff = stream.ConstantBackoff(db.opts.StreamRetryDelay, 0)
	}

	merger := &intakeMerger[T]{
		db:      db,
		ctx:     ctx,
		source:  models.SourceOnlineStream,
		bounded: db.opts.ElementRoot == "" && db.opts.Streaming == models.StreamLatestOnly,
	}
	sub := stream.Subscribe[T](ctx, db.transport, q, merger, stream.Options{
		ElementRoot:  db.opts.ElementRoot,
		ErrorHandler: db.streamErrorHandler(ctx),
		Backoff:      backoff,
	}, db.logger)
	defer sub.Close()

	for ev := range sub.Events() {
		db.emitMu.Lock()
		db.publishLocked(ev)
		db.emitMu.Unlock()
	}

	err := sub.Err()
	if err == nil || ctx.Err() != nil {
		return
	}
	// failures that went through the error handler are reported already
	if errors.Is(err, stream.ErrCancelled) {
		db.report(ctx, OpStream, "", err)
	}
	db.intakeFailed.Store(true)
	db.endSubscribers(err)
}

func (db *RealtimeDatabase[T]) streamErrorHandler(ctx context.Context) stream.ErrorHandler {
	return func(err error) stream.Decision {
		db.report(ctx, OpStream, "", err)
		if db.opts.StreamErrorHandler != nil {
			return db.opts.StreamErrorHandler(err)
		}
		return stream.Continue
	}
}

// initialPull downloads what the initial pull strategy asks for, retrying
// transport failures every StreamRetryDelay until ctx is cancelled.
func (db *RealtimeDatabase[T]) initialPull(ctx context.Context) error {
	q, ok := db.initialPullQuery(ctx)
	if !ok {
		return nil
	}

	merger := &intakeMerger[T]{
		db:      db,
		ctx:     ctx,
		source:  models.SourceOnlineInitial,
		bounded: db.opts.ElementRoot == "" && db.opts.InitialPull == models.PullMissingOnly,
	}
	backoff := retry.NewConstant(db.opts.StreamRetryDelay)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		data, err := db.transport.Get(ctx, q)
		if err != nil {
			db.report(ctx, OpInitialPull, "", err)
			return retry.RetryableError(err)
		}

		if db.opts.ElementRoot == "" {
			_, err = merger.PushData("/", string(data))
			return err
		}

		root := elementKey(db.opts.ElementRoot)
		if _, err = merger.PushData("/"+root, string(data)); err != nil {
			return err
		}
		if models.IsNullData(string(data)) {
			db.publishEmpty(ctx, root)
		}
		return nil
	})
}

// publishEmpty tells observers that the observed element has no data yet.
func (db *RealtimeDatabase[T]) publishEmpty(ctx context.Context, key string) {
	if _, found, err := db.Get(ctx, key); err != nil || found {
		return
	}
	db.emitMu.Lock()
	db.publishLocked(models.EmptyEvent[T](models.SourceOnlineInitial))
	db.emitMu.Unlock()
}

func (db *RealtimeDatabase[T]) initialPullQuery(ctx context.Context) (*adapter.Query, bool) {
	if db.opts.InitialPull == models.PullNone {
		return nil, false
	}

	if db.opts.ElementRoot != "" {
		root := elementKey(db.opts.ElementRoot)
		if db.opts.InitialPull == models.PullMissingOnly {
			if _, found, err := db.Get(ctx, root); err == nil && found {
				return nil, false
			}
		}
		return db.query.Child(root), true
	}

	if db.opts.InitialPull == models.PullMissingOnly {
		if bound := db.latestBound(ctx); bound != "" {
			return db.query.OrderByKey().StartAt(bound), true
		}
	}
	return db.query, true
}

func (db *RealtimeDatabase[T]) streamQuery(ctx context.Context) (*adapter.Query, bool) {
	switch {
	case db.opts.Streaming == models.StreamNone:
		return nil, false
	case db.opts.ElementRoot != "":
		return db.query.Child(elementKey(db.opts.ElementRoot)), true
	case db.opts.Streaming == models.StreamLatestOnly:
		// the bound is recomputed on every reconnect
		return db.query.OrderByKey().StartAtFunc(func() string {
			return db.latestBound(ctx)
		}), true
	default:
		return db.query, true
	}
}

// latestBound returns the smallest key greater than every complete local
// key, or "" when there is none.
func (db *RealtimeDatabase[T]) latestBound(ctx context.Context) string {
	all, err := db.store.All(ctx)
	if err != nil {
		db.report(ctx, OpLoad, "", err)
		return ""
	}

	var latest string
	for _, e := range all {
		if !e.IsPartial && e.Key > latest {
			latest = e.Key
		}
	}
	if latest == "" {
		return ""
	}
	return keygen.Successor(latest)
}

func elementKey(root string) string {
	return strings.Trim(root, "/")
}
