package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MKhiriev/go-firesync/internal/store"
	"github.com/MKhiriev/go-firesync/models"
)

// syncLoop runs Sync right away and then every SyncPeriod until ctx is
// cancelled.
func (db *RealtimeDatabase[T]) syncLoop(ctx context.Context) {
	t := time.NewTicker(db.opts.SyncPeriod)
	defer t.Stop()

	for {
		_ = db.Sync(ctx)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Sync runs one reconciliation pass: entries marked for pull are
// downloaded, then pending local writes are pushed. Both happen in groups
// of equal priority, highest first; a group completes before the next one
// starts. Every failure is reported on SyncErrors and the pass goes on; the
// joined failures are returned as well.
func (db *RealtimeDatabase[T]) Sync(ctx context.Context) error {
	if err := db.checkOpen(); err != nil {
		return err
	}

	entries, err := db.store.All(ctx)
	if err != nil {
		db.report(ctx, OpLoad, "", err)
		return err
	}

	var pulls, pushes []models.Entry
	for _, e := range entries {
		switch {
		case e.SyncState == models.SyncPull && !e.IsPartial:
			pulls = append(pulls, e)
		case e.SyncState.Pending() && db.opts.PushChanges:
			pushes = append(pushes, e)
		}
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	collect := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, group := range groupByPriority(pulls) {
		db.runGroup(ctx, group, db.pullEntry, collect)
	}
	for _, group := range groupByPriority(pushes) {
		// property writes go after the elements they belong to
		partials := slices.DeleteFunc(slices.Clone(group), func(e models.Entry) bool { return !e.IsPartial })
		group = slices.DeleteFunc(group, func(e models.Entry) bool { return e.IsPartial })
		db.runGroup(ctx, group, db.pushEntry, collect)
		db.runGroup(ctx, partials, db.pushEntry, collect)
	}
	return errors.Join(errs...)
}

func (db *RealtimeDatabase[T]) runGroup(
	ctx context.Context,
	group []models.Entry,
	op func(context.Context, models.Entry) error,
	collect func(error),
) {
	var g errgroup.Group
	g.SetLimit(maxParallelOps)

	for _, e := range group {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := op(ctx, e); err != nil {
				collect(err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// pullEntry downloads one entry marked for pull.
func (db *RealtimeDatabase[T]) pullEntry(ctx context.Context, e models.Entry) error {
	data, err := db.transport.Get(ctx, db.query.Child(e.Key))
	if err != nil {
		db.report(ctx, OpPull, e.Key, err)
		return err
	}

	db.emitMu.Lock()
	defer db.emitMu.Unlock()

	if err = db.applyPulledLocked(ctx, e.Key, data, true); err != nil {
		db.report(ctx, OpPull, e.Key, err)
		return err
	}
	return nil
}

// pushEntry sends one pending local write and marks it as synced unless it
// was overwritten in the meantime.
func (db *RealtimeDatabase[T]) pushEntry(ctx context.Context, e models.Entry) error {
	q := db.query.Child(e.Key)

	var err error
	switch {
	case !e.HasData():
		err = db.transport.Delete(ctx, q)
	case e.SyncState == models.SyncPatch && isJSONObject(e.Data):
		err = db.transport.Patch(ctx, q, []byte(e.Data))
	default:
		err = db.transport.Put(ctx, q, []byte(e.Data))
	}
	if err != nil {
		db.report(ctx, OpPush, e.Key, err)
		return err
	}

	db.emitMu.Lock()
	defer db.emitMu.Unlock()

	confirmed := false
	err = db.store.Modify(ctx, e.Key, func(current *models.Entry) (*models.Entry, error) {
		if current == nil || !current.Same(&e) {
			return nil, store.ErrSkipModify
		}
		if current.IsPartial || !current.HasData() {
			return nil, nil
		}
		next := *current
		next.SyncState = models.SyncNone
		confirmed = true
		return &next, nil
	})
	if err != nil {
		db.report(ctx, OpPush, e.Key, err)
		return err
	}

	if confirmed {
		v, err := models.Decode[T](&e)
		if err == nil {
			db.publishLocked(models.Event[T]{Key: e.Key, Object: v, Kind: models.InsertOrUpdate, Source: models.SourceOnlinePush})
		}
	}
	return nil
}

// groupByPriority splits entries into groups of equal priority, highest
// first.
func groupByPriority(entries []models.Entry) [][]models.Entry {
	byPriority := make(map[int][]models.Entry)
	for _, e := range entries {
		byPriority[e.Priority] = append(byPriority[e.Priority], e)
	}

	priorities := make([]int, 0, len(byPriority))
	for p := range byPriority {
		priorities = append(priorities, p)
	}
	slices.Sort(priorities)
	slices.Reverse(priorities)

	groups := make([][]models.Entry, 0, len(priorities))
	for _, p := range priorities {
		groups = append(groups, byPriority[p])
	}
	return groups
}

func isJSONObject(data string) bool {
	var m map[string]json.RawMessage
	return json.Unmarshal([]byte(data), &m) == nil && m != nil
}
