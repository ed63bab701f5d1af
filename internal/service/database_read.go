package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/MKhiriev/go-firesync/internal/store"
	"github.com/MKhiriev/go-firesync/models"
)

// Get returns the local value of key. It never touches the network.
func (db *RealtimeDatabase[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if err := db.checkKey(key); err != nil {
		return zero, false, err
	}

	e, err := db.store.Get(ctx, key)
	if errors.Is(err, store.ErrEntryNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	if !e.HasData() {
		return zero, false, nil
	}

	v, err := models.Decode[T](&e)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Entries returns every local element that holds a value.
func (db *RealtimeDatabase[T]) Entries(ctx context.Context) (map[string]T, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	all, err := db.store.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]T, len(all))
	for i := range all {
		e := &all[i]
		if e.IsPartial || !e.HasData() {
			continue
		}
		v, err := models.Decode[T](e)
		if err != nil {
			return nil, err
		}
		out[e.Key] = v
	}
	return out, nil
}

// Fetch reads key straight from the remote store. The local copy is left
// as is.
func (db *RealtimeDatabase[T]) Fetch(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if err := db.checkKey(key); err != nil {
		return zero, false, err
	}

	data, err := db.transport.Get(ctx, db.query.Child(key))
	if err != nil {
		return zero, false, err
	}
	if models.IsNullData(string(data)) {
		return zero, false, nil
	}

	var v T
	if err = json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return v, true, nil
}

// Pull marks key for refetch. The next reconciliation pass downloads it and
// emits the result with SourceOnlinePull.
func (db *RealtimeDatabase[T]) Pull(ctx context.Context, key string, opts ...WriteOption) error {
	if err := db.checkKey(key); err != nil {
		return err
	}

	db.emitMu.Lock()
	defer db.emitMu.Unlock()

	if err := db.markPull(ctx, key, applyWriteOptions(opts)); err != nil {
		return fmt.Errorf("pull %q: %w", key, err)
	}
	return nil
}

// PullAll downloads the whole collection and makes the local copy match it.
// Local elements absent remotely are removed unless they carry an unpushed
// write. Unlike the background loop, PullAll returns transport errors.
func (db *RealtimeDatabase[T]) PullAll(ctx context.Context) error {
	if err := db.checkOpen(); err != nil {
		return err
	}

	data, err := db.transport.Get(ctx, db.query)
	if err != nil {
		return err
	}

	remote := map[string]json.RawMessage{}
	if !models.IsNullData(string(data)) {
		if err = json.Unmarshal(data, &remote); err != nil {
			return fmt.Errorf("%w: collection is not an object: %w", ErrInvalidPayload, err)
		}
	}

	db.emitMu.Lock()
	defer db.emitMu.Unlock()

	local, err := db.store.All(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range slices.Sorted(maps.Keys(remote)) {
		if err = db.applyPulledLocked(ctx, key, remote[key], false); err != nil {
			errs = append(errs, err)
		}
	}

	for _, e := range local {
		if _, ok := remote[e.Key]; ok || e.IsPartial || e.SyncState.Pending() {
			continue
		}
		if err = db.applyPulledLocked(ctx, e.Key, nil, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// applyPulledLocked stores the downloaded value of key and publishes the
// change. Empty data removes the element. A local write that is still
// pending is kept. With onlyPending only entries still waiting for a pull
// are touched. Callers hold emitMu.
func (db *RealtimeDatabase[T]) applyPulledLocked(ctx context.Context, key string, data []byte, onlyPending bool) error {
	var (
		next    *models.Entry
		prev    T
		existed bool
	)

	err := db.store.Modify(ctx, key, func(current *models.Entry) (*models.Entry, error) {
		if current == nil && onlyPending {
			return nil, store.ErrSkipModify
		}
		if current != nil {
			if current.SyncState.Pending() {
				return nil, store.ErrSkipModify
			}
			if onlyPending && current.SyncState != models.SyncPull {
				return nil, store.ErrSkipModify
			}
			if current.HasData() {
				v, err := models.Decode[T](current)
				if err != nil {
					return nil, err
				}
				prev, existed = v, true
			}
		}

		if models.IsNullData(string(data)) {
			return nil, nil
		}

		priority := models.DefaultPriority
		if current != nil {
			priority = current.Priority
		}
		e := models.NewEntry(key, string(data), priority, models.SyncNone)
		if _, err := models.Decode[T](&e); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		next = &e
		return next, nil
	})
	if err != nil {
		return fmt.Errorf("apply %q: %w", key, err)
	}

	switch {
	case next != nil:
		v, _ := models.Decode[T](next)
		db.publishLocked(models.Event[T]{Key: key, Object: v, Kind: models.InsertOrUpdate, Source: models.SourceOnlinePull})
	case existed:
		db.publishLocked(models.Event[T]{Key: key, Object: prev, Kind: models.Delete, Source: models.SourceOnlinePull})
	}
	return nil
}
