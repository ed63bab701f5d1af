package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-firesync/internal/store"
	"github.com/MKhiriev/go-firesync/models"
)

// entryTree exposes the entry store as a cache.Tree. Callers hold emitMu.
//
// Stored elements get the configured sync state and priority; keepState and
// a zero priority preserve those of the current entry. accept, when set,
// decides whether the current entry may be replaced at all.
type entryTree[T any] struct {
	ctx   context.Context
	store store.EntryStore

	state     models.SyncState
	keepState bool
	priority  int
	accept    func(current *models.Entry) bool
}

func (t *entryTree[T]) Load(key string) (T, bool, error) {
	var zero T

	e, err := t.store.Get(t.ctx, key)
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

func (t *entryTree[T]) Store(key string, value T) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	stored := false
	err = t.store.Modify(t.ctx, key, func(current *models.Entry) (*models.Entry, error) {
		if current != nil && t.accept != nil && !t.accept(current) {
			return nil, store.ErrSkipModify
		}

		next := models.NewEntry(key, string(data), t.priority, t.state)
		if current != nil {
			if t.priority == 0 {
				next.Priority = current.Priority
			}
			if t.keepState {
				next.SyncState = current.SyncState
			}
		}
		stored = true
		return &next, nil
	})
	return stored, err
}

func (t *entryTree[T]) Remove(key string) (T, bool, error) {
	var prev T
	removed := false

	err := t.store.Modify(t.ctx, key, func(current *models.Entry) (*models.Entry, error) {
		if current == nil || !current.HasData() {
			return nil, store.ErrSkipModify
		}
		if t.accept != nil && !t.accept(current) {
			return nil, store.ErrSkipModify
		}

		v, err := models.Decode[T](current)
		if err != nil {
			return nil, err
		}
		prev, removed = v, true
		return nil, nil
	})
	return prev, removed, err
}

// Keys lists the elements holding a value. Partial entries are not elements.
func (t *entryTree[T]) Keys() ([]string, error) {
	all, err := t.store.All(t.ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(all))
	for _, e := range all {
		if e.IsPartial || !e.HasData() {
			continue
		}
		keys = append(keys, e.Key)
	}
	return keys, nil
}

// localTree writes elements changed by a local write.
func (db *RealtimeDatabase[T]) localTree(ctx context.Context, state models.SyncState, priority int) *entryTree[T] {
	return &entryTree[T]{ctx: ctx, store: db.store, state: state, priority: priority}
}

// nestedTree writes the top-level element touched by a property write. The
// element keeps its sync state: only the partial entry is pushed.
func (db *RealtimeDatabase[T]) nestedTree(ctx context.Context) *entryTree[T] {
	return &entryTree[T]{ctx: ctx, store: db.store, keepState: true}
}

// remoteTree applies data received from the remote store. A local write
// that has not been pushed yet wins over the remote value when the whole
// collection is pulled on start.
func (db *RealtimeDatabase[T]) remoteTree(ctx context.Context) *entryTree[T] {
	return &entryTree[T]{
		ctx:   ctx,
		store: db.store,
		state: models.SyncNone,
		accept: func(current *models.Entry) bool {
			return !current.SyncState.Pending() || db.opts.InitialPull != models.PullEverything
		},
	}
}
