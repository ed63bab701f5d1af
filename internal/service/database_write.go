package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/MKhiriev/go-firesync/internal/cache"
	"github.com/MKhiriev/go-firesync/internal/keygen"
	"github.com/MKhiriev/go-firesync/internal/store"
	"github.com/MKhiriev/go-firesync/models"
)

type writeOptions struct {
	sync     bool
	priority int
}

// WriteOption tunes a single write.
type WriteOption func(*writeOptions)

// WithoutSync keeps the write local: it is never pushed to the remote store.
func WithoutSync() WriteOption {
	return func(o *writeOptions) {
		o.sync = false
	}
}

// WithPriority sets the priority of the written entry. Higher priorities are
// synchronized first.
func WithPriority(p int) WriteOption {
	return func(o *writeOptions) {
		o.priority = p
	}
}

func applyWriteOptions(opts []WriteOption) writeOptions {
	o := writeOptions{sync: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o writeOptions) state(s models.SyncState) models.SyncState {
	if !o.sync {
		return models.SyncNone
	}
	return s
}

// ── Top-level writes ────────────────────────────────────────────────────────

// Put replaces the element at key.
func (db *RealtimeDatabase[T]) Put(ctx context.Context, key string, obj T, opts ...WriteOption) error {
	if err := db.checkKey(key); err != nil {
		return err
	}
	o := applyWriteOptions(opts)

	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	db.emitMu.Lock()
	defer db.emitMu.Unlock()

	var stored models.Entry
	err = db.store.Modify(ctx, key, func(current *models.Entry) (*models.Entry, error) {
		stored = models.NewEntry(key, string(data), o.priority, o.state(models.SyncPut))
		if current != nil && o.priority == 0 {
			stored.Priority = current.Priority
		}
		return &stored, nil
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	if o.sync {
		if err = db.dropPartialsLocked(ctx, key); err != nil {
			return fmt.Errorf("put %q: %w", key, err)
		}
	}

	v, err := models.Decode[T](&stored)
	if err != nil {
		return err
	}
	db.publishLocked(models.Event[T]{Key: key, Object: v, Kind: models.InsertOrUpdate, Source: models.SourceOffline})
	return nil
}

// Patch merges the fields of obj into the element at key.
func (db *RealtimeDatabase[T]) Patch(ctx context.Context, key string, obj T, opts ...WriteOption) error {
	if err := db.checkKey(key); err != nil {
		return err
	}
	o := applyWriteOptions(opts)

	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	db.emitMu.Lock()
	defer db.emitMu.Unlock()

	tree := db.localTree(ctx, o.state(models.SyncPatch), o.priority)
	events, err := db.newCache(tree).PushData("/"+key, string(data))
	if err != nil {
		return fmt.Errorf("patch %q: %w", key, err)
	}
	if o.sync {
		var fields map[string]json.RawMessage
		_ = json.Unmarshal(data, &fields)
		paths := make([]string, 0, len(fields))
		for field := range fields {
			paths = append(paths, key+"/"+field)
		}
		if err = db.dropPartialsLocked(ctx, paths...); err != nil {
			return fmt.Errorf("patch %q: %w", key, err)
		}
	}
	db.publishLocked(events...)
	return nil
}

// Post stores obj under a new push key and returns the key.
func (db *RealtimeDatabase[T]) Post(ctx context.Context, obj T, opts ...WriteOption) (string, error) {
	key := keygen.Next()
	if err := db.Put(ctx, key, obj, opts...); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes the element at key. A synced delete keeps a tombstone until
// the remote store confirms it.
func (db *RealtimeDatabase[T]) Delete(ctx context.Context, key string, opts ...WriteOption) error {
	if err := db.checkKey(key); err != nil {
		return err
	}
	o := applyWriteOptions(opts)

	db.emitMu.Lock()
	defer db.emitMu.Unlock()

	var (
		prev    T
		existed bool
	)
	err := db.store.Modify(ctx, key, func(current *models.Entry) (*models.Entry, error) {
		if current != nil && current.HasData() {
			v, err := models.Decode[T](current)
			if err != nil {
				return nil, err
			}
			prev, existed = v, true
		}
		if !o.sync {
			return nil, nil
		}

		tombstone := models.NewEntry(key, "null", o.priority, models.SyncPut)
		if current != nil && o.priority == 0 {
			tombstone.Priority = current.Priority
		}
		return &tombstone, nil
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	if o.sync {
		if err = db.dropPartialsLocked(ctx, key); err != nil {
			return fmt.Errorf("delete %q: %w", key, err)
		}
	}

	if existed {
		db.publishLocked(models.Event[T]{Key: key, Object: prev, Kind: models.Delete, Source: models.SourceOffline})
	}
	return nil
}

// ── Property writes ─────────────────────────────────────────────────────────

// PutProperty replaces the value at path inside the element at key. path
// may use Go field names or wire names: "/Dimensions/Height" and
// "/ds/height" address the same value.
func (db *RealtimeDatabase[T]) PutProperty(ctx context.Context, key, path string, value any, opts ...WriteOption) error {
	return db.writeProperty(ctx, key, path, value, models.SyncPut, opts)
}

// PatchProperty merges value into the object at path inside the element at
// key.
func (db *RealtimeDatabase[T]) PatchProperty(ctx context.Context, key, path string, value any, opts ...WriteOption) error {
	return db.writeProperty(ctx, key, path, value, models.SyncPatch, opts)
}

// PostProperty appends value under a new push key at path and returns the
// key of the new child.
func (db *RealtimeDatabase[T]) PostProperty(ctx context.Context, key, path string, value any, opts ...WriteOption) (string, error) {
	child := keygen.Next()
	p := strings.TrimSuffix(path, "/") + "/" + child
	if err := db.writeProperty(ctx, key, p, value, models.SyncPut, opts); err != nil {
		return "", err
	}
	return child, nil
}

// DeleteProperty removes the value at path inside the element at key.
func (db *RealtimeDatabase[T]) DeleteProperty(ctx context.Context, key, path string, opts ...WriteOption) error {
	return db.writeProperty(ctx, key, path, nil, models.SyncPut, opts)
}

func (db *RealtimeDatabase[T]) writeProperty(
	ctx context.Context,
	key, path string,
	value any,
	state models.SyncState,
	opts []WriteOption,
) error {
	if err := db.checkKey(key); err != nil {
		return err
	}
	o := applyWriteOptions(opts)

	wire, err := cache.ResolvePath[T](path)
	if err != nil {
		return err
	}
	if wire == "/" {
		return fmt.Errorf("%w: empty property path", ErrInvalidKey)
	}

	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	local := string(body)
	if s, ok := value.(string); ok {
		local = s
	}

	db.emitMu.Lock()
	defer db.emitMu.Unlock()

	// PUT replaces the node remotely, so locally the node is cleared too.
	// Server values resolve remotely; the local copy keeps its value until
	// the resolved one comes back.
	var events []models.Event[T]
	_, serverValue := value.(models.ServerValue)
	if !serverValue {
		c := db.newCache(db.nestedTree(ctx))
		if state == models.SyncPut && value != nil {
			events, err = c.ReplaceData("/"+key+wire, local)
		} else {
			events, err = c.PushData("/"+key+wire, local)
		}
		if err != nil {
			return fmt.Errorf("write %q at %q: %w", key, wire, err)
		}
	}

	if o.sync {
		if state == models.SyncPut {
			if err = db.dropPartialsLocked(ctx, key+wire); err != nil {
				return fmt.Errorf("write %q at %q: %w", key, wire, err)
			}
		}
		partial := models.NewEntry(key+wire, string(body), o.priority, state)
		partial.IsPartial = true
		if err = db.store.Set(ctx, partial); err != nil {
			return fmt.Errorf("write %q at %q: %w", key, wire, err)
		}
	}

	db.publishLocked(events...)
	return nil
}

// dropPartialsLocked forgets pending property writes at or below paths. The
// write that replaced those nodes already carries their values.
func (db *RealtimeDatabase[T]) dropPartialsLocked(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	entries, err := db.store.All(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.IsPartial || !slices.ContainsFunc(paths, func(p string) bool { return isAtOrBelow(e.Key, p) }) {
			continue
		}
		if err = db.store.Delete(ctx, e.Key); err != nil {
			return err
		}
	}
	return nil
}

func isAtOrBelow(key, path string) bool {
	return key == path || strings.HasPrefix(key, path+"/")
}

func (db *RealtimeDatabase[T]) checkKey(key string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	if strings.Trim(key, "/") == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "/") {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidKey, key)
	}
	return nil
}

// markPull flags key for refetch by the next reconciliation pass.
func (db *RealtimeDatabase[T]) markPull(ctx context.Context, key string, o writeOptions) error {
	return db.store.Modify(ctx, key, func(current *models.Entry) (*models.Entry, error) {
		if current == nil {
			e := models.NewEntry(key, "", o.priority, models.SyncPull)
			return &e, nil
		}
		if current.SyncState == models.SyncPull && (o.priority == 0 || o.priority == current.Priority) {
			return nil, store.ErrSkipModify
		}
		next := *current
		next.SyncState = models.SyncPull
		if o.priority != 0 {
			next.Priority = o.priority
		}
		return &next, nil
	})
}
