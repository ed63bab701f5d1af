package emulator

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-firesync/internal/keygen"
)

const watcherBufferSize = 256

// Change is a mutation of the tree as seen by one watcher. Path is relative
// to the watched node.
type Change struct {
	Event string
	Path  string
	Data  any
}

type watcher struct {
	path []string
	ch   chan Change
}

// Tree is an in-memory JSON document. Values are nil, bool, float64, string
// or map[string]any; arrays are stored as maps keyed by index.
type Tree struct {
	mu       sync.RWMutex
	root     any
	watchers map[*watcher]struct{}
	now      func() time.Time
}

func NewTree() *Tree {
	return &Tree{
		watchers: make(map[*watcher]struct{}),
		now:      time.Now,
	}
}

// Get returns a copy of the value at path, or nil.
func (t *Tree) Get(path string) any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return denormalize(lookup(t.root, split(path)))
}

// Set replaces the value at path. A nil value deletes it.
func (t *Tree) Set(path string, value any) any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setLocked(split(path), value)
}

// SetIf replaces the value at path only when match accepts the current
// value. It returns the stored value, or the current one when match
// declined.
func (t *Tree) SetIf(path string, value any, match func(current any) bool) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	segs := split(path)
	if current := denormalize(lookup(t.root, segs)); !match(current) {
		return current, false
	}
	return t.setLocked(segs, value), true
}

func (t *Tree) setLocked(segs []string, value any) any {
	value = resolveServerValues(normalize(value), lookup(t.root, segs), t.now())
	t.root = assign(t.root, segs, value)
	t.notifyLocked(segs, "put", value)
	return denormalize(value)
}

// Update merges the children of value into the node at path. Nil children
// are deleted.
func (t *Tree) Update(path string, value map[string]any) map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	segs := split(path)
	resolved := make(map[string]any, len(value))
	for _, key := range slices.Sorted(maps.Keys(value)) {
		childSegs := append(slices.Clone(segs), split(key)...)
		v := resolveServerValues(normalize(value[key]), lookup(t.root, childSegs), t.now())
		t.root = assign(t.root, childSegs, v)
		resolved[key] = v
	}
	t.notifyLocked(segs, "patch", resolved)
	return resolved
}

// Delete removes the value at path.
func (t *Tree) Delete(path string) {
	t.Set(path, nil)
}

// Push stores value under a new push key below path and returns the key.
func (t *Tree) Push(path string, value any) string {
	key := keygen.Next()
	t.Set(strings.TrimSuffix(path, "/")+"/"+key, value)
	return key
}

// Watch streams the changes at or below path until cancel is called. The
// channel is closed by cancel, or when the watcher falls too far behind.
func (t *Tree) Watch(path string) (<-chan Change, func()) {
	w := &watcher{path: split(path), ch: make(chan Change, watcherBufferSize)}

	t.mu.Lock()
	t.watchers[w] = struct{}{}
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.watchers[w]; ok {
			delete(t.watchers, w)
			close(w.ch)
		}
	}
	return w.ch, cancel
}

func (t *Tree) notifyLocked(segs []string, event string, value any) {
	for w := range t.watchers {
		var c Change
		switch {
		case hasPrefix(segs, w.path):
			c = Change{Event: event, Path: join(segs[len(w.path):]), Data: denormalize(value)}
		case hasPrefix(w.path, segs):
			c = Change{Event: "put", Path: "/", Data: denormalize(lookup(t.root, w.path))}
		default:
			continue
		}

		select {
		case w.ch <- c:
		default:
			delete(t.watchers, w)
			close(w.ch)
		}
	}
}

// ── node helpers ────────────────────────────────────────────────────────────

func split(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func join(segs []string) string {
	return "/" + strings.Join(segs, "/")
}

func hasPrefix(segs, prefix []string) bool {
	return len(segs) >= len(prefix) && slices.Equal(segs[:len(prefix)], prefix)
}

func lookup(node any, segs []string) any {
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[s]
	}
	return node
}

// assign returns node with value stored at segs. Empty objects are pruned.
func assign(node any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}

	m, ok := node.(map[string]any)
	if !ok {
		if value == nil {
			return node
		}
		m = make(map[string]any)
	} else {
		m = maps.Clone(m)
	}

	child := assign(m[segs[0]], segs[1:], value)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}

	if len(m) == 0 {
		return nil
	}
	return m
}

// normalize turns arrays into index-keyed objects and drops empty objects.
func normalize(v any) any {
	switch x := v.(type) {
	case []any:
		m := make(map[string]any, len(x))
		for i, item := range x {
			if n := normalize(item); n != nil {
				m[strconv.Itoa(i)] = n
			}
		}
		if len(m) == 0 {
			return nil
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, item := range x {
			if n := normalize(item); n != nil {
				m[k] = n
			}
		}
		if len(m) == 0 {
			return nil
		}
		return m
	default:
		return v
	}
}

// denormalize renders index-keyed objects as arrays again.
func denormalize(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	out := make(map[string]any, len(m))
	isArray := true
	for k, item := range m {
		out[k] = denormalize(item)
		if i, err := strconv.Atoi(k); err != nil || i < 0 || i >= len(m) || strconv.Itoa(i) != k {
			isArray = false
		}
	}
	if !isArray {
		return out
	}

	arr := make([]any, len(out))
	for k, item := range out {
		i, _ := strconv.Atoi(k)
		arr[i] = item
	}
	return arr
}

// resolveServerValues replaces {".sv": ...} placeholders inside v.
func resolveServerValues(v, current any, now time.Time) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	if sv, ok := m[".sv"]; ok && len(m) == 1 {
		switch x := sv.(type) {
		case string:
			if x == "timestamp" {
				return float64(now.UnixMilli())
			}
		case map[string]any:
			if delta, ok := x["increment"].(float64); ok {
				base, _ := current.(float64)
				return base + delta
			}
		}
		return nil
	}

	out := make(map[string]any, len(m))
	cur, _ := current.(map[string]any)
	for k, item := range m {
		out[k] = resolveServerValues(item, cur[k], now)
	}
	return out
}
