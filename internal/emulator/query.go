package emulator

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	orderByKey      = "$key"
	orderByValue    = "$value"
	orderByPriority = "$priority"
)

// filter is the parsed set of query parameters of a request.
type filter struct {
	orderBy      string
	startAt      any
	endAt        any
	equalTo      any
	hasStart     bool
	hasEnd       bool
	hasEqual     bool
	limitToFirst int
	limitToLast  int
	shallow      bool
}

func parseFilter(values url.Values) (*filter, error) {
	f := &filter{}
	var err error

	if raw := values.Get("orderBy"); raw != "" {
		if err = json.Unmarshal([]byte(raw), &f.orderBy); err != nil {
			return nil, fmt.Errorf("%w: orderBy must be a JSON string", ErrInvalidQuery)
		}
		if f.orderBy == orderByPriority {
			return nil, fmt.Errorf("%w: ordering by priority is not supported", ErrInvalidQuery)
		}
	}

	bounds := []struct {
		name  string
		value *any
		set   *bool
	}{
		{"startAt", &f.startAt, &f.hasStart},
		{"endAt", &f.endAt, &f.hasEnd},
		{"equalTo", &f.equalTo, &f.hasEqual},
	}
	for _, b := range bounds {
		raw, ok := values[b.name]
		if !ok {
			continue
		}
		if err = json.Unmarshal([]byte(raw[0]), b.value); err != nil {
			return nil, fmt.Errorf("%w: %s must be JSON", ErrInvalidQuery, b.name)
		}
		*b.set = true
	}

	if f.limitToFirst, err = parseLimit(values, "limitToFirst"); err != nil {
		return nil, err
	}
	if f.limitToLast, err = parseLimit(values, "limitToLast"); err != nil {
		return nil, err
	}
	if (f.hasStart || f.hasEnd || f.hasEqual || f.limitToFirst > 0 || f.limitToLast > 0) && f.orderBy == "" {
		return nil, fmt.Errorf("%w: orderBy must be defined when other query parameters are defined", ErrInvalidQuery)
	}

	f.shallow = values.Get("shallow") == "true"
	return f, nil
}

func parseLimit(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidQuery, name)
	}
	return n, nil
}

func (f *filter) active() bool {
	return f.orderBy != ""
}

// apply filters the children of node. Scalars pass through.
func (f *filter) apply(node any) any {
	m, ok := node.(map[string]any)
	if !ok {
		if arr, ok := node.([]any); ok && f.active() {
			m = make(map[string]any, len(arr))
			for i, item := range arr {
				m[strconv.Itoa(i)] = item
			}
		} else {
			return f.shallowed(node)
		}
	}

	if f.active() {
		keys := make([]string, 0, len(m))
		for k, v := range m {
			if f.matches(k, v) {
				keys = append(keys, k)
			}
		}
		slices.SortFunc(keys, func(a, b string) int {
			return f.compareChildren(a, m[a], b, m[b])
		})
		if f.limitToFirst > 0 && len(keys) > f.limitToFirst {
			keys = keys[:f.limitToFirst]
		}
		if f.limitToLast > 0 && len(keys) > f.limitToLast {
			keys = keys[len(keys)-f.limitToLast:]
		}

		filtered := make(map[string]any, len(keys))
		for _, k := range keys {
			filtered[k] = m[k]
		}
		m = filtered
	}
	return f.shallowed(m)
}

func (f *filter) shallowed(node any) any {
	m, ok := node.(map[string]any)
	if !f.shallow || !ok {
		return node
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch v.(type) {
		case map[string]any, []any:
			out[k] = true
		default:
			out[k] = v
		}
	}
	return out
}

// matches reports whether the child key with value v is inside the bounds.
func (f *filter) matches(key string, v any) bool {
	if !f.active() {
		return true
	}
	ordered := f.orderValue(key, v)
	if f.orderBy != orderByKey && ordered == nil && (f.hasStart || f.hasEnd || f.hasEqual) {
		return false
	}
	if f.hasEqual && compareValues(ordered, f.equalTo) != 0 {
		return false
	}
	if f.hasStart && compareValues(ordered, f.startAt) < 0 {
		return false
	}
	if f.hasEnd && compareValues(ordered, f.endAt) > 0 {
		return false
	}
	return true
}

func (f *filter) orderValue(key string, v any) any {
	switch f.orderBy {
	case orderByKey:
		return key
	case orderByValue:
		return v
	default:
		return lookup(v, split(f.orderBy))
	}
}

func (f *filter) compareChildren(ka string, va any, kb string, vb any) int {
	if c := compareValues(f.orderValue(ka, va), f.orderValue(kb, vb)); c != 0 {
		return c
	}
	return strings.Compare(ka, kb)
}

// filterChange drops the parts of c outside the bounds of f. It reports
// false when nothing is left.
func (f *filter) filterChange(c Change, snapshot func(key string) any) (Change, bool) {
	if !f.active() {
		return c, true
	}

	segs := split(c.Path)
	if len(segs) > 0 {
		return c, f.matches(segs[0], snapshot(segs[0]))
	}

	m, ok := c.Data.(map[string]any)
	if !ok {
		if c.Event == "put" {
			c.Data = nil
		}
		return c, true
	}
	kept := make(map[string]any, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if f.matches(k, snapshot(k)) || (c.Event == "patch" && m[k] == nil) {
			kept[k] = m[k]
		}
	}
	if len(kept) == 0 && c.Event == "patch" {
		return c, false
	}
	c.Data = kept
	return c, true
}

// compareValues orders JSON values: null, false, true, numbers, strings,
// objects.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return strings.Compare(x, b.(string))
	}
	return 0
}

func rank(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 2
		}
		return 1
	case float64:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}
