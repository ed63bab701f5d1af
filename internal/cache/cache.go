// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cache

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/MKhiriev/go-firesync/models"
)

// Cache merges path-addressed fragments into the elements of a Tree.
// PushData calls are serialized.
type Cache[T any] struct {
	mu     sync.Mutex
	tree   Tree[T]
	typ    reflect.Type
	isDict bool
}

// New returns a Cache over an empty MapTree.
func New[T any]() *Cache[T] {
	return NewWithTree[T](NewMapTree[T]())
}

// NewWithTree returns a Cache that stores top-level elements in tree.
func NewWithTree[T any](tree Tree[T]) *Cache[T] {
	typ := reflect.TypeFor[T]()
	return &Cache[T]{
		tree:   tree,
		typ:    typ,
		isDict: typ.Kind() == reflect.Map,
	}
}

// Tree returns the storage of top-level elements.
func (c *Cache[T]) Tree() Tree[T] {
	return c.tree
}

// PushData applies data at path and returns the changed top-level elements.
// Objects are merged: fields and keys the fragment does not mention are kept.
//
// Empty or "null" data deletes the addressed node. Deleting a top-level
// element yields a Delete event carrying its last value; deleting a nested
// node yields an InsertOrUpdate event for its top-level ancestor. Deleting
// the root removes every element. Returned events have SourceOffline;
// callers set the source that fits them.
func (c *Cache[T]) PushData(path, data string) ([]models.Event[T], error) {
	return c.push(path, data, false)
}

// ReplaceData applies data at path like PushData, but the addressed node is
// cleared first, so fields and keys absent from data are dropped.
func (c *Cache[T]) ReplaceData(path, data string) ([]models.Event[T], error) {
	return c.push(path, data, true)
}

func (c *Cache[T]) push(path, data string, replace bool) ([]models.Event[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	segs := splitPath(path)
	remove := models.IsNullData(data)

	if len(segs) == 0 {
		if remove {
			return c.removeAll()
		}
		return c.pushRoot(data)
	}

	key := segs[0]
	current, found, err := c.tree.Load(key)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", key, err)
	}

	if remove {
		if !found {
			return nil, nil
		}
		if len(segs) == 1 {
			prev, ok, err := c.tree.Remove(key)
			if err != nil {
				return nil, fmt.Errorf("remove %q: %w", key, err)
			}
			if !ok {
				return nil, nil
			}
			return []models.Event[T]{{Key: key, Object: prev, Kind: models.Delete}}, nil
		}
	}

	root := reflect.New(c.typ).Elem()
	if found && !(replace && len(segs) == 1) {
		root.Set(cloneValue(reflect.ValueOf(&current).Elem()))
	}

	m := &mutation{remove: remove, replace: replace, data: data, dictMerge: !c.isDict}
	if len(segs) == 1 {
		err = m.assign(root)
	} else {
		err = walk(root, segs[1:], m)
	}
	if err != nil {
		return nil, fmt.Errorf("apply %q: %w", path, err)
	}

	value := *(root.Addr().Interface().(*T))
	ok, err := c.tree.Store(key, value)
	if err != nil {
		return nil, fmt.Errorf("store %q: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return []models.Event[T]{{Key: key, Object: value, Kind: models.InsertOrUpdate}}, nil
}

// removeAll removes every element the tree lets go of.
func (c *Cache[T]) removeAll() ([]models.Event[T], error) {
	keys, err := c.tree.Keys()
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}

	var events []models.Event[T]
	for _, key := range slices.Sorted(slices.Values(keys)) {
		prev, ok, err := c.tree.Remove(key)
		if err != nil {
			return events, fmt.Errorf("remove %q: %w", key, err)
		}
		if ok {
			events = append(events, models.Event[T]{Key: key, Object: prev, Kind: models.Delete})
		}
	}
	return events, nil
}

// pushRoot replaces every element present in data. Elements absent from
// data are kept.
func (c *Cache[T]) pushRoot(data string) ([]models.Event[T], error) {
	var children map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &children); err != nil {
		return nil, fmt.Errorf("%w: root data is not an object: %w", ErrInvalidPayload, err)
	}

	var events []models.Event[T]
	for _, key := range slices.Sorted(maps.Keys(children)) {
		raw := string(children[key])
		if models.IsNullData(raw) {
			prev, ok, err := c.tree.Remove(key)
			if err != nil {
				return events, fmt.Errorf("remove %q: %w", key, err)
			}
			if ok {
				events = append(events, models.Event[T]{Key: key, Object: prev, Kind: models.Delete})
			}
			continue
		}

		var value T
		if err := json.Unmarshal(children[key], &value); err != nil {
			return events, fmt.Errorf("%w: decode %q: %w", ErrInvalidPayload, key, err)
		}
		ok, err := c.tree.Store(key, value)
		if err != nil {
			return events, fmt.Errorf("store %q: %w", key, err)
		}
		if ok {
			events = append(events, models.Event[T]{Key: key, Object: value, Kind: models.InsertOrUpdate})
		}
	}
	return events, nil
}

type mutation struct {
	remove    bool
	replace   bool
	data      string
	dictMerge bool
}

// walk descends from the addressable value v along segs and applies m at
// the end. Map elements are copied out, modified and written back.
func walk(v reflect.Value, segs []string, m *mutation) error {
	if len(segs) == 0 {
		return m.assign(v)
	}
	seg := segs[0]
	last := len(segs) == 1

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			if m.remove {
				return nil
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		return walk(v.Elem(), segs, m)

	case reflect.Interface:
		if v.IsNil() {
			if m.remove {
				return nil
			}
			v.Set(reflect.ValueOf(map[string]any{}))
		}
		inner := reflect.New(v.Elem().Type()).Elem()
		inner.Set(v.Elem())
		if err := walk(inner, segs, m); err != nil {
			return err
		}
		v.Set(inner)
		return nil

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: %s has non-string keys", ErrNotContainer, v.Type())
		}
		k := reflect.ValueOf(seg).Convert(v.Type().Key())
		existing := v.MapIndex(k)
		if m.remove {
			if !existing.IsValid() {
				return nil
			}
			if last {
				v.SetMapIndex(k, reflect.Value{})
				return nil
			}
		}
		if v.IsNil() {
			v.Set(reflect.MakeMap(v.Type()))
		}
		elem := reflect.New(v.Type().Elem()).Elem()
		if existing.IsValid() {
			elem.Set(existing)
		}
		if err := walk(elem, segs[1:], m); err != nil {
			return err
		}
		v.SetMapIndex(k, elem)
		return nil

	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidIndex, seg)
		}
		if idx >= v.Len() {
			if m.remove {
				return nil
			}
			if v.Kind() == reflect.Array {
				return fmt.Errorf("%w: %d out of range for %s", ErrInvalidIndex, idx, v.Type())
			}
			grown := reflect.MakeSlice(v.Type(), idx+1, idx+1)
			reflect.Copy(grown, v)
			v.Set(grown)
		}
		if m.remove && last {
			v.Index(idx).SetZero()
			return nil
		}
		return walk(v.Index(idx), segs[1:], m)

	case reflect.Struct:
		f, ok := schemaOf(v.Type()).lookup(seg)
		if !ok {
			return fmt.Errorf("%w: %q in %s", ErrUnknownField, seg, v.Type())
		}
		fv := v.FieldByIndex(f.index)
		if m.remove && last {
			fv.SetZero()
			return nil
		}
		return walk(fv, segs[1:], m)

	default:
		return fmt.Errorf("%w: cannot descend into %s at %q", ErrNotContainer, v.Type(), seg)
	}
}

// assign writes m.data into the addressable value v.
func (m *mutation) assign(v reflect.Value) error {
	if m.remove {
		v.SetZero()
		return nil
	}
	if m.replace {
		v.SetZero()
	}

	switch {
	case v.Kind() == reflect.Map && m.dictMerge:
		return m.mergeDictionary(v)
	case v.Kind() == reflect.String:
		v.SetString(m.data)
		return nil
	case v.Kind() == reflect.Interface && v.NumMethod() == 0:
		var decoded any
		if err := json.Unmarshal([]byte(m.data), &decoded); err != nil {
			decoded = m.data
		}
		if decoded == nil {
			v.SetZero()
			return nil
		}
		v.Set(reflect.ValueOf(decoded))
		return nil
	default:
		return decodeInto(v, m.data)
	}
}

// mergeDictionary decodes data as a map of v's element type and stores every
// pair into v, keeping keys absent from data.
func (m *mutation) mergeDictionary(v reflect.Value) error {
	incoming := reflect.New(v.Type())
	if err := decodeInto(incoming.Elem(), m.data); err != nil {
		return err
	}
	if v.IsNil() {
		v.Set(reflect.MakeMap(v.Type()))
	}
	iter := incoming.Elem().MapRange()
	for iter.Next() {
		v.SetMapIndex(iter.Key(), iter.Value())
	}
	return nil
}

// decodeInto unmarshals data onto the existing value, so objects keep
// fields the fragment does not mention. Bare scalars that are not valid JSON
// (timestamps, text-encoded values) are retried as JSON strings.
func decodeInto(v reflect.Value, data string) error {
	raw := []byte(data)
	if !json.Valid(raw) {
		raw = []byte(strconv.Quote(data))
	}
	if err := json.Unmarshal(raw, v.Addr().Interface()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, v.Type(), err)
	}
	return nil
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}
