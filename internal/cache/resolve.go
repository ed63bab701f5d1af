// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cache

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ResolvePath translates a path inside a T, written with Go field names or
// json names in any case, into the path the remote store uses.
//
//	ResolvePath[Dinosaur]("/Dimensions/Height") == "/ds/height"
func ResolvePath[T any](path string) (string, error) {
	t := reflect.TypeFor[T]()
	segs := splitPath(path)
	out := make([]string, 0, len(segs))

	for i, seg := range segs {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		switch t.Kind() {
		case reflect.Struct:
			f, ok := schemaOf(t).lookup(seg)
			if !ok {
				return "", fmt.Errorf("%w: %q in %s", ErrUnknownField, seg, t)
			}
			out = append(out, f.wire)
			t = t.FieldByIndex(f.index).Type
		case reflect.Map:
			if t.Key().Kind() != reflect.String {
				return "", fmt.Errorf("%w: %s has non-string keys", ErrNotContainer, t)
			}
			out = append(out, seg)
			t = t.Elem()
		case reflect.Slice, reflect.Array:
			if idx, err := strconv.Atoi(seg); err != nil || idx < 0 {
				return "", fmt.Errorf("%w: %q", ErrInvalidIndex, seg)
			}
			out = append(out, seg)
			t = t.Elem()
		case reflect.Interface:
			out = append(out, segs[i:]...)
			return "/" + strings.Join(out, "/"), nil
		default:
			return "", fmt.Errorf("%w: cannot descend into %s at %q", ErrNotContainer, t, seg)
		}
	}
	return "/" + strings.Join(out, "/"), nil
}
