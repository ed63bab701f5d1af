// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package cache

import (
	"reflect"
	"strings"
	"sync"
)

type field struct {
	index []int
	name  string
	wire  string
}

type structSchema struct {
	byWire map[string]*field
	byFold map[string]*field
}

var schemas sync.Map // reflect.Type -> *structSchema

// schemaOf returns the field table of a struct type, building it on first use.
func schemaOf(t reflect.Type) *structSchema {
	if s, ok := schemas.Load(t); ok {
		return s.(*structSchema)
	}
	s := &structSchema{
		byWire: make(map[string]*field),
		byFold: make(map[string]*field),
	}
	collectFields(t, nil, s)
	actual, _ := schemas.LoadOrStore(t, s)
	return actual.(*structSchema)
}

func collectFields(t reflect.Type, parent []int, s *structSchema) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		wire, _, _ := strings.Cut(tag, ",")

		index := make([]int, len(parent)+1)
		copy(index, parent)
		index[len(parent)] = i

		// promoted fields of embedded structs
		if sf.Anonymous && wire == "" && sf.Type.Kind() == reflect.Struct {
			collectFields(sf.Type, index, s)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if wire == "" {
			wire = sf.Name
		}

		f := &field{index: index, name: sf.Name, wire: wire}
		if _, dup := s.byWire[wire]; !dup {
			s.byWire[wire] = f
		}
		for _, alias := range []string{strings.ToLower(wire), strings.ToLower(sf.Name)} {
			if _, dup := s.byFold[alias]; !dup {
				s.byFold[alias] = f
			}
		}
	}
}

func (s *structSchema) lookup(segment string) (*field, bool) {
	if f, ok := s.byWire[segment]; ok {
		return f, true
	}
	f, ok := s.byFold[strings.ToLower(segment)]
	return f, ok
}
