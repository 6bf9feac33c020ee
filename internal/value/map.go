// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package value

import (
	"sort"
	"strings"
)

// Map is an insertion-ordered mapping from Value to Value. In practice
// (timeseries labels, annotate control records) keys are always String
// values, so Map exposes both a string-keyed fast path and the general
// Value-keyed one required by the spec's Map variant. It is always held
// behind a pointer so copying the Value that wraps it is a pointer copy,
// matching the "shallow copy, shared payload" contract scalars don't need.
type Map struct {
	keys []Value
	vals []Value
}

// NewStringMap builds a Map from a string-keyed Go map, useful for extra
// static labels read straight out of config.
func NewStringMap(m map[string]Value) *Map {
	out := &Map{keys: make([]Value, 0, len(m)), vals: make([]Value, 0, len(m))}
	for k, v := range m {
		out.Set(NewString(k), v)
	}
	return out
}

func (m *Map) indexOf(key Value) int {
	for i, k := range m.keys {
		if Equal(k, key) {
			return i
		}
	}
	return -1
}

// Get looks up key, returning (value, true) if present.
func (m *Map) Get(key Value) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	if i := m.indexOf(key); i >= 0 {
		return m.vals[i], true
	}
	return Value{}, false
}

// GetString is the common case: look up a string key.
func (m *Map) GetString(key string) (Value, bool) {
	return m.Get(NewString(key))
}

// Set inserts or overwrites key -> val, preserving first-insertion order.
func (m *Map) Set(key, val Value) {
	if i := m.indexOf(key); i >= 0 {
		m.vals[i] = val
		return
	}
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
}

// SetString is the common case: set a string-keyed entry.
func (m *Map) SetString(key string, val Value) {
	m.Set(NewString(key), val)
}

// Remove deletes key if present, reporting whether it was found.
func (m *Map) Remove(key Value) bool {
	i := m.indexOf(key)
	if i < 0 {
		return false
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.vals = append(m.vals[:i], m.vals[i+1:]...)
	return true
}

// RemoveString deletes a string-keyed entry.
func (m *Map) RemoveString(key string) bool {
	return m.Remove(NewString(key))
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls f for every entry, in insertion order. Stops early if f
// returns false.
func (m *Map) Range(f func(key, val Value) bool) {
	if m == nil {
		return
	}
	for i := range m.keys {
		if !f(m.keys[i], m.vals[i]) {
			return
		}
	}
}

// Clone returns a shallow copy (new backing arrays, same Value contents).
func (m *Map) Clone() *Map {
	if m == nil {
		return &Map{}
	}
	out := &Map{
		keys: make([]Value, len(m.keys)),
		vals: make([]Value, len(m.vals)),
	}
	copy(out.keys, m.keys)
	copy(out.vals, m.vals)
	return out
}

// Equal reports whether two maps hold the same entries (order-insensitive).
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	match := true
	m.Range(func(k, v Value) bool {
		ov, ok := o.Get(k)
		if !ok || !Equal(v, ov) {
			match = false
			return false
		}
		return true
	})
	return match
}

// StringKeysSorted returns the map's keys (stringified) sorted ascending,
// used by the Prometheus outbound to build a sorted label list.
func (m *Map) StringKeysSorted() []string {
	out := make([]string, 0, m.Len())
	m.Range(func(k, _ Value) bool {
		out = append(out, k.Stringify())
		return true
	})
	sort.Strings(out)
	return out
}

func (m *Map) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	m.Range(func(k, v Value) bool {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(k.Stringify())
		b.WriteString(": ")
		b.WriteString(v.Stringify())
		return true
	})
	b.WriteByte('}')
	return b.String()
}
