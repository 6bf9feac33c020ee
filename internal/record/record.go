// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package record implements the Record that flows through the pipeline
// graph: a field map keyed by interned Symbol, a small closed attribute
// map for out-of-band metadata, and an attached tracing context.
package record

import (
	"github.com/ClusterCockpit/cc-dataplane/internal/symbol"
	"github.com/ClusterCockpit/cc-dataplane/internal/tracing"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

// Attribute is a small closed set of out-of-band metadata keys, kept
// separate from the ordinary field map so a pipe can never accidentally
// shadow one with a same-named data field.
type Attribute uint8

const (
	// Type records what a Record represents once a pipe has given it
	// a specific shape, e.g. "TimeseriesRecord" after the split pipe.
	Type Attribute = iota
)

func (a Attribute) String() string {
	switch a {
	case Type:
		return "type"
	default:
		return "unknown"
	}
}

// TimeseriesRecord is the Type attribute value every timeseries pipe
// (split, annotate) must set.
const TimeseriesRecord = "TimeseriesRecord"

// Record is one observation flowing through the pipeline graph: named
// fields, out-of-band attributes, and an optional tracing context.
type Record struct {
	values     map[symbol.Symbol]value.Value
	attributes map[Attribute]value.Value
	Tracing    *tracing.Context
}

// New returns an empty Record with a fresh root tracing context
// attached, so every Record, from the moment it's created, can be
// marked as it crosses stage boundaries.
func New() *Record {
	return &Record{
		values:     make(map[symbol.Symbol]value.Value),
		attributes: make(map[Attribute]value.Value),
		Tracing:    tracing.NewRoot(),
	}
}

// FromFields builds a Record from a plain string-keyed field map,
// interning each key.
func FromFields(fields map[string]value.Value) *Record {
	r := New()
	for k, v := range fields {
		r.Set(symbol.Intern(k), v)
	}
	return r
}

// Set stores value at the interned key.
func (r *Record) Set(key symbol.Symbol, v value.Value) {
	r.values[key] = v
}

// SetString interns key and stores value at it.
func (r *Record) SetString(key string, v value.Value) {
	r.Set(symbol.Intern(key), v)
}

// Get looks up key, returning (value, true) if present.
func (r *Record) Get(key symbol.Symbol) (value.Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// GetString looks up a field by its un-interned name.
func (r *Record) GetString(key string) (value.Value, bool) {
	return r.Get(symbol.Intern(key))
}

// Delete removes key from the field map, reporting whether it was present.
func (r *Record) Delete(key symbol.Symbol) bool {
	if _, ok := r.values[key]; !ok {
		return false
	}
	delete(r.values, key)
	return true
}

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.values) }

// Range calls f for every field. Iteration order is unspecified.
func (r *Record) Range(f func(key symbol.Symbol, v value.Value) bool) {
	for k, v := range r.values {
		if !f(k, v) {
			return
		}
	}
}

// SetAttribute sets key unconditionally, overwriting any existing value.
func (r *Record) SetAttribute(key Attribute, v value.Value) {
	r.attributes[key] = v
}

// SetAttributeIfAbsent sets key only if not already present, mirroring
// the upstream "first pipe to claim an attribute wins" convention.
func (r *Record) SetAttributeIfAbsent(key Attribute, v value.Value) {
	if _, ok := r.attributes[key]; !ok {
		r.attributes[key] = v
	}
}

// GetAttribute looks up an attribute.
func (r *Record) GetAttribute(key Attribute) (value.Value, bool) {
	v, ok := r.attributes[key]
	return v, ok
}

// IsType reports whether the Type attribute equals want.
func (r *Record) IsType(want string) bool {
	v, ok := r.GetAttribute(Type)
	if !ok {
		return false
	}
	s, ok := v.AsString()
	return ok && s == want
}

// Clone returns a shallow copy: the field and attribute maps are
// duplicated, but Value payloads (Array/Map) keep aliasing their
// backing storage as usual. The tracing context is shared, not forked;
// callers that need a fork should call tracing.Inherit explicitly and
// assign the result.
func (r *Record) Clone() *Record {
	out := &Record{
		values:     make(map[symbol.Symbol]value.Value, len(r.values)),
		attributes: make(map[Attribute]value.Value, len(r.attributes)),
		Tracing:    r.Tracing,
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	for k, v := range r.attributes {
		out.attributes[k] = v
	}
	return out
}
