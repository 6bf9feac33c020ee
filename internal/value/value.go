// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package value implements the tagged scalar/collection union that every
// Record field holds, and the string->Value coercion rules driven by a
// declared target type (protocol fields, config literals).
package value

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/symbol"
)

// Kind discriminates the Value union.
type Kind uint8

const (
	Null Kind = iota
	StringKind
	IntKind
	FloatKind
	BoolKind
	DateTimeKind
	ArrayKind
	MapKind
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case StringKind:
		return "string"
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case BoolKind:
		return "bool"
	case DateTimeKind:
		return "datetime"
	case ArrayKind:
		return "array"
	case MapKind:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged scalar/collection union. The zero Value is Null.
//
// Array and Map payloads are reference types (Go slices and a pointer to
// Map respectively), so copying a Value is always cheap: scalars copy by
// value, collections alias their backing storage exactly like the spec's
// "deep copies are cheap for scalars and shallow for arrays/maps" note.
type Value struct {
	kind Kind

	str  symbol.Symbol
	i    int64
	f    float64
	b    bool
	dt   time.Time

	unit    symbol.Symbol
	hasUnit bool

	arr []Value
	mp  *Map
}

// NewNull returns the Null value.
func NewNull() Value { return Value{kind: Null} }

// NewString interns s and returns a String value.
func NewString(s string) Value { return Value{kind: StringKind, str: symbol.Intern(s)} }

// NewSymbol wraps an already-interned symbol as a String value.
func NewSymbol(s symbol.Symbol) Value { return Value{kind: StringKind, str: s} }

// NewInt returns an Int value with no unit.
func NewInt(i int64) Value { return Value{kind: IntKind, i: i} }

// NewIntUnit returns an Int value carrying a unit symbol (e.g. "ms").
func NewIntUnit(i int64, unit string) Value {
	return Value{kind: IntKind, i: i, unit: symbol.Intern(unit), hasUnit: true}
}

// NewFloat returns a Float value with no unit.
func NewFloat(f float64) Value { return Value{kind: FloatKind, f: f} }

// NewFloatUnit returns a Float value carrying a unit symbol.
func NewFloatUnit(f float64, unit string) Value {
	return Value{kind: FloatKind, f: f, unit: symbol.Intern(unit), hasUnit: true}
}

// NewBool returns a Bool value.
func NewBool(b bool) Value { return Value{kind: BoolKind, b: b} }

// NewDateTime returns a DateTime value, normalized to UTC.
func NewDateTime(t time.Time) Value { return Value{kind: DateTimeKind, dt: t.UTC()} }

// NewArray returns an Array value. The slice is referenced, not copied.
func NewArray(vs []Value) Value { return Value{kind: ArrayKind, arr: vs} }

// NewMap returns a Map value wrapping m.
func NewMap(m *Map) Value { return Value{kind: MapKind, mp: m} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

func (v Value) AsString() (string, bool) {
	if v.kind != StringKind {
		return "", false
	}
	return v.str.Resolve(), true
}

func (v Value) AsSymbol() (symbol.Symbol, bool) {
	if v.kind != StringKind {
		return symbol.Symbol{}, false
	}
	return v.str, true
}

func (v Value) AsInt() (int64, bool) {
	if v.kind != IntKind {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case FloatKind:
		return v.f, true
	case IntKind:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != BoolKind {
		return false, false
	}
	return v.b, true
}

func (v Value) AsDateTime() (time.Time, bool) {
	if v.kind != DateTimeKind {
		return time.Time{}, false
	}
	return v.dt, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != ArrayKind {
		return nil, false
	}
	return v.arr, true
}

func (v Value) AsMap() (*Map, bool) {
	if v.kind != MapKind {
		return nil, false
	}
	return v.mp, true
}

// Unit returns the attached numeric unit symbol, if any.
func (v Value) Unit() (string, bool) {
	if !v.hasUnit {
		return "", false
	}
	return v.unit.Resolve(), true
}

// Stringify renders v as a display string, used e.g. by the annotate pipe
// to turn a control-record label value into a stored label string.
func (v Value) Stringify() string {
	switch v.kind {
	case Null:
		return ""
	case StringKind:
		return v.str.Resolve()
	case IntKind:
		if v.hasUnit {
			return strconv.FormatInt(v.i, 10) + " " + v.unit.Resolve()
		}
		return strconv.FormatInt(v.i, 10)
	case FloatKind:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if v.hasUnit {
			return s + " " + v.unit.Resolve()
		}
		return s
	case BoolKind:
		return strconv.FormatBool(v.b)
	case DateTimeKind:
		return v.dt.Format(time.RFC3339Nano)
	case ArrayKind:
		return fmt.Sprintf("%v", v.arr)
	case MapKind:
		return v.mp.String()
	default:
		return ""
	}
}

// Equal reports whether two values are structurally identical. Used by Map
// for key lookups and by tests.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case StringKind:
		return a.str == b.str
	case IntKind:
		return a.i == b.i
	case FloatKind:
		return a.f == b.f
	case BoolKind:
		return a.b == b.b
	case DateTimeKind:
		return a.dt.Equal(b.dt)
	case ArrayKind:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case MapKind:
		return a.mp.Equal(b.mp)
	default:
		return false
	}
}
