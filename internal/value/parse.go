// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/pkg/units"
)

// DataType names the target type string->Value coercion is driven by.
type DataType uint8

const (
	TypeString DataType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeDateTime
)

func (t DataType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeDateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// ParseDataType maps a config-declared type name to a DataType.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "string":
		return TypeString, nil
	case "int":
		return TypeInt, nil
	case "float":
		return TypeFloat, nil
	case "bool":
		return TypeBool, nil
	case "datetime":
		return TypeDateTime, nil
	default:
		return 0, fmt.Errorf("unknown value type %q", s)
	}
}

var trueWords = map[string]bool{
	"true": true, "t": true, "yes": true, "y": true, "on": true, "active": true, "1": true,
}

var falseWords = map[string]bool{
	"false": true, "f": true, "no": true, "n": true, "off": true, "inactive": true,
	"not active": true, "0": true,
}

// dateTimeLayouts are the fixed slash/dash-delimited formats tried after
// RFC 3339 and RFC 2822, per spec order.
var dateTimeLayouts = []string{
	"2006/01/02 15:04:05.999999999 -07:00",
	"2006/01/02 15:04:05.999999999",
	"2006/01/02 15:04:05 -07:00",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05.999999999 -07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
}

// Parse coerces s to a Value of the declared type t. An empty s always
// yields Null regardless of t.
func Parse(s string, t DataType) (Value, error) {
	if s == "" {
		return NewNull(), nil
	}

	switch t {
	case TypeString:
		return NewString(s), nil
	case TypeInt:
		return parseNumericInt(s)
	case TypeFloat:
		return parseNumericFloat(s)
	case TypeBool:
		return parseBool(s)
	case TypeDateTime:
		return parseDateTime(s)
	default:
		return Value{}, fmt.Errorf("unsupported value type %v", t)
	}
}

func splitNumber(s string) (number string, unit string, err error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return fields[0], "", nil
	case 2:
		return fields[0], fields[1], nil
	default:
		return "", "", fmt.Errorf("expected '<number>' or '<number> <unit>', got %q", s)
	}
}

func parseNumericInt(s string) (Value, error) {
	numStr, unit, err := splitNumber(s)
	if err != nil {
		return Value{}, err
	}
	i, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return Value{}, fmt.Errorf("invalid int %q: %w", s, err)
	}
	if unit == "" {
		return NewInt(i), nil
	}
	return NewIntUnit(i, units.Canonicalize(unit)), nil
}

func parseNumericFloat(s string) (Value, error) {
	numStr, unit, err := splitNumber(s)
	if err != nil {
		return Value{}, err
	}
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return Value{}, fmt.Errorf("invalid float %q: %w", s, err)
	}
	if unit == "" {
		return NewFloat(f), nil
	}
	return NewFloatUnit(f, units.Canonicalize(unit)), nil
}

func parseBool(s string) (Value, error) {
	lower := strings.ToLower(s)
	if trueWords[lower] {
		return NewBool(true), nil
	}
	if falseWords[lower] {
		return NewBool(false), nil
	}
	return Value{}, fmt.Errorf("invalid bool %q", s)
}

func parseDateTime(s string) (Value, error) {
	if allDigits(s) {
		switch len(s) {
		case 10:
			sec, _ := strconv.ParseInt(s, 10, 64)
			return NewDateTime(time.Unix(sec, 0)), nil
		case 13:
			ms, _ := strconv.ParseInt(s, 10, 64)
			return NewDateTime(time.UnixMilli(ms)), nil
		case 19:
			ns, _ := strconv.ParseInt(s, 10, 64)
			return NewDateTime(time.Unix(0, ns)), nil
		default:
			return Value{}, fmt.Errorf("invalid datetime digit count %d in %q (want 10, 13 or 19)", len(s), s)
		}
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewDateTime(t), nil
	}
	if t, err := time.Parse(time.RFC1123Z, s); err == nil {
		return NewDateTime(t), nil
	}
	if t, err := time.Parse(time.RFC1123, s); err == nil {
		return NewDateTime(t), nil
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDateTime(t), nil
		}
	}

	return Value{}, fmt.Errorf("could not parse %q as datetime", s)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
