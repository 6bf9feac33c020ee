// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

// GraphiteConfig configures a GraphiteProtocol. Attributes maps a
// trailing "key=value" attribute name to the type its value should be
// coerced to; an attribute absent from this map defaults to String.
type GraphiteConfig struct {
	Attributes map[string]value.DataType
}

// GraphiteProtocol parses Graphite plaintext lines:
// "<metric> <value> <timestamp> [k=v ...]".
type GraphiteProtocol struct {
	reader     *lineScanner
	attributes map[string]value.DataType
}

// NewGraphiteProtocol builds a GraphiteProtocol reading from r.
func NewGraphiteProtocol(r io.Reader, cfg GraphiteConfig) *GraphiteProtocol {
	return &GraphiteProtocol{
		reader:     newLineScanner(r),
		attributes: cfg.Attributes,
	}
}

// ReadNext parses and returns the next Graphite plaintext line.
func (p *GraphiteProtocol) ReadNext() (*record.Record, error) {
	line, err := p.reader.readLine()
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, perr.ProtocolMismatch("expected '<metric> <value> <timestamp> [k=v ...]', got " + strconv.Quote(line))
	}

	name, valueStr, tsStr := fields[0], fields[1], fields[2]

	fv, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return nil, perr.ProtocolMismatch("invalid value " + strconv.Quote(valueStr))
	}

	ts, err := parseGraphiteTimestamp(tsStr)
	if err != nil {
		return nil, err
	}

	rec := record.New()
	rec.SetString("name", value.NewString(name))
	rec.SetString("value", value.NewFloat(fv))
	rec.SetString("timestamp", value.NewDateTime(ts))

	for _, kv := range fields[3:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, perr.ProtocolMismatch("malformed attribute " + strconv.Quote(kv))
		}

		dt := value.TypeString
		if declared, ok := p.attributes[k]; ok {
			dt = declared
		}
		parsed, err := value.Parse(v, dt)
		if err != nil {
			return nil, perr.ProtocolMismatch("attribute " + k + ": " + err.Error())
		}
		rec.SetString(k, parsed)
	}

	return rec, nil
}

// parseGraphiteTimestamp dispatches purely on digit count, independent
// of value.Parse's DateTime rule: Graphite additionally recognizes a
// 16-digit microsecond timestamp that the general value-parsing rule
// does not.
func parseGraphiteTimestamp(s string) (time.Time, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, perr.ProtocolMismatch("timestamp " + strconv.Quote(s) + " is not all digits")
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, perr.ProtocolMismatch("invalid timestamp " + strconv.Quote(s))
	}

	switch len(s) {
	case 10:
		return time.Unix(n, 0).UTC(), nil
	case 13:
		return time.UnixMilli(n).UTC(), nil
	case 16:
		return time.UnixMicro(n).UTC(), nil
	case 19:
		return time.Unix(0, n).UTC(), nil
	default:
		return time.Time{}, perr.ProtocolMismatch("timestamp digit count must be 10, 13, 16 or 19, got " + strconv.Itoa(len(s)))
	}
}
