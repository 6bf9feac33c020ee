// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"io"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

// InfluxConfig configures an InfluxProtocol.
type InfluxConfig struct {
	// Precision is the unit line-protocol timestamps are encoded in;
	// defaults to nanoseconds. A line that omits its timestamp is
	// stamped with the current time.
	Precision lineprotocol.Precision
}

// InfluxProtocol parses Influx line protocol
// ("measurement,tag=v field=v timestamp"), one line at a time, the
// format NATS-fed metrics from an InfluxDB-compatible agent arrive in.
// Fields become Record values of their native InfluxDB type
// (Float/Int/Uint-as-Int/Bool/String); tags become String fields.
//
// A fresh lineprotocol.Decoder is built per line via NewDecoderWithBytes,
// mirroring how the NATS ingestion path in this codebase's metric store
// decodes one already-buffered message at a time.
type InfluxProtocol struct {
	lines     *lineScanner
	precision lineprotocol.Precision
}

// NewInfluxProtocol builds an InfluxProtocol reading from r.
func NewInfluxProtocol(r io.Reader, cfg InfluxConfig) *InfluxProtocol {
	precision := cfg.Precision
	if precision == 0 {
		precision = lineprotocol.Nanosecond
	}
	return &InfluxProtocol{
		lines:     newLineScanner(r),
		precision: precision,
	}
}

// ReadNext parses and returns the next line-protocol point.
func (p *InfluxProtocol) ReadNext() (*record.Record, error) {
	line, err := p.lines.readLine()
	if err != nil {
		return nil, err
	}

	dec := lineprotocol.NewDecoderWithBytes([]byte(line))
	if !dec.Next() {
		if err := dec.Err(); err != nil {
			return nil, perr.ProtocolMismatch(err.Error())
		}
		return nil, perr.ProtocolMismatch("empty line-protocol line")
	}

	measurement, err := dec.Measurement()
	if err != nil {
		return nil, perr.ProtocolMismatch(err.Error())
	}

	rec := record.New()
	rec.SetString("name", value.NewString(string(measurement)))

	for {
		key, val, err := dec.NextTag()
		if err != nil {
			return nil, perr.ProtocolMismatch(err.Error())
		}
		if key == nil {
			break
		}
		rec.SetString(string(key), value.NewString(string(val)))
	}

	for {
		key, val, err := dec.NextField()
		if err != nil {
			return nil, perr.ProtocolMismatch(err.Error())
		}
		if key == nil {
			break
		}
		converted, err := influxValueToValue(val)
		if err != nil {
			return nil, perr.ProtocolMismatch(err.Error())
		}
		rec.SetString(string(key), converted)
	}

	ts, err := dec.Time(p.precision, time.Now().UTC())
	if err != nil {
		return nil, perr.ProtocolMismatch(err.Error())
	}
	rec.SetString("timestamp", value.NewDateTime(ts))

	return rec, nil
}

func influxValueToValue(v lineprotocol.Value) (value.Value, error) {
	switch v.Kind() {
	case lineprotocol.Float:
		return value.NewFloat(v.FloatV()), nil
	case lineprotocol.Int:
		return value.NewInt(v.IntV()), nil
	case lineprotocol.Uint:
		return value.NewInt(int64(v.UintV())), nil
	case lineprotocol.Bool:
		return value.NewBool(v.BoolV()), nil
	case lineprotocol.String:
		return value.NewString(v.StringV()), nil
	default:
		return value.Value{}, errUnsupportedFieldKind(v.Kind())
	}
}

type unsupportedFieldKind struct{ kind lineprotocol.ValueKind }

func (e unsupportedFieldKind) Error() string {
	return "unsupported line-protocol field kind: " + e.kind.String()
}

func errUnsupportedFieldKind(k lineprotocol.ValueKind) error {
	return unsupportedFieldKind{kind: k}
}
