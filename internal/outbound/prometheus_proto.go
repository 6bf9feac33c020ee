// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package outbound

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Label, Sample, TimeSeries mirror the Prometheus remote-write v0.1.0
// wire message shapes exactly (Label{name=1,value=2},
// Sample{value=1,timestamp=2}, TimeSeries{labels=1,samples=2},
// WriteRequest{timeseries=1}). They are encoded by hand with
// protowire's low-level varint/wire-type primitives rather than
// protoc-generated code, since no .proto compile step runs here; the
// bytes produced are identical to what generated code would emit.
type Label struct {
	Name  string
	Value string
}

// Sample is one Prometheus sample: a float64 value at a millisecond
// timestamp.
type Sample struct {
	Value           float64
	TimestampMillis int64
}

// TimeSeries is a sorted label set plus its sample list.
type TimeSeries struct {
	Labels  []Label
	Samples []Sample
}

func marshalLabel(name, value string) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, name)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, value)
	return b
}

func marshalSample(s Sample) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(s.Value))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.TimestampMillis))
	return b
}

func marshalTimeSeries(ts *TimeSeries) []byte {
	var b []byte
	for _, l := range ts.Labels {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalLabel(l.Name, l.Value))
	}
	for _, s := range ts.Samples {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalSample(s))
	}
	return b
}

// marshalWriteRequest encodes a WriteRequest containing series, field 1
// repeated.
func marshalWriteRequest(series []*TimeSeries) []byte {
	var b []byte
	for _, ts := range series {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalTimeSeries(ts))
	}
	return b
}
