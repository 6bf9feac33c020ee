// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipe

import (
	"context"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/actor"
	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/symbol"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/internal/tracing"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
	"github.com/ClusterCockpit/cc-dataplane/pkg/log"
)

// TimeseriesConfig configures the Timeseries split pipe.
type TimeseriesConfig struct {
	// Labels names the fields that become the label set of every
	// emitted Record.
	Labels []string

	// Values, if non-nil, restricts which non-label fields become
	// value Records. If nil, every field that is neither a label nor
	// the timestamp field is treated as a value.
	Values []string

	// Timestamp names the field to read the observation time from. If
	// empty, the current UTC instant is used instead.
	Timestamp string

	// ExtraLabels are static labels merged into every emitted Record's
	// label set, e.g. a fixed "source" or "site" label from config.
	ExtraLabels map[string]string

	// RecvTimeout bounds a single poll iteration. Defaults to
	// DefaultRecvTimeout.
	RecvTimeout time.Duration
}

// Timeseries is the split pipe: it takes one wide input Record and
// emits one narrow {name, labels, value, timestamp, metric_type} Record
// per value field, tagged with the TimeseriesRecord attribute.
type Timeseries struct {
	tg tag.Tag

	labelFields       []symbol.Symbol
	valueFields       []symbol.Symbol // nil means "every remaining field"
	timestampField    symbol.Symbol
	hasTimestampField bool
	extraLabels       map[string]string

	inbounds    []*dag.Subscriber
	outbound    *dag.Broadcast
	recvTimeout time.Duration
}

// NewTimeseries builds a Timeseries pipe identified by t, reading from
// inbounds and publishing to outbound.
func NewTimeseries(t tag.Tag, cfg TimeseriesConfig, inbounds []*dag.Subscriber, outbound *dag.Broadcast) *Timeseries {
	p := &Timeseries{
		tg:          t,
		extraLabels: cfg.ExtraLabels,
		inbounds:    inbounds,
		outbound:    outbound,
		recvTimeout: cfg.RecvTimeout,
	}
	for _, l := range cfg.Labels {
		p.labelFields = append(p.labelFields, symbol.Intern(l))
	}
	if cfg.Values != nil {
		p.valueFields = make([]symbol.Symbol, 0, len(cfg.Values))
		for _, v := range cfg.Values {
			p.valueFields = append(p.valueFields, symbol.Intern(v))
		}
	}
	if cfg.Timestamp != "" {
		p.timestampField = symbol.Intern(cfg.Timestamp)
		p.hasTimestampField = true
	}
	if p.recvTimeout <= 0 {
		p.recvTimeout = DefaultRecvTimeout
	}
	return p
}

// Tag implements actor.Stage.
func (p *Timeseries) Tag() tag.Tag { return p.tg }

// Poll implements actor.Stage.
func (p *Timeseries) Poll(ctx context.Context) error {
	rec, err := actor.Recv(ctx, p.tg, p.inbounds, p.recvTimeout)
	switch err.(type) {
	case nil:
	case *perr.TimeoutError, *perr.CanceledError:
		return nil
	default:
		return err
	}
	rec.Tracing.Mark(p.tg, tracing.Incoming)

	out, terr := p.transform(rec)
	if terr != nil {
		log.Errorf("%s: failed to transform record: %v", p.tg, terr)
		rec.Tracing.Record()
		return nil
	}

	for _, r := range out {
		r.Tracing.Mark(p.tg, tracing.Outgoing)
		p.outbound.Publish(r)
	}
	return nil
}

func (p *Timeseries) isLabel(s symbol.Symbol) bool {
	for _, l := range p.labelFields {
		if l == s {
			return true
		}
	}
	return false
}

// isValue reports whether field s qualifies as a value field: not a
// label, not the timestamp field, and (if Values was configured)
// present in the explicit value set.
func (p *Timeseries) isValue(s symbol.Symbol) bool {
	if p.isLabel(s) {
		return false
	}
	if p.hasTimestampField && s == p.timestampField {
		return false
	}
	if p.valueFields == nil {
		return true
	}
	for _, v := range p.valueFields {
		if v == s {
			return true
		}
	}
	return false
}

func (p *Timeseries) transform(rec *record.Record) ([]*record.Record, error) {
	var timestamp value.Value
	if p.hasTimestampField {
		ts, ok := rec.Get(p.timestampField)
		if !ok {
			return nil, perr.InvalidRecord("No timestamp found")
		}
		timestamp = ts
	} else {
		timestamp = value.NewDateTime(time.Now())
	}

	labels := value.NewStringMap(nil)
	rec.Range(func(s symbol.Symbol, v value.Value) bool {
		if p.isLabel(s) {
			labels.Set(value.NewSymbol(s), v)
		}
		return true
	})
	for k, v := range p.extraLabels {
		labels.SetString(k, value.NewString(v))
	}

	type namedValue struct {
		name symbol.Symbol
		val  value.Value
	}
	var values []namedValue
	rec.Range(func(s symbol.Symbol, v value.Value) bool {
		if p.isValue(s) {
			values = append(values, namedValue{s, v})
		}
		return true
	})

	if len(values) == 0 {
		return nil, perr.InvalidRecord("No values found")
	}

	out := make([]*record.Record, 0, len(values))
	for _, nv := range values {
		nr := record.New()
		nr.SetString("name", value.NewSymbol(nv.name))
		nr.SetString("labels", value.NewMap(labels.Clone()))
		nr.SetString("value", nv.val)
		nr.SetString("timestamp", timestamp)
		nr.SetString("metric_type", value.NewString("gauge"))
		nr.SetAttributeIfAbsent(record.Type, value.NewString(record.TimeseriesRecord))
		nr.Tracing = tracing.Inherit(rec.Tracing)
		out = append(out, nr)
	}
	return out, nil
}
