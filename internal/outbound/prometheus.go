// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package outbound

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/common/model"
	"golang.org/x/sync/semaphore"

	"github.com/ClusterCockpit/cc-dataplane/internal/actor"
	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/selfmetrics"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/internal/tracing"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
	"github.com/ClusterCockpit/cc-dataplane/pkg/log"
)

// DefaultPrometheusRecvTimeout and DefaultPrometheusBatchSize match the
// original's "defer flushes as long as possible" default: a 5ms poll
// cadence with a very high batch cap, so in practice a flush happens
// whenever the timeout elapses rather than when the cap is hit.
const (
	DefaultPrometheusRecvTimeout = 5 * time.Millisecond
	DefaultPrometheusBatchSize   = 8192 * 8 * 16
	DefaultMaxConcurrentRequests = 8
	DefaultLagWarnThreshold      = time.Second
)

// AuthKind selects how the Prometheus outbound authenticates its POST.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthBearer
)

// AuthConfig configures outbound authentication.
type AuthConfig struct {
	Kind     AuthKind
	Username string
	Password string
	Token    string
}

// PrometheusConfig configures the Prometheus remote-write outbound.
type PrometheusConfig struct {
	Endpoint               string
	Auth                   AuthConfig
	UserAgent              string
	RecvTimeout            time.Duration
	RecvBufferSize         int
	MaxConcurrentRequests  int64
	Client                 *http.Client
}

// Prometheus is the remote-write outbound: it batch-drains records,
// coerces timeseries-shaped ones into Prometheus TimeSeries, coalesces
// series sharing a label set, and POSTs a Snappy-compressed protobuf
// WriteRequest as a detached, semaphore-bounded task so a slow endpoint
// never stalls the poll loop.
type Prometheus struct {
	tg tag.Tag

	inbounds    []*dag.Subscriber
	endpoint    string
	auth        AuthConfig
	userAgent   string
	recvTimeout time.Duration
	batchSize   int
	client      *http.Client
	sem         *semaphore.Weighted
}

// NewPrometheus builds a Prometheus outbound identified by t.
func NewPrometheus(t tag.Tag, cfg PrometheusConfig, inbounds []*dag.Subscriber) *Prometheus {
	recvTimeout := cfg.RecvTimeout
	if recvTimeout <= 0 {
		recvTimeout = DefaultPrometheusRecvTimeout
	}
	batchSize := cfg.RecvBufferSize
	if batchSize <= 0 {
		batchSize = DefaultPrometheusBatchSize
	}
	maxConcurrent := cfg.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRequests
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Prometheus{
		tg:          t,
		inbounds:    inbounds,
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		auth:        cfg.Auth,
		userAgent:   cfg.UserAgent,
		recvTimeout: recvTimeout,
		batchSize:   batchSize,
		client:      client,
		sem:         semaphore.NewWeighted(maxConcurrent),
	}
}

// Tag implements actor.Stage.
func (p *Prometheus) Tag() tag.Tag { return p.tg }

// Poll implements actor.Stage.
func (p *Prometheus) Poll(ctx context.Context) error {
	records, err := actor.RecvBatch(ctx, p.tg, p.inbounds, p.recvTimeout, p.batchSize)
	switch err.(type) {
	case nil:
	case *perr.TimeoutError, *perr.CanceledError:
		return nil
	default:
		return err
	}

	series, dropped := coerceBatch(p.tg, records)
	if dropped > 0 {
		log.Warnf("%s: dropped %d non-timeseries record(s)", p.tg, dropped)
	}
	if len(series) == 0 {
		return nil
	}

	series = coalesce(series)
	warnIfLagging(p.tg, series)
	selfmetrics.ObserveOutboundBatch(p.tg, len(series))

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	go func() {
		defer p.sem.Release(1)
		if err := p.dispatch(series); err != nil {
			log.Errorf("%s: dispatch failed: %v", p.tg, err)
		}
	}()
	return nil
}

// coerceBatch converts every timeseries-shaped Record to a TimeSeries.
// This is the pipeline's terminal point for each Record that reaches
// it, whether or not it's usable, so every one is marked received here
// and flushed via Tracing.Record before coalescing discards per-record
// identity.
func coerceBatch(t tag.Tag, records []*record.Record) ([]*TimeSeries, int) {
	var series []*TimeSeries
	dropped := 0
	for _, rec := range records {
		rec.Tracing.Mark(t, tracing.Incoming)
		if !rec.IsType(record.TimeseriesRecord) {
			dropped++
			rec.Tracing.Record()
			continue
		}
		ts, err := recordToTimeSeries(rec)
		if err != nil {
			log.Errorf("%s: failed to coerce record: %v", t, err)
			rec.Tracing.Record()
			continue
		}
		rec.Tracing.Mark(t, tracing.Outgoing)
		rec.Tracing.Record()
		series = append(series, ts)
	}
	return series, dropped
}

// recordToTimeSeries implements the §4.6 coercion: name, metric_type,
// value, timestamp, labels are all required; a synthetic __name__
// label carries the record's name.
func recordToTimeSeries(rec *record.Record) (*TimeSeries, error) {
	nameVal, ok := rec.GetString("name")
	if !ok {
		return nil, perr.InvalidRecord("missing name field")
	}
	name, ok := nameVal.AsString()
	if !ok {
		return nil, perr.InvalidRecord("name field is not a string")
	}

	if _, ok := rec.GetString("metric_type"); !ok {
		return nil, perr.InvalidRecord("missing metric_type field")
	}

	valueVal, ok := rec.GetString("value")
	if !ok {
		return nil, perr.InvalidRecord("missing value field")
	}
	val, ok := valueVal.AsFloat()
	if !ok {
		return nil, perr.InvalidRecord("value field is not numeric")
	}

	tsVal, ok := rec.GetString("timestamp")
	if !ok {
		return nil, perr.InvalidRecord("missing timestamp field")
	}
	ts, ok := tsVal.AsDateTime()
	if !ok {
		return nil, perr.InvalidRecord("timestamp field is not a datetime")
	}

	labelsVal, ok := rec.GetString("labels")
	if !ok {
		return nil, perr.InvalidRecord("missing labels field")
	}
	labels, ok := labelsVal.AsMap()
	if !ok {
		return nil, perr.InvalidRecord("labels field is not a map")
	}

	out := make([]Label, 0, labels.Len()+1)
	var coerceErr error
	labels.Range(func(k, v value.Value) bool {
		ln := k.Stringify()
		if !model.LabelName(ln).IsValid() {
			coerceErr = perr.InvalidRecord(fmt.Sprintf("invalid label name %q", ln))
			return false
		}
		out = append(out, Label{Name: ln, Value: v.Stringify()})
		return true
	})
	if coerceErr != nil {
		return nil, coerceErr
	}
	out = append(out, Label{Name: "__name__", Value: name})

	return &TimeSeries{
		Labels:  out,
		Samples: []Sample{{Value: val, TimestampMillis: ts.UnixMilli()}},
	}, nil
}

// coalesce merges TimeSeries sharing an identical, sorted label set,
// concatenating their samples, then sorts each result's samples by
// timestamp and labels by name.
func coalesce(series []*TimeSeries) []*TimeSeries {
	for _, ts := range series {
		sort.Slice(ts.Labels, func(i, j int) bool { return ts.Labels[i].Name < ts.Labels[j].Name })
	}

	groups := make(map[string]*TimeSeries)
	var order []string
	for _, ts := range series {
		key := labelsKey(ts.Labels)
		if existing, ok := groups[key]; ok {
			existing.Samples = append(existing.Samples, ts.Samples...)
			continue
		}
		groups[key] = ts
		order = append(order, key)
	}

	out := make([]*TimeSeries, 0, len(order))
	for _, key := range order {
		ts := groups[key]
		sort.Slice(ts.Samples, func(i, j int) bool { return ts.Samples[i].TimestampMillis < ts.Samples[j].TimestampMillis })
		out = append(out, ts)
	}
	return out
}

func labelsKey(labels []Label) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(l.Name)
		b.WriteByte('=')
		b.WriteString(l.Value)
		b.WriteByte(';')
	}
	return b.String()
}

func warnIfLagging(t tag.Tag, series []*TimeSeries) {
	var maxMillis int64
	for _, ts := range series {
		for _, s := range ts.Samples {
			if s.TimestampMillis > maxMillis {
				maxMillis = s.TimestampMillis
			}
		}
	}
	if maxMillis == 0 {
		return
	}
	lag := time.Since(time.UnixMilli(maxMillis))
	if lag > DefaultLagWarnThreshold {
		log.Warnf("%s: outbound lag %s behind wall clock", t, lag)
	}
}

func (p *Prometheus) dispatch(series []*TimeSeries) error {
	body := marshalWriteRequest(series)
	compressed := snappy.Encode(nil, body)

	req, err := http.NewRequest(http.MethodPost, p.endpoint+"/api/v1/write", bytes.NewReader(compressed))
	if err != nil {
		return perr.Io(err)
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	switch p.auth.Kind {
	case AuthBasic:
		req.SetBasicAuth(p.auth.Username, p.auth.Password)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+p.auth.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return perr.Io(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		b, _ := io.ReadAll(resp.Body)
		return perr.HTTPStatus(resp.StatusCode, string(b))
	}
	return nil
}
