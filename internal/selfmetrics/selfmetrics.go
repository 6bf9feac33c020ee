// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package selfmetrics exposes the pipeline's own operational state —
// not the remote-write outbound of internal/outbound, but the
// observability of the observability pipeline itself: records
// ingested per stage, broadcast-channel lag events, and outbound
// batch sizes, served as Prometheus text format on a debug-only
// listener.
package selfmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

var (
	// RecordsIngested counts records a stage has forwarded downstream,
	// labeled by its scope:name tag.
	RecordsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ccdp",
		Name:      "records_ingested_total",
		Help:      "Records forwarded downstream by a pipeline stage.",
	}, []string{"stage"})

	// ChannelLagEvents counts a subscriber falling behind and having the
	// oldest queued record dropped in its favor (internal/dag.Subscriber).
	ChannelLagEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ccdp",
		Name:      "channel_lag_events_total",
		Help:      "Broadcast channel drop-oldest events, by producing stage.",
	}, []string{"stage"})

	// OutboundBatchSize observes how many records an outbound flushed in
	// one dispatch, labeled by its scope:name tag.
	OutboundBatchSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ccdp",
		Name:      "outbound_batch_size",
		Help:      "Record count per outbound flush.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"stage"})

	// StageState reports a stage's current actor.State as a gauge
	// (0=idle, 1=active, 2=terminating, 3=terminated).
	StageState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ccdp",
		Name:      "stage_state",
		Help:      "Current actor.State of a pipeline stage.",
	}, []string{"stage"})
)

// Registry is the registry every selfmetrics collector is registered
// to; Serve exposes it rather than the global prometheus default so a
// process embedding this package can avoid collisions with its own
// default-registry metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(RecordsIngested, ChannelLagEvents, OutboundBatchSize, StageState)
}

// IncRecordsIngested records n records forwarded by t.
func IncRecordsIngested(t tag.Tag, n int) {
	RecordsIngested.WithLabelValues(t.String()).Add(float64(n))
}

// IncChannelLag records a drop-oldest event on the broadcast produced by t.
func IncChannelLag(t tag.Tag) {
	ChannelLagEvents.WithLabelValues(t.String()).Inc()
}

// ObserveOutboundBatch records a flushed batch of size n for outbound t.
func ObserveOutboundBatch(t tag.Tag, n int) {
	OutboundBatchSize.WithLabelValues(t.String()).Observe(float64(n))
}

// SetStageState records stage t's current lifecycle state.
func SetStageState(t tag.Tag, state int32) {
	StageState.WithLabelValues(t.String()).Set(float64(state))
}
