// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package outbound

import (
	"testing"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

func newTimeseriesRecord(name string, host string, v float64, ts time.Time) *record.Record {
	rec := record.New()
	rec.SetString("name", value.NewString(name))
	rec.SetString("metric_type", value.NewString("gauge"))
	rec.SetString("value", value.NewFloat(v))
	rec.SetString("timestamp", value.NewDateTime(ts))
	labels := value.NewStringMap(nil)
	labels.SetString("host", value.NewString(host))
	rec.SetString("labels", value.NewMap(labels))
	rec.SetAttributeIfAbsent(record.Type, value.NewString(record.TimeseriesRecord))
	return rec
}

func TestRecordToTimeSeriesIncludesSyntheticName(t *testing.T) {
	now := time.Now()
	rec := newTimeseriesRecord("cpu_load", "node01", 1.5, now)

	ts, err := recordToTimeSeries(rec)
	if err != nil {
		t.Fatalf("recordToTimeSeries: %v", err)
	}

	found := false
	for _, l := range ts.Labels {
		if l.Name == "__name__" && l.Value == "cpu_load" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a __name__ label carrying the record name")
	}
	if len(ts.Samples) != 1 || ts.Samples[0].Value != 1.5 {
		t.Fatalf("unexpected samples: %+v", ts.Samples)
	}
}

func TestRecordToTimeSeriesMissingFieldFails(t *testing.T) {
	rec := record.New()
	rec.SetString("name", value.NewString("cpu_load"))
	if _, err := recordToTimeSeries(rec); err == nil {
		t.Fatal("expected an error for a record missing required fields")
	}
}

func TestCoalesceMergesSameLabels(t *testing.T) {
	now := time.Now()
	a, err := recordToTimeSeries(newTimeseriesRecord("cpu_load", "node01", 1.0, now))
	if err != nil {
		t.Fatalf("recordToTimeSeries a: %v", err)
	}
	b, err := recordToTimeSeries(newTimeseriesRecord("cpu_load", "node01", 2.0, now.Add(time.Second)))
	if err != nil {
		t.Fatalf("recordToTimeSeries b: %v", err)
	}

	merged := coalesce([]*TimeSeries{a, b})
	if len(merged) != 1 {
		t.Fatalf("expected series sharing a label set to merge, got %d groups", len(merged))
	}
	if len(merged[0].Samples) != 2 {
		t.Fatalf("expected 2 merged samples, got %d", len(merged[0].Samples))
	}
	if merged[0].Samples[0].TimestampMillis > merged[0].Samples[1].TimestampMillis {
		t.Fatal("expected merged samples sorted by timestamp")
	}
}

func TestCoalesceKeepsDistinctLabelsSeparate(t *testing.T) {
	now := time.Now()
	a, _ := recordToTimeSeries(newTimeseriesRecord("cpu_load", "node01", 1.0, now))
	b, _ := recordToTimeSeries(newTimeseriesRecord("cpu_load", "node02", 1.0, now))

	merged := coalesce([]*TimeSeries{a, b})
	if len(merged) != 2 {
		t.Fatalf("expected distinct label sets to stay separate, got %d groups", len(merged))
	}
}
