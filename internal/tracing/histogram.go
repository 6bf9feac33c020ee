// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tracing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/ClusterCockpit/cc-dataplane/pkg/log"
)

const summaryWindow = 10 * time.Second

type histogram struct {
	mu     sync.Mutex
	buffer map[string][]time.Duration
}

func newHistogram() *histogram {
	return &histogram{buffer: make(map[string][]time.Duration)}
}

func (h *histogram) add(key string, elapsed time.Duration) {
	h.mu.Lock()
	h.buffer[key] = append(h.buffer[key], elapsed)
	h.mu.Unlock()
}

type summaryRow struct {
	key                                    string
	count                                  int
	mean, min, max, p25, p50, p75, p90 time.Duration
}

func (h *histogram) summarize() []summaryRow {
	h.mu.Lock()
	defer h.mu.Unlock()

	rows := make([]summaryRow, 0, len(h.buffer))
	for key, samples := range h.buffer {
		if len(samples) == 0 {
			continue
		}
		sorted := append([]time.Duration(nil), samples...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum time.Duration
		for _, s := range sorted {
			sum += s
		}
		n := len(sorted)
		rows = append(rows, summaryRow{
			key:   key,
			count: n,
			mean:  sum / time.Duration(n),
			min:   sorted[0],
			max:   sorted[n-1],
			p25:   sorted[n/4],
			p50:   sorted[n/2],
			p75:   sorted[3*n/4],
			p90:   sorted[9*n/10],
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].key < rows[j].key })
	return rows
}

func (h *histogram) clear() {
	h.mu.Lock()
	h.buffer = make(map[string][]time.Duration)
	h.mu.Unlock()
}

func (h *histogram) logSummary() {
	rows := h.summarize()
	if len(rows) == 0 {
		return
	}

	log.Note("tracing summary (window=", summaryWindow, ")")
	for _, r := range rows {
		log.Notef("  %-40s count=%-6d mean=%-8s min=%-8s max=%-8s p25=%-8s p50=%-8s p75=%-8s p90=%-8s",
			r.key, r.count, r.mean, r.min, r.max, r.p25, r.p50, r.p75, r.p90)
	}
}

var globalHistogram = newHistogram()

var (
	schedMu     sync.Mutex
	scheduler   gocron.Scheduler
	schedCancel context.CancelFunc
)

// StartSummaryScheduler starts the periodic (10s) global tracing summary
// job. No-op if tracing is disabled. The returned error is from
// gocron.NewScheduler or Scheduler.NewJob; call StopSummaryScheduler to
// tear it down.
func StartSummaryScheduler() error {
	if !enabled {
		return nil
	}

	schedMu.Lock()
	defer schedMu.Unlock()

	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := s.NewJob(
		gocron.DurationJob(summaryWindow),
		gocron.NewTask(func() {
			globalHistogram.logSummary()
			globalHistogram.clear()
		}),
	); err != nil {
		return err
	}

	scheduler = s
	s.Start()
	return nil
}

// StopSummaryScheduler shuts the scheduler down, if running.
func StopSummaryScheduler() error {
	schedMu.Lock()
	defer schedMu.Unlock()

	if scheduler == nil {
		return nil
	}
	err := scheduler.Shutdown()
	scheduler = nil
	return err
}
