// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tracing implements the optional per-record latency tracing
// described for the pipeline runtime: each Record carries a Context that
// records a timepoint every time it crosses a stage boundary, and a
// global histogram buffers the elapsed-time ranges between consecutive
// timepoints for periodic summarization.
package tracing

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

// Direction qualifies whether a timepoint was recorded as a stage
// received a record (Incoming) or handed it onward (Outgoing).
type Direction uint8

const (
	None Direction = iota
	Incoming
	Outgoing
)

func (d Direction) String() string {
	switch d {
	case Incoming:
		return "incoming"
	case Outgoing:
		return "outgoing"
	default:
		return "none"
	}
}

var enabled bool

// Enable turns on timepoint recording and summary collection process-wide.
// Disabled is the default: every method on Context and the global
// histogram becomes a no-op so the common case pays nothing beyond a
// branch.
func Enable(v bool) { enabled = v }

// Enabled reports whether tracing is currently turned on.
func Enabled() bool { return enabled }

type timepoint struct {
	stage     tag.Tag
	at        time.Time
	direction Direction
}

// Context accumulates the timepoints of one record as it flows through
// the pipeline. A child created with Inherit keeps a reference to its
// parent so that forks (e.g. the timeseries split pipe emitting several
// records from one input) still attribute latency back to the shared
// prefix of the pipeline.
type Context struct {
	mu         sync.Mutex
	timepoints []timepoint
	parent     *Context
}

// NewRoot creates a Context with no parent, used by inbounds when a
// record first enters the pipeline.
func NewRoot() *Context {
	return &Context{}
}

// Inherit creates a child Context of parent, used whenever one record
// gives rise to another (e.g. split emitting one record per field).
func Inherit(parent *Context) *Context {
	return &Context{parent: parent}
}

// Mark appends a timepoint for stage/direction. No-op when tracing is
// disabled or ctx is nil.
func (ctx *Context) Mark(stage tag.Tag, direction Direction) {
	if ctx == nil || !enabled {
		return
	}
	ctx.mu.Lock()
	ctx.timepoints = append(ctx.timepoints, timepoint{stage: stage, at: time.Now(), direction: direction})
	ctx.mu.Unlock()
}

// Record flushes ctx (and its ancestors') timepoints into the global
// histogram as a sorted sequence of elapsed-time ranges, keyed by
// "[i] scope:name(direction)". Called once a record reaches a terminal
// outbound or is dropped.
func (ctx *Context) Record() {
	if ctx == nil || !enabled {
		return
	}

	all := ctx.collect()
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	if len(all) < 2 {
		return
	}

	start := all[0].at
	for i, tp := range all {
		key := fmt.Sprintf("[%d] %s(%s)", i, tp.stage, tp.direction)
		globalHistogram.add(key, tp.at.Sub(start))
	}
}

func (ctx *Context) collect() []timepoint {
	ctx.mu.Lock()
	out := append([]timepoint(nil), ctx.timepoints...)
	ctx.mu.Unlock()

	for p := ctx.parent; p != nil; p = p.parent {
		p.mu.Lock()
		out = append(out, p.timepoints...)
		p.mu.Unlock()
	}
	return out
}
