// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/selfmetrics"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/pkg/log"
)

// State is a stage's position in its lifecycle.
type State int32

const (
	Idle State = iota
	Active
	Terminating
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Terminating:
		return "terminating"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Stage is the contract every inbound, pipe and outbound implements.
// Poll performs one unit of work (e.g. one accept, one recv_batch plus
// downstream publish) and returns once it either suspends waiting on
// ctx or finishes that unit of work. A finished Poll is immediately
// re-invoked by the Runtime; only cancellation or a fatal error ends
// the stage.
type Stage interface {
	Tag() tag.Tag
	Poll(ctx context.Context) error
}

// Runtime concurrently drives a set of stages, re-invoking each one's
// Poll as soon as it returns, until the root context is canceled.
// Cancellation is hierarchical only in the sense the spec requires: one
// root token whose cancellation is observed by every stage at its next
// suspension point; Runtime does not need per-branch cancellation since
// no stage in this pipeline needs to be torn down independently of the
// whole process.
type Runtime struct {
	mu     sync.Mutex
	states map[tag.Tag]*atomic.Int32
}

// NewRuntime creates an empty Runtime.
func NewRuntime() *Runtime {
	return &Runtime{states: make(map[tag.Tag]*atomic.Int32)}
}

// StateOf returns the current lifecycle state of the stage tagged t, or
// Idle if it was never registered.
func (r *Runtime) StateOf(t tag.Tag) State {
	r.mu.Lock()
	s, ok := r.states[t]
	r.mu.Unlock()
	if !ok {
		return Idle
	}
	return State(s.Load())
}

func (r *Runtime) setState(t tag.Tag, s State) {
	r.mu.Lock()
	cell, ok := r.states[t]
	if !ok {
		cell = &atomic.Int32{}
		r.states[t] = cell
	}
	r.mu.Unlock()
	cell.Store(int32(s))
	selfmetrics.SetStageState(t, int32(s))
}

// Run starts every stage's poll loop in its own goroutine and blocks
// until all of them have terminated (which happens once ctx is
// canceled and each stage observes it at its next suspension point).
func (r *Runtime) Run(ctx context.Context, stages []Stage) {
	var wg sync.WaitGroup
	wg.Add(len(stages))

	for _, stage := range stages {
		go func(stage Stage) {
			defer wg.Done()
			r.runOne(ctx, stage)
		}(stage)
	}

	wg.Wait()
}

func (r *Runtime) runOne(ctx context.Context, stage Stage) {
	t := stage.Tag()
	r.setState(t, Active)

	for {
		err := stage.Poll(ctx)

		if ctx.Err() != nil {
			r.setState(t, Terminating)
			log.Infof("%s: shutting down", t)
			r.setState(t, Terminated)
			return
		}

		if err != nil {
			r.setState(t, Terminating)
			if _, ok := err.(*perr.ChannelClosedError); ok {
				log.Infof("%s: stopping, upstream closed: %v", t, err)
			} else {
				log.Errorf("%s: fatal poll error, stopping stage: %v", t, err)
			}
			r.setState(t, Terminated)
			return
		}
	}
}
