// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dag

import (
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

// BufferSize resolves the per-producer broadcast buffer size: the
// graph-wide default scaled by the producing stage's own factor (a
// pipe or outbound can request e.g. 8x or 32x capacity).
type BufferSize struct {
	Default     int
	ScaleFactor map[tag.Tag]int
}

func (b BufferSize) resolve(t tag.Tag) int {
	def := b.Default
	if def <= 0 {
		def = DefaultBufferSize
	}
	if f, ok := b.ScaleFactor[t]; ok && f > 0 {
		return def * f
	}
	return def
}

// Wiring holds one Broadcast per graph node (outbounds get one too,
// though nothing publishes to it) and lets consuming stages (pipes, outbounds) obtain a Subscriber for
// every upstream they declared. All subscriptions happen at Wire time,
// before any stage starts polling, so no record can be published to a
// channel before every interested consumer is already attached.
type Wiring struct {
	broadcasts map[tag.Tag]*Broadcast
}

// Wire allocates a Broadcast for every node in g and returns the
// resulting Wiring. Call Producer/Subscribe afterwards to obtain the
// handles each stage needs.
func Wire(g *Graph, sizes BufferSize) *Wiring {
	w := &Wiring{broadcasts: make(map[tag.Tag]*Broadcast, len(g.order))}
	for _, t := range g.order {
		w.broadcasts[t] = NewBroadcast(t, sizes.resolve(t))
	}
	return w
}

// Producer returns the Broadcast a stage should publish its output
// records to.
func (w *Wiring) Producer(t tag.Tag) *Broadcast { return w.broadcasts[t] }

// Subscribe returns one Subscriber per upstream tag declared by the
// graph for t, in the graph's upstream order.
func (w *Wiring) Subscribe(g *Graph, t tag.Tag) []*Subscriber {
	ups := g.Upstreams(t)
	subs := make([]*Subscriber, 0, len(ups))
	for _, up := range ups {
		subs = append(subs, w.broadcasts[up].Subscribe())
	}
	return subs
}

// CloseAll closes every Broadcast, used on shutdown after all stages
// have stopped polling.
func (w *Wiring) CloseAll() {
	for _, b := range w.broadcasts {
		b.Close()
	}
}
