// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dag builds and validates the pipeline graph declared by a
// config file (inbounds, pipes, outbounds as tagged nodes with
// upstream references) and materializes it as a set of broadcast
// channels wired together before any stage starts polling.
package dag

import (
	"sort"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

// Node is one declared stage: its tag and the tags of its upstreams.
// Inbounds have no upstreams; pipes and outbounds declare at least one.
type Node struct {
	Tag       tag.Tag
	Upstreams []tag.Tag
}

// Graph is the validated, topologically ordered pipeline graph.
type Graph struct {
	nodes map[tag.Tag]Node
	order []tag.Tag
}

// Build validates nodes for duplicate tags, unknown upstream
// references, and cycles, returning a Graph with stages in topological
// (upstream-before-downstream) order on success.
func Build(nodes []Node) (*Graph, error) {
	byTag := make(map[tag.Tag]Node, len(nodes))
	for _, n := range nodes {
		if _, ok := byTag[n.Tag]; ok {
			return nil, perr.DuplicateTag(n.Tag)
		}
		byTag[n.Tag] = n
	}

	for _, n := range nodes {
		for _, up := range n.Upstreams {
			if _, ok := byTag[up]; !ok {
				return nil, perr.UnknownTagRequired(n.Tag, up)
			}
		}
	}

	order, cyclePath, ok := toposort(byTag)
	if !ok {
		return nil, perr.Cycle(cyclePath)
	}

	return &Graph{nodes: byTag, order: order}, nil
}

// Order returns stage tags in topological order: every upstream
// appears before its consumers.
func (g *Graph) Order() []tag.Tag { return g.order }

// Upstreams returns the declared upstream tags of t.
func (g *Graph) Upstreams(t tag.Tag) []tag.Tag { return g.nodes[t].Upstreams }

// Downstreams returns every tag that declared t as an upstream, sorted
// by name for deterministic wiring order.
func (g *Graph) Downstreams(t tag.Tag) []tag.Tag {
	var out []tag.Tag
	for _, other := range g.order {
		for _, up := range g.nodes[other].Upstreams {
			if up == t {
				out = append(out, other)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

const (
	unvisited = iota
	visiting
	visited
)

func toposort(nodes map[tag.Tag]Node) (order []tag.Tag, cyclePath []tag.Tag, ok bool) {
	state := make(map[tag.Tag]int, len(nodes))
	var stack []tag.Tag

	// Iterate in a stable order so error messages (and valid orderings)
	// are deterministic across runs.
	tags := make([]tag.Tag, 0, len(nodes))
	for t := range nodes {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Scope != tags[j].Scope {
			return tags[i].Scope < tags[j].Scope
		}
		return tags[i].Name < tags[j].Name
	})

	var visit func(t tag.Tag) bool
	visit = func(t tag.Tag) bool {
		switch state[t] {
		case visited:
			return true
		case visiting:
			cyclePath = append(append([]tag.Tag(nil), stack...), t)
			return false
		}

		state[t] = visiting
		stack = append(stack, t)
		for _, up := range nodes[t].Upstreams {
			if !visit(up) {
				return false
			}
		}
		stack = stack[:len(stack)-1]
		state[t] = visited
		order = append(order, t)
		return true
	}

	for _, t := range tags {
		if state[t] == unvisited {
			if !visit(t) {
				return nil, cyclePath, false
			}
		}
	}

	return order, nil, true
}
