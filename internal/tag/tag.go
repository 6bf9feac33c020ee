// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tag implements the scope-qualified stage identifiers used to
// reference inbounds, protocols, pipes and outbounds from a pipeline
// graph, and to label tracing timepoints.
package tag

import "fmt"

// Scope names the section of the config a Tag was declared in.
type Scope uint8

const (
	Inbound Scope = iota
	Protocol
	Pipe
	Outbound
)

func (s Scope) String() string {
	switch s {
	case Inbound:
		return "inbound"
	case Protocol:
		return "protocol"
	case Pipe:
		return "pipe"
	case Outbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Tag uniquely identifies one declared stage within a pipeline graph.
// Uniqueness is enforced globally across all scopes, not just within one,
// so a pipe and an outbound may never share a name.
type Tag struct {
	Scope Scope
	Name  string
}

// New builds a Tag from a scope and a name.
func New(scope Scope, name string) Tag {
	return Tag{Scope: scope, Name: name}
}

// String renders the flattened "scope:name" display form used in logs,
// error messages and tracing keys.
func (t Tag) String() string {
	return fmt.Sprintf("%s:%s", t.Scope, t.Name)
}

// IsZero reports whether t is the zero Tag (unset).
func (t Tag) IsZero() bool {
	return t.Name == "" && t.Scope == Inbound
}
