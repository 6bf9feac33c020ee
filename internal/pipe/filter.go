// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipe

import (
	"context"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

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

// FilterConfig configures the supplemental Filter pipe.
type FilterConfig struct {
	// Rule is a boolean expr-lang expression evaluated against every
	// Record's fields. Records for which it evaluates false are
	// dropped.
	Rule string

	RecvTimeout time.Duration
}

// Filter is a supplemental pipe, beyond the two the base spec names,
// that drops Records not matching a configured boolean expression. Its
// expression engine and compile-once/run-many shape mirror how job
// classification rules are compiled and evaluated elsewhere in this
// codebase.
type Filter struct {
	tg tag.Tag

	rule *vm.Program

	inbounds    []*dag.Subscriber
	outbound    *dag.Broadcast
	recvTimeout time.Duration
}

// NewFilter builds a Filter pipe identified by t, compiling cfg.Rule
// once up front. A malformed expression is reported as ConfigInvalid
// since it can never succeed at runtime.
func NewFilter(t tag.Tag, cfg FilterConfig, inbounds []*dag.Subscriber, outbound *dag.Broadcast) (*Filter, error) {
	program, err := expr.Compile(cfg.Rule, expr.AsBool())
	if err != nil {
		return nil, perr.ConfigInvalid("filter rule: " + err.Error())
	}

	recvTimeout := cfg.RecvTimeout
	if recvTimeout <= 0 {
		recvTimeout = DefaultRecvTimeout
	}

	return &Filter{
		tg:          t,
		rule:        program,
		inbounds:    inbounds,
		outbound:    outbound,
		recvTimeout: recvTimeout,
	}, nil
}

// Tag implements actor.Stage.
func (p *Filter) Tag() tag.Tag { return p.tg }

// Poll implements actor.Stage.
func (p *Filter) Poll(ctx context.Context) error {
	rec, err := actor.Recv(ctx, p.tg, p.inbounds, p.recvTimeout)
	switch err.(type) {
	case nil:
	case *perr.TimeoutError, *perr.CanceledError:
		return nil
	default:
		return err
	}
	rec.Tracing.Mark(p.tg, tracing.Incoming)

	env := recordEnv(rec)
	result, rerr := expr.Run(p.rule, env)
	if rerr != nil {
		log.Errorf("%s: failed to evaluate filter rule: %v", p.tg, rerr)
		rec.Tracing.Record()
		return nil
	}

	matched, ok := result.(bool)
	if !ok || !matched {
		log.Debugf("%s: record dropped by filter", p.tg)
		rec.Tracing.Record()
		return nil
	}

	rec.Tracing.Mark(p.tg, tracing.Outgoing)
	p.outbound.Publish(rec)
	return nil
}

// recordEnv flattens a Record's fields into an expr-lang environment,
// keyed by field name.
func recordEnv(rec *record.Record) map[string]any {
	env := make(map[string]any, rec.Len())
	rec.Range(func(s symbol.Symbol, v value.Value) bool {
		env[s.Resolve()] = valueToAny(v)
		return true
	})
	return env
}

func valueToAny(v value.Value) any {
	switch v.Kind() {
	case value.StringKind:
		s, _ := v.AsString()
		return s
	case value.IntKind:
		i, _ := v.AsInt()
		return i
	case value.FloatKind:
		f, _ := v.AsFloat()
		return f
	case value.BoolKind:
		b, _ := v.AsBool()
		return b
	case value.DateTimeKind:
		dt, _ := v.AsDateTime()
		return dt
	case value.ArrayKind:
		arr, _ := v.AsArray()
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = valueToAny(e)
		}
		return out
	case value.MapKind:
		m, _ := v.AsMap()
		out := make(map[string]any, m.Len())
		m.Range(func(k, val value.Value) bool {
			out[k.Stringify()] = valueToAny(val)
			return true
		})
		return out
	default:
		return nil
	}
}
