// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipe

import (
	"context"
	"sync"
	"time"

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

const (
	actionSet      = "set"
	actionUnset    = "unset"
	actionDelete   = "delete"
	actionUndelete = "undelete"
	actionClear    = "clear"
)

// DefaultAnnotateRecvTimeout bounds a single data-batch receive.
const DefaultAnnotateRecvTimeout = 5 * time.Millisecond

// DefaultAnnotateBatchSize caps how many data records one poll
// iteration accumulates before forwarding them.
const DefaultAnnotateBatchSize = 4096

// AnnotateConfig configures the Annotate pipe.
type AnnotateConfig struct {
	RecvTimeout time.Duration
	BatchSize   int
}

// Annotate adds or removes labels on every Timeseries-shaped Record
// flowing through its data channel, driven by control Records arriving
// on a separate channel. It polls data with priority: one data batch is
// drained per iteration before a single non-blocking check of the
// control channel.
type Annotate struct {
	tg tag.Tag

	dataInbounds    []*dag.Subscriber
	controlInbounds []*dag.Subscriber
	outbound        *dag.Broadcast

	mu             sync.Mutex
	labelsToAdd    map[symbol.Symbol]value.Value
	labelsToRemove map[symbol.Symbol]struct{}

	recvTimeout time.Duration
	batchSize   int
}

// NewAnnotate builds an Annotate pipe identified by t.
func NewAnnotate(t tag.Tag, cfg AnnotateConfig, dataInbounds, controlInbounds []*dag.Subscriber, outbound *dag.Broadcast) *Annotate {
	recvTimeout := cfg.RecvTimeout
	if recvTimeout <= 0 {
		recvTimeout = DefaultAnnotateRecvTimeout
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultAnnotateBatchSize
	}
	return &Annotate{
		tg:              t,
		dataInbounds:    dataInbounds,
		controlInbounds: controlInbounds,
		outbound:        outbound,
		labelsToAdd:     make(map[symbol.Symbol]value.Value),
		labelsToRemove:  make(map[symbol.Symbol]struct{}),
		recvTimeout:     recvTimeout,
		batchSize:       batchSize,
	}
}

// Tag implements actor.Stage.
func (p *Annotate) Tag() tag.Tag { return p.tg }

// Poll implements actor.Stage: one data batch, then one non-blocking
// control check, every iteration.
func (p *Annotate) Poll(ctx context.Context) error {
	records, err := actor.RecvBatch(ctx, p.tg, p.dataInbounds, p.recvTimeout, p.batchSize)
	switch err.(type) {
	case nil:
		p.transformAndPublish(records)
	case *perr.TimeoutError:
	case *perr.CanceledError:
		return nil
	default:
		return err
	}

	ctrl, cerr := actor.Recv(ctx, p.tg, p.controlInbounds, 0)
	switch cerr.(type) {
	case nil:
		p.handleAction(ctrl)
	case *perr.TimeoutError:
	case *perr.CanceledError:
		return nil
	default:
		log.Errorf("%s: failed to receive control record: %v", p.tg, cerr)
	}

	return nil
}

func (p *Annotate) transformAndPublish(records []*record.Record) {
	for _, rec := range records {
		rec.Tracing.Mark(p.tg, tracing.Incoming)
		if err := p.transform(rec); err != nil {
			log.Errorf("%s: failed to transform record: %v", p.tg, err)
			rec.Tracing.Record()
			continue
		}
		rec.Tracing.Mark(p.tg, tracing.Outgoing)
		p.outbound.Publish(rec)
	}
}

func (p *Annotate) transform(rec *record.Record) error {
	labelsVal, ok := rec.GetString("labels")
	if !ok {
		return perr.InvalidRecord("missing labels field")
	}
	labels, ok := labelsVal.AsMap()
	if !ok {
		return perr.InvalidRecord("labels field is not a map")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for name, val := range p.labelsToAdd {
		labels.Set(value.NewSymbol(name), val)
	}
	for name := range p.labelsToRemove {
		labels.Remove(value.NewSymbol(name))
	}
	return nil
}

func (p *Annotate) handleAction(rec *record.Record) {
	actionVal, ok := rec.GetString("action")
	if !ok {
		log.Errorf("%s: control record missing action field", p.tg)
		return
	}
	action, ok := actionVal.AsString()
	if !ok {
		log.Errorf("%s: action field is not a string", p.tg)
		return
	}

	switch action {
	case actionSet:
		name, val, ok := p.nameAndValue(rec)
		if !ok {
			return
		}
		log.Infof("%s: will set label: %s = %s", p.tg, name, val.Stringify())
		p.mu.Lock()
		p.labelsToAdd[name] = val
		delete(p.labelsToRemove, name)
		p.mu.Unlock()

	case actionUnset:
		name, ok := p.name(rec)
		if !ok {
			return
		}
		log.Infof("%s: will no longer set label: %s", p.tg, name)
		p.mu.Lock()
		delete(p.labelsToAdd, name)
		p.mu.Unlock()

	case actionDelete:
		name, ok := p.name(rec)
		if !ok {
			return
		}
		log.Infof("%s: will delete label: %s", p.tg, name)
		p.mu.Lock()
		p.labelsToRemove[name] = struct{}{}
		p.mu.Unlock()

	case actionUndelete:
		name, ok := p.name(rec)
		if !ok {
			return
		}
		log.Infof("%s: will undelete label: %s", p.tg, name)
		p.mu.Lock()
		delete(p.labelsToRemove, name)
		p.mu.Unlock()

	case actionClear:
		log.Infof("%s: will clear all label actions", p.tg)
		p.mu.Lock()
		p.labelsToAdd = make(map[symbol.Symbol]value.Value)
		p.labelsToRemove = make(map[symbol.Symbol]struct{})
		p.mu.Unlock()

	default:
		log.Errorf("%s: invalid action %q", p.tg, action)
	}
}

func (p *Annotate) name(rec *record.Record) (symbol.Symbol, bool) {
	v, ok := rec.GetString("name")
	if !ok {
		log.Errorf("%s: control record missing name field", p.tg)
		return symbol.Symbol{}, false
	}
	if sym, ok := v.AsSymbol(); ok {
		return sym, true
	}
	s, ok := v.AsString()
	if !ok {
		log.Errorf("%s: name field is not a string", p.tg)
		return symbol.Symbol{}, false
	}
	return symbol.Intern(s), true
}

func (p *Annotate) nameAndValue(rec *record.Record) (symbol.Symbol, value.Value, bool) {
	name, ok := p.name(rec)
	if !ok {
		return symbol.Symbol{}, value.Value{}, false
	}
	v, ok := rec.GetString("value")
	if !ok {
		log.Errorf("%s: control record missing value field", p.tg)
		return symbol.Symbol{}, value.Value{}, false
	}
	return name, v, true
}
