// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipe

import (
	"context"
	"testing"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

func newLabeledRecord(name string, host string) *record.Record {
	rec := record.New()
	labels := value.NewStringMap(map[string]value.Value{"host": value.NewString(host)})
	rec.SetString("name", value.NewString(name))
	rec.SetString("labels", value.NewMap(labels))
	rec.SetString("value", value.NewFloat(1))
	return rec
}

func TestAnnotateSetAddsLabel(t *testing.T) {
	dataTag := tag.New(tag.Inbound, "data")
	dataBroadcast := dag.NewBroadcast(dataTag, 8)
	dataSub := dataBroadcast.Subscribe()

	ctrlTag := tag.New(tag.Inbound, "ctrl")
	ctrlBroadcast := dag.NewBroadcast(ctrlTag, 8)
	ctrlSub := ctrlBroadcast.Subscribe()

	outTag := tag.New(tag.Pipe, "annotate")
	out := dag.NewBroadcast(outTag, 8)
	outSub := out.Subscribe()

	p := NewAnnotate(outTag, AnnotateConfig{RecvTimeout: 10 * time.Millisecond, BatchSize: 8},
		[]*dag.Subscriber{dataSub}, []*dag.Subscriber{ctrlSub}, out)

	ctrl := record.New()
	ctrl.SetString("action", value.NewString(actionSet))
	ctrl.SetString("name", value.NewString("cluster"))
	ctrl.SetString("value", value.NewString("fritz"))
	ctrlBroadcast.Publish(ctrl)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// First iteration drains (empty) data then the control record.
	if err := p.Poll(ctx); err != nil {
		t.Fatalf("poll 1: %v", err)
	}

	dataBroadcast.Publish(newLabeledRecord("cpu_load", "node01"))
	if err := p.Poll(ctx); err != nil {
		t.Fatalf("poll 2: %v", err)
	}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	got, err := outSub.Recv(recvCtx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	labelsVal, _ := got.GetString("labels")
	labels, _ := labelsVal.AsMap()
	cluster, ok := labels.GetString("cluster")
	if !ok {
		t.Fatal("expected cluster label to be added")
	}
	cs, _ := cluster.AsString()
	if cs != "fritz" {
		t.Fatalf("got cluster=%q", cs)
	}
	host, ok := labels.GetString("host")
	if !ok {
		t.Fatal("expected original host label to survive")
	}
	hs, _ := host.AsString()
	if hs != "node01" {
		t.Fatalf("got host=%q", hs)
	}
}

func TestAnnotateDeleteRemovesLabel(t *testing.T) {
	dataTag := tag.New(tag.Inbound, "data2")
	dataBroadcast := dag.NewBroadcast(dataTag, 8)
	dataSub := dataBroadcast.Subscribe()

	ctrlTag := tag.New(tag.Inbound, "ctrl2")
	ctrlBroadcast := dag.NewBroadcast(ctrlTag, 8)
	ctrlSub := ctrlBroadcast.Subscribe()

	outTag := tag.New(tag.Pipe, "annotate2")
	out := dag.NewBroadcast(outTag, 8)
	outSub := out.Subscribe()

	p := NewAnnotate(outTag, AnnotateConfig{RecvTimeout: 10 * time.Millisecond, BatchSize: 8},
		[]*dag.Subscriber{dataSub}, []*dag.Subscriber{ctrlSub}, out)

	ctrl := record.New()
	ctrl.SetString("action", value.NewString(actionDelete))
	ctrl.SetString("name", value.NewString("host"))
	ctrlBroadcast.Publish(ctrl)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Poll(ctx); err != nil {
		t.Fatalf("poll 1: %v", err)
	}

	dataBroadcast.Publish(newLabeledRecord("cpu_load", "node01"))
	if err := p.Poll(ctx); err != nil {
		t.Fatalf("poll 2: %v", err)
	}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	got, err := outSub.Recv(recvCtx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	labelsVal, _ := got.GetString("labels")
	labels, _ := labelsVal.AsMap()
	if _, ok := labels.GetString("host"); ok {
		t.Fatal("expected host label to be removed")
	}
}

func TestAnnotateUnknownActionLogsAndIgnores(t *testing.T) {
	ctrlTag := tag.New(tag.Inbound, "ctrl3")
	ctrlBroadcast := dag.NewBroadcast(ctrlTag, 8)
	ctrlSub := ctrlBroadcast.Subscribe()

	dataTag := tag.New(tag.Inbound, "data3")
	dataSub := dag.NewBroadcast(dataTag, 8).Subscribe()

	outTag := tag.New(tag.Pipe, "annotate3")
	out := dag.NewBroadcast(outTag, 8)

	p := NewAnnotate(outTag, AnnotateConfig{RecvTimeout: 10 * time.Millisecond}, []*dag.Subscriber{dataSub}, []*dag.Subscriber{ctrlSub}, out)

	ctrl := record.New()
	ctrl.SetString("action", value.NewString("bogus"))
	ctrlBroadcast.Publish(ctrl)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(p.labelsToAdd) != 0 || len(p.labelsToRemove) != 0 {
		t.Fatal("unknown action must not mutate state")
	}
}
