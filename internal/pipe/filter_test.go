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

func TestFilterDropsNonMatching(t *testing.T) {
	in, inSub := newTestBroadcast(t, "filterin")
	outTag := tag.New(tag.Pipe, "filter")
	out := dag.NewBroadcast(outTag, 8)
	outSub := out.Subscribe()

	p, err := NewFilter(outTag, FilterConfig{Rule: `value > 10`, RecvTimeout: 50 * time.Millisecond}, []*dag.Subscriber{inSub}, out)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	low := record.New()
	low.SetString("value", value.NewFloat(1))
	in.Publish(low)

	high := record.New()
	high.SetString("value", value.NewFloat(20))
	in.Publish(high)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := p.Poll(ctx); err != nil {
		t.Fatalf("poll 1: %v", err)
	}
	if err := p.Poll(ctx); err != nil {
		t.Fatalf("poll 2: %v", err)
	}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer recvCancel()
	got, err := outSub.Recv(recvCtx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	v, _ := got.GetString("value")
	f, _ := v.AsFloat()
	if f != 20 {
		t.Fatalf("expected the matching record to pass through, got %v", f)
	}
}

func TestNewFilterRejectsInvalidRule(t *testing.T) {
	outTag := tag.New(tag.Pipe, "badfilter")
	out := dag.NewBroadcast(outTag, 8)
	if _, err := NewFilter(outTag, FilterConfig{Rule: "("}, nil, out); err == nil {
		t.Fatal("expected a compile error for a malformed rule")
	}
}
