// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package selfmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

func TestIncRecordsIngested(t *testing.T) {
	tg := tag.New(tag.Outbound, "test-out")
	before := testutil.ToFloat64(RecordsIngested.WithLabelValues(tg.String()))
	IncRecordsIngested(tg, 5)
	after := testutil.ToFloat64(RecordsIngested.WithLabelValues(tg.String()))
	if after-before != 5 {
		t.Fatalf("expected counter to increase by 5, got delta %v", after-before)
	}
}

func TestIncChannelLag(t *testing.T) {
	tg := tag.New(tag.Pipe, "test-pipe")
	before := testutil.ToFloat64(ChannelLagEvents.WithLabelValues(tg.String()))
	IncChannelLag(tg)
	after := testutil.ToFloat64(ChannelLagEvents.WithLabelValues(tg.String()))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got delta %v", after-before)
	}
}

func TestSetStageState(t *testing.T) {
	tg := tag.New(tag.Inbound, "test-in")
	SetStageState(tg, 1)
	if got := testutil.ToFloat64(StageState.WithLabelValues(tg.String())); got != 1 {
		t.Fatalf("expected gauge 1, got %v", got)
	}
}

func TestNewServerDisabledWhenAddrEmpty(t *testing.T) {
	s := NewServer("")
	l, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if l != nil {
		t.Fatal("expected a nil listener when no debug address is configured")
	}
}
