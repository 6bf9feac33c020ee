// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/actor"
	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/selfmetrics"
	"github.com/ClusterCockpit/cc-dataplane/internal/symbol"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/internal/tracing"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

// StdioFormat selects how Stdio renders a Record.
type StdioFormat int

const (
	// StdioLine renders "key=value key=value ..." per Record, one line each.
	StdioLine StdioFormat = iota
	// StdioJSON renders one compact JSON object per Record, newline-delimited.
	StdioJSON
)

// StdioConfig configures the debug Stdio outbound.
type StdioConfig struct {
	Format      StdioFormat
	Writer      io.Writer // defaults to os.Stdout
	RecvTimeout time.Duration
	BatchSize   int
}

// Stdio is a debug outbound: it renders every received Record as a
// line of text to a writer (stdout by default), useful for inspecting
// a pipeline without standing up a real sink.
type Stdio struct {
	tg tag.Tag

	inbounds    []*dag.Subscriber
	format      StdioFormat
	w           io.Writer
	recvTimeout time.Duration
	batchSize   int
}

// NewStdio builds a Stdio outbound identified by t.
func NewStdio(t tag.Tag, cfg StdioConfig, inbounds []*dag.Subscriber) *Stdio {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	recvTimeout := cfg.RecvTimeout
	if recvTimeout <= 0 {
		recvTimeout = DefaultRecvTimeout
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1024
	}
	return &Stdio{
		tg:          t,
		inbounds:    inbounds,
		format:      cfg.Format,
		w:           w,
		recvTimeout: recvTimeout,
		batchSize:   batchSize,
	}
}

// Tag implements actor.Stage.
func (s *Stdio) Tag() tag.Tag { return s.tg }

// Poll implements actor.Stage.
func (s *Stdio) Poll(ctx context.Context) error {
	records, err := actor.RecvBatch(ctx, s.tg, s.inbounds, s.recvTimeout, s.batchSize)
	switch err.(type) {
	case nil:
	case *perr.TimeoutError, *perr.CanceledError:
		return nil
	default:
		return err
	}

	for _, rec := range records {
		rec.Tracing.Mark(s.tg, tracing.Incoming)
		var line string
		switch s.format {
		case StdioJSON:
			line = renderJSON(rec)
		default:
			line = renderLine(rec)
		}
		if _, err := fmt.Fprintln(s.w, line); err != nil {
			return perr.Io(err)
		}
		rec.Tracing.Mark(s.tg, tracing.Outgoing)
		rec.Tracing.Record()
	}
	selfmetrics.ObserveOutboundBatch(s.tg, len(records))
	return nil
}

func renderLine(rec *record.Record) string {
	out := ""
	rec.Range(func(k symbol.Symbol, v value.Value) bool {
		if out != "" {
			out += " "
		}
		out += k.String() + "=" + v.Stringify()
		return true
	})
	return out
}

func renderJSON(rec *record.Record) string {
	m := make(map[string]string)
	rec.Range(func(k symbol.Symbol, v value.Value) bool {
		m[k.String()] = v.Stringify()
		return true
	})
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
