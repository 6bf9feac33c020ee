// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package inbound implements the actor.Stage-conforming sources that
// feed records into the pipeline: a unix domain socket listener, a
// named pipe (FIFO) reader, and the supplemental NATS subscription
// source.
package inbound

import (
	"context"
	"io"

	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/protocol"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/internal/tracing"
	"github.com/ClusterCockpit/cc-dataplane/pkg/log"
)

// ProtocolFactory builds a fresh Protocol parser bound to one
// connection's byte stream. Every inbound is configured with one,
// chosen from the protocol section of the pipeline config.
type ProtocolFactory func(io.Reader) protocol.Protocol

// runConnection is the per-connection task shared by UnixSocket and
// NamedPipe: it repeatedly calls parser.ReadNext, forwarding every
// parsed record to producer, until EOF, a parse error, or ctx is
// canceled. It owns closing conn (if non-nil) once ctx is done, which
// is what unblocks a parser's in-flight Read.
func runConnection(ctx context.Context, who tag.Tag, conn io.Closer, parser protocol.Protocol, producer *dag.Broadcast) {
	if conn != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()
	}

	for {
		if ctx.Err() != nil {
			return
		}

		rec, err := parser.ReadNext()
		if err != nil {
			switch err.(type) {
			case *perr.ProtocolEOFError:
				log.Infof("%s: connection closed (EOF)", who)
			case *perr.ProtocolMismatchError:
				log.Errorf("%s: protocol error: %v", who, err)
			default:
				if ctx.Err() != nil {
					log.Infof("%s: connection closed on shutdown", who)
				} else {
					log.Errorf("%s: read error: %v", who, err)
				}
			}
			return
		}

		rec.Tracing.Mark(who, tracing.Incoming)
		rec.Tracing.Mark(who, tracing.Outgoing)
		producer.Publish(rec)
	}
}
