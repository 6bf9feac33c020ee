// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package inbound

import (
	"bytes"
	"context"
	"sync"

	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/protocol"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/internal/tracing"
	"github.com/ClusterCockpit/cc-dataplane/pkg/log"
	ccnats "github.com/ClusterCockpit/cc-dataplane/pkg/nats"
)

// NATS is a supplemental inbound, beyond the two the base spec names,
// that subscribes to a NATS subject and parses every message body
// through the configured protocol (typically Influx line protocol).
// Unlike the socket/FIFO inbounds, one incoming message is one
// complete parse unit: the protocol factory is invoked fresh per
// message rather than once per long-lived connection.
type NATS struct {
	Subject         string
	ProtocolFactory ProtocolFactory
	Producer        *dag.Broadcast

	tag tag.Tag

	once    sync.Once
	started bool
	setupErr error
}

// NewNATS builds a NATS inbound identified by t, subscribing to
// subject on the process-wide NATS client configured via pkg/nats.
func NewNATS(t tag.Tag, subject string, factory ProtocolFactory, producer *dag.Broadcast) *NATS {
	return &NATS{Subject: subject, ProtocolFactory: factory, Producer: producer, tag: t}
}

// Tag implements actor.Stage.
func (n *NATS) Tag() tag.Tag { return n.tag }

// Poll implements actor.Stage. The first call subscribes and lets the
// NATS client's own goroutine deliver messages via callback; Poll
// itself just blocks on cancellation once subscribed.
func (n *NATS) Poll(ctx context.Context) error {
	if !n.started {
		n.started = true

		client := ccnats.GetClient()
		if client == nil {
			return perr.Io(errNoNATSClient{})
		}

		if err := client.Subscribe(n.Subject, func(subject string, data []byte) {
			parser := n.ProtocolFactory(bytes.NewReader(data))
			n.drain(subject, parser)
		}); err != nil {
			return perr.Io(err)
		}
		log.Infof("%s: subscribed to NATS subject %q", n.tag, n.Subject)
	}

	<-ctx.Done()
	return nil
}

func (n *NATS) drain(subject string, parser protocol.Protocol) {
	for {
		rec, err := parser.ReadNext()
		if err != nil {
			if _, ok := err.(*perr.ProtocolEOFError); !ok {
				log.Errorf("%s: message on %q: %v", n.tag, subject, err)
			}
			return
		}
		rec.Tracing.Mark(n.tag, tracing.Incoming)
		rec.Tracing.Mark(n.tag, tracing.Outgoing)
		n.Producer.Publish(rec)
	}
}

type errNoNATSClient struct{}

func (errNoNATSClient) Error() string { return "NATS client not initialized" }
