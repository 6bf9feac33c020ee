// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dag

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/selfmetrics"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

// DefaultBufferSize is the per-subscriber channel capacity used when a
// stage's config doesn't override it.
const DefaultBufferSize = 128

// Broadcast is the fan-out primitive that connects one producing stage
// to every downstream stage that declared it as an upstream. It never
// blocks the producer: a subscriber that can't keep up has its oldest
// buffered record dropped, and the drop count is surfaced to it as a
// ChannelLagged error on its next Recv, mirroring tokio's broadcast
// channel semantics without an unbounded growth risk.
type Broadcast struct {
	mu      sync.Mutex
	tag     tag.Tag
	bufSize int
	subs    map[*Subscriber]struct{}
	closed  bool
}

// NewBroadcast creates a Broadcast owned by the stage identified by t,
// with per-subscriber buffer capacity bufSize (DefaultBufferSize if <= 0).
func NewBroadcast(t tag.Tag, bufSize int) *Broadcast {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Broadcast{
		tag:     t,
		bufSize: bufSize,
		subs:    make(map[*Subscriber]struct{}),
	}
}

// Tag returns the tag of the stage this Broadcast belongs to, used by
// Subscriber to identify the upstream in error messages.
func (b *Broadcast) Tag() tag.Tag { return b.tag }

// Subscribe registers a new receiver. Safe to call concurrently with
// Publish.
func (b *Broadcast) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		upstream: b.tag,
		ch:       make(chan *record.Record, b.bufSize),
		parent:   b,
	}
	if b.closed {
		close(sub.ch)
		sub.closedFlag.Store(true)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *Broadcast) unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Publish delivers rec to every current subscriber. Never blocks: a
// full subscriber channel has its oldest entry dropped to make room.
func (b *Broadcast) Publish(rec *record.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		sub.deliver(rec)
	}
	selfmetrics.IncRecordsIngested(b.tag, 1)
}

// Close marks the Broadcast closed and closes every current
// subscriber's channel; further Subscribe calls return an
// already-closed Subscriber.
func (b *Broadcast) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.closedFlag.Store(true)
		close(sub.ch)
	}
	b.subs = make(map[*Subscriber]struct{})
}

// Subscriber is one receiver's view of a Broadcast.
type Subscriber struct {
	upstream   tag.Tag
	ch         chan *record.Record
	lagged     atomic.Uint64
	closedFlag atomic.Bool
	sendMu     sync.Mutex
	parent     *Broadcast

	streamOnce sync.Once
	streamOut  chan SubscriberResult
}

// SubscriberResult is one outcome of a Subscriber's persistent reader
// goroutine: either a record, or the terminal ChannelClosed error.
type SubscriberResult struct {
	Rec *record.Record
	Err error
}

// Tag returns the upstream stage's tag, used by recv/recv_batch to
// attribute errors and log lines.
func (s *Subscriber) Tag() tag.Tag { return s.upstream }

func (s *Subscriber) deliver(rec *record.Record) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closedFlag.Load() {
		return
	}

	select {
	case s.ch <- rec:
		return
	default:
	}

	// Full: drop the oldest buffered record to make room, then deliver.
	select {
	case <-s.ch:
		s.lagged.Add(1)
		selfmetrics.IncChannelLag(s.upstream)
	default:
	}

	select {
	case s.ch <- rec:
	default:
		// Lost a race with a concurrent drain; count it as another lag.
		s.lagged.Add(1)
		selfmetrics.IncChannelLag(s.upstream)
	}
}

// Recv returns the next record. If records were dropped since the last
// Recv, it instead returns a ChannelLagged error immediately (not
// waiting for new data), so the caller can log and retry. Returns
// ChannelClosed once the upstream Broadcast is closed and drained, and
// Canceled if ctx is done first.
func (s *Subscriber) Recv(ctx context.Context) (*record.Record, error) {
	if n := s.lagged.Swap(0); n > 0 {
		return nil, perr.ChannelLagged(s.upstream, n)
	}

	select {
	case rec, ok := <-s.ch:
		if !ok {
			return nil, perr.ChannelClosed(s.upstream)
		}
		return rec, nil
	case <-ctx.Done():
		return nil, perr.Canceled()
	}
}

// Stream starts, on first call, a single long-lived goroutine that is
// the only reader of s's underlying channel for the rest of s's
// lifetime, and returns the channel it publishes results to. Racing
// Recv across many subscribers by spawning a fresh goroutine per call
// (one per RecvBatch iteration) left a window where a losing goroutine
// from a previous call and a new goroutine from the next call could
// both be selecting on the same Subscriber concurrently, so the loser
// could still win the race, pull a record off s.ch, and hand it to an
// already-abandoned caller — silently dropping it. Funneling every
// receive through one persistent goroutine per Subscriber removes that
// window: callers race Stream()'s output channels instead of s.ch
// itself, so at most one goroutine ever touches a given s.ch.
func (s *Subscriber) Stream() <-chan SubscriberResult {
	s.streamOnce.Do(func() {
		s.streamOut = make(chan SubscriberResult, 1)
		go func() {
			for {
				rec, err := s.Recv(context.Background())
				s.streamOut <- SubscriberResult{Rec: rec, Err: err}
				if _, ok := err.(*perr.ChannelClosedError); ok {
					return
				}
			}
		}()
	})
	return s.streamOut
}

// Unsubscribe removes this subscriber from its parent Broadcast.
func (s *Subscriber) Unsubscribe() {
	s.parent.unsubscribe(s)
}
