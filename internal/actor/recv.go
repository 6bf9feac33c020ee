// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package actor implements the poll-based stage runtime: the
// recv/recv_batch primitives that race a stage's subscribers, the
// hierarchical-cancellation poll loop, and the per-stage lifecycle
// state machine.
package actor

import (
	"context"
	"reflect"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/pkg/log"
)

// raceOnce waits for whichever subscriber's persistent reader (see
// Subscriber.Stream) produces a result first, bounded by timeLeft and
// ctx. Unlike spawning a fresh racer goroutine per call, every
// Subscriber has exactly one long-lived goroutine ever reading it, so
// back-to-back calls never contend over the same channel.
func raceOnce(ctx context.Context, subs []*dag.Subscriber, timeLeft time.Duration) (*record.Record, error, tag.Tag) {
	timer := time.NewTimer(timeLeft)
	defer timer.Stop()

	cases := make([]reflect.SelectCase, 0, len(subs)+2)
	for _, s := range subs {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.Stream())})
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timer.C)})

	chosen, value, _ := reflect.Select(cases)
	if chosen < len(subs) {
		res := value.Interface().(dag.SubscriberResult)
		return res.Rec, res.Err, subs[chosen].Tag()
	}
	// ctx.Done() or the timer fired: both surface as Canceled, exactly
	// as the per-call derived context used to. RecvBatch distinguishes
	// a real cancellation from a plain timeout by checking ctx.Err().
	return nil, perr.Canceled(), tag.Tag{}
}

// Recv returns the next record available from any of subs, racing them
// all simultaneously, bounded by timeout. Equivalent to RecvBatch with
// targetCount 1.
func Recv(ctx context.Context, who tag.Tag, subs []*dag.Subscriber, timeout time.Duration) (*record.Record, error) {
	batch, err := RecvBatch(ctx, who, subs, timeout, 1)
	if err != nil {
		return nil, err
	}
	return batch[0], nil
}

// RecvBatch accumulates up to targetCount records from subs, racing
// every subscriber on each attempt. It returns early with whatever was
// accumulated once timeout elapses, Err(Timeout) if nothing arrived in
// time, and Err(Canceled) if ctx is done. A Lag signal from any
// subscriber is logged and does not count as an error: the per-call
// time budget is reset to the remaining timeout and the loop continues.
func RecvBatch(ctx context.Context, who tag.Tag, subs []*dag.Subscriber, timeout time.Duration, targetCount int) ([]*record.Record, error) {
	if targetCount <= 0 {
		targetCount = 1
	}

	start := time.Now()
	timeLeft := timeout
	var records []*record.Record

	for {
		rec, err, upstream := raceOnce(ctx, subs, timeLeft)

		switch e := err.(type) {
		case nil:
			records = append(records, rec)
			if len(records) >= targetCount {
				log.Debugf("%s received %d record(s), last from %s", who, len(records), upstream)
				return records, nil
			}
			timeLeft = remaining(timeout, start)
			continue

		case *perr.ChannelClosedError:
			return nil, err

		case *perr.ChannelLaggedError:
			log.Warnf("%s: inbound %s lagged additional %d", who, upstream, e.N)
			timeLeft = remaining(timeout, start)
			continue

		case *perr.CanceledError:
			if ctx.Err() != nil {
				return nil, perr.Canceled()
			}
			if len(records) == 0 {
				return nil, perr.Timeout()
			}
			return records, nil

		default:
			return nil, err
		}
	}
}

func remaining(timeout time.Duration, since time.Time) time.Duration {
	left := timeout - time.Since(since)
	if left < 0 {
		return 0
	}
	return left
}
