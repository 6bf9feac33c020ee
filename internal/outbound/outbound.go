// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package outbound implements the actor.Stage-conforming sinks that
// drain the pipeline: the Prometheus remote-write sink, the columnar
// (Avro-backed) file sink, and the stdio debug sink.
package outbound

import "time"

// DefaultRecvTimeout bounds a single poll iteration's batch receive
// when a sink's config doesn't override it.
const DefaultRecvTimeout = time.Second
