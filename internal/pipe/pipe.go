// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipe implements the actor.Stage-conforming transforms that sit
// between inbounds and outbounds in the pipeline graph: the Timeseries
// split pipe, the stateful Annotate pipe, and the supplemental
// expression-based Filter pipe.
package pipe

import "time"

// DefaultRecvTimeout bounds how long a pipe's poll iteration waits for
// the next record before returning control to the runtime, which then
// re-invokes Poll immediately. A short timeout keeps shutdown responsive
// without busy-looping.
const DefaultRecvTimeout = time.Second
