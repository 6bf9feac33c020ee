// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package runtime builds the channel DAG and every actor.Stage
// instance a decoded config.Root declares, wiring them together before
// any stage starts polling. Grounded on
// original_source/src/core/manager/mod.rs's try_create_from_config:
// build the channel graph first, then construct inbounds, pipes, and
// outbounds against it in that order.
package runtime

// DefaultBufferSize is the broadcast channel buffer every stage gets
// unless its config overrides it.
const DefaultBufferSize = 128
