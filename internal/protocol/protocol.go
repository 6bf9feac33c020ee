// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package protocol implements the pluggable wire-format parsers that
// turn a byte stream into Records: CSV, Graphite plaintext, and the
// supplemental Influx line protocol.
package protocol

import (
	"bufio"
	"io"

	"github.com/ClusterCockpit/cc-dataplane/internal/record"
)

// Protocol reads successive Records off a byte source. Implementations
// own their reader and are not safe for concurrent use; one Protocol
// backs exactly one connection/FIFO.
type Protocol interface {
	ReadNext() (*record.Record, error)
}

// newLineReader is the common bufio.Reader construction every parser
// in this package uses, sized to match a typical metrics line.
func newLineReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 8192)
}
