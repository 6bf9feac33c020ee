// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"bufio"
	"io"
	"strings"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
)

// lineScanner reads newline-delimited text protocols (Graphite, Influx
// line protocol), tolerating both "\n" and "\r\n" terminators.
type lineScanner struct {
	r *bufio.Reader
}

func newLineScanner(r io.Reader) *lineScanner {
	return &lineScanner{r: newLineReader(r)}
}

func (s *lineScanner) readLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", perr.ProtocolEOF()
		}
		if err == io.EOF {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", perr.Io(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
