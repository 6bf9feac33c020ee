// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package inbound

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

// DefaultFIFOPermissions is used when a NamedPipe's config doesn't
// override it.
const DefaultFIFOPermissions = 0o777

// NamedPipe is an inbound that reads from a FIFO. Unlike UnixSocket it
// has exactly one "connection": the FIFO's reader end, opened once and
// parsed for the lifetime of the stage.
type NamedPipe struct {
	Path            string
	Permissions     uint32
	ProtocolFactory ProtocolFactory
	Producer        *dag.Broadcast

	tag tag.Tag

	once    sync.Once
	file    *os.File
	started bool
	setupErr error
}

// NewNamedPipe builds a NamedPipe inbound identified by t.
func NewNamedPipe(t tag.Tag, path string, perm uint32, factory ProtocolFactory, producer *dag.Broadcast) *NamedPipe {
	if perm == 0 {
		perm = DefaultFIFOPermissions
	}
	return &NamedPipe{Path: path, Permissions: perm, ProtocolFactory: factory, Producer: producer, tag: t}
}

// Tag implements actor.Stage.
func (p *NamedPipe) Tag() tag.Tag { return p.tag }

func (p *NamedPipe) setup() {
	p.once.Do(func() {
		if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
			p.setupErr = perr.Io(err)
			return
		}
		if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
			p.setupErr = perr.Io(err)
			return
		}
		if err := unix.Mkfifo(p.Path, p.Permissions); err != nil {
			p.setupErr = perr.Io(err)
			return
		}

		f, err := os.OpenFile(p.Path, os.O_RDONLY, os.ModeNamedPipe)
		if err != nil {
			p.setupErr = perr.Io(err)
			return
		}
		p.file = f
	})
}

// Poll implements actor.Stage. The first call creates the FIFO, opens
// its reader end and spawns the single parse-and-forward task that
// then runs for the stage's entire lifetime; subsequent calls just
// observe cancellation. On shutdown the FIFO file is unlinked.
func (p *NamedPipe) Poll(ctx context.Context) error {
	p.setup()
	if p.setupErr != nil {
		return p.setupErr
	}

	if !p.started {
		p.started = true
		go runConnection(ctx, p.tag, p.file, p.ProtocolFactory(p.file), p.Producer)
	}

	<-ctx.Done()
	_ = os.Remove(p.Path)
	return nil
}
