// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package inbound

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/pkg/log"
)

// UnixSocket is an inbound that accepts connections on a unix domain
// socket and runs one parse-and-forward task per connection.
type UnixSocket struct {
	Path            string
	ProtocolFactory ProtocolFactory
	Producer        *dag.Broadcast

	tag tag.Tag

	once     sync.Once
	listener net.Listener
	setupErr error
}

// NewUnixSocket builds a UnixSocket inbound identified by t.
func NewUnixSocket(t tag.Tag, path string, factory ProtocolFactory, producer *dag.Broadcast) *UnixSocket {
	return &UnixSocket{Path: path, ProtocolFactory: factory, Producer: producer, tag: t}
}

// Tag implements actor.Stage.
func (u *UnixSocket) Tag() tag.Tag { return u.tag }

func (u *UnixSocket) setup() {
	u.once.Do(func() {
		if err := os.MkdirAll(filepath.Dir(u.Path), 0o755); err != nil {
			u.setupErr = perr.Io(err)
			return
		}
		if err := os.Remove(u.Path); err != nil && !os.IsNotExist(err) {
			u.setupErr = perr.Io(err)
			return
		}

		l, err := net.Listen("unix", u.Path)
		if err != nil {
			u.setupErr = perr.Io(err)
			return
		}
		u.listener = l
	})
}

// Poll implements actor.Stage: accepts one connection and spawns its
// parse-and-forward task, then returns so the runtime re-invokes Poll
// for the next connection. On first call it binds the listener; on
// shutdown it unlinks the socket file.
func (u *UnixSocket) Poll(ctx context.Context) error {
	u.setup()
	if u.setupErr != nil {
		return u.setupErr
	}

	closeOnce := make(chan struct{})
	var closer sync.Once
	go func() {
		select {
		case <-ctx.Done():
			closer.Do(func() {
				_ = u.listener.Close()
				_ = os.Remove(u.Path)
			})
		case <-closeOnce:
		}
	}()

	conn, err := u.listener.Accept()
	close(closeOnce)

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.Errorf("%s: accept failed: %v", u.tag, err)
		return perr.Io(err)
	}

	log.Debugf("%s: accepted connection", u.tag)
	go runConnection(ctx, u.tag, conn, u.ProtocolFactory(conn), u.Producer)

	return nil
}
