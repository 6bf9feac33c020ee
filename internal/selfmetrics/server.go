// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package selfmetrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ClusterCockpit/cc-dataplane/pkg/log"
)

// Server serves the self-metrics registry as Prometheus text format.
// A zero-value addr disables it entirely: Listen returns nil and Serve
// is never invoked, matching the default-disabled debug_addr.
type Server struct {
	addr   string
	server *http.Server
}

// NewServer builds a Server bound to addr ("" disables it).
func NewServer(addr string) *Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Listen binds the configured address, returning nil immediately if no
// address was configured. Separated from Serve so a caller can detect
// a bind failure before committing to a background goroutine.
func (s *Server) Listen() (net.Listener, error) {
	if s.addr == "" {
		return nil, nil
	}
	return net.Listen("tcp", s.addr)
}

// Serve accepts connections on l until the server is shut down. Call
// in its own goroutine; returns nil on a graceful Shutdown.
func (s *Server) Serve(l net.Listener) error {
	log.Infof("self-metrics server listening at %s", s.addr)
	if err := s.server.Serve(l); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.addr == "" {
		return nil
	}
	return s.server.Shutdown(ctx)
}
