// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package outbound

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

func TestStdioLineRendersFields(t *testing.T) {
	inTag := tag.New(tag.Pipe, "stdioin")
	in := dag.NewBroadcast(inTag, 8)
	inSub := in.Subscribe()

	var buf bytes.Buffer
	s := NewStdio(tag.New(tag.Outbound, "stdio"), StdioConfig{
		Format:      StdioLine,
		Writer:      &buf,
		RecvTimeout: 50 * time.Millisecond,
	}, []*dag.Subscriber{inSub})

	rec := record.New()
	rec.SetString("host", value.NewString("node01"))
	in.Publish(rec)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}

	if !strings.Contains(buf.String(), "host=node01") {
		t.Fatalf("expected rendered line to contain host=node01, got %q", buf.String())
	}
}

func TestStdioJSONRendersValidObject(t *testing.T) {
	inTag := tag.New(tag.Pipe, "stdiojsonin")
	in := dag.NewBroadcast(inTag, 8)
	inSub := in.Subscribe()

	var buf bytes.Buffer
	s := NewStdio(tag.New(tag.Outbound, "stdiojson"), StdioConfig{
		Format:      StdioJSON,
		Writer:      &buf,
		RecvTimeout: 50 * time.Millisecond,
	}, []*dag.Subscriber{inSub})

	rec := record.New()
	rec.SetString("host", value.NewString("node01"))
	in.Publish(rec)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}

	if !strings.Contains(buf.String(), `"host":"node01"`) {
		t.Fatalf("expected rendered JSON to contain the host field, got %q", buf.String())
	}
}
