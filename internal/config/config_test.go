// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"testing"
	"time"
)

func TestRawStageTypeAndName(t *testing.T) {
	s := RawStage{"type": "unix_socket", "tag": "in1"}
	if s.Type() != "unix_socket" {
		t.Fatalf("expected type unix_socket, got %q", s.Type())
	}
	if s.Name() != "in1" {
		t.Fatalf("expected tag in1, got %q", s.Name())
	}
}

func TestRawStageUpstreamNames(t *testing.T) {
	s := RawStage{"upstreams": []interface{}{"a", "b"}}
	got := s.UpstreamNames()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestRawStageDecodeDurationField(t *testing.T) {
	s := RawStage{"recv_timeout": "5ms"}
	var cfg struct {
		RecvTimeout time.Duration `mapstructure:"recv_timeout"`
	}
	if err := s.Decode(&cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.RecvTimeout != 5*time.Millisecond {
		t.Fatalf("expected 5ms, got %v", cfg.RecvTimeout)
	}
}

func TestValidateRejectsStageMissingType(t *testing.T) {
	doc := map[string]interface{}{
		"inbounds": []interface{}{
			map[string]interface{}{"tag": "in1"},
		},
	}
	if err := Validate(doc); err == nil {
		t.Fatal("expected validation to fail for a stage missing its type field")
	}
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	doc := map[string]interface{}{
		"inbounds": []interface{}{
			map[string]interface{}{"type": "unix_socket", "tag": "in1"},
		},
	}
	if err := Validate(doc); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
