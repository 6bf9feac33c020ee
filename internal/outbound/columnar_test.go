// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package outbound

import (
	"encoding/json"
	"testing"

	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

func TestDeriveSchemaCoversAllFields(t *testing.T) {
	rec := record.New()
	rec.SetString("host", value.NewString("node01"))
	rec.SetString("value", value.NewFloat(1.5))
	rec.SetString("count", value.NewInt(3))

	schemaJSON, err := deriveSchema([]*record.Record{rec})
	if err != nil {
		t.Fatalf("deriveSchema: %v", err)
	}

	var parsed struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(schemaJSON), &parsed); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if len(parsed.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(parsed.Fields))
	}
}

func TestDeriveSchemaEmptyBatchFails(t *testing.T) {
	if _, err := deriveSchema(nil); err == nil {
		t.Fatal("expected an error deriving a schema from an empty batch")
	}
}

func TestAvroTypeOfPrefersNumericKinds(t *testing.T) {
	if got := avroTypeOf(value.NewInt(1)); got != "long" {
		t.Fatalf("expected long, got %s", got)
	}
	if got := avroTypeOf(value.NewFloat(1.5)); got != "double" {
		t.Fatalf("expected double, got %s", got)
	}
	if got := avroTypeOf(value.NewString("x")); got != "string" {
		t.Fatalf("expected string, got %s", got)
	}
}

func TestParseCompressionSchemeRejectsLzo(t *testing.T) {
	if _, err := ParseCompressionScheme("lzo"); err == nil {
		t.Fatal("expected lzo to be rejected")
	}
}

func TestParseCompressionSchemeAcceptsKnownSchemes(t *testing.T) {
	for _, name := range []string{"", "none", "snappy", "gzip", "brotli"} {
		if _, err := ParseCompressionScheme(name); err != nil {
			t.Fatalf("scheme %q: %v", name, err)
		}
	}
}

func TestParseCompressionSchemeRejectsUnknown(t *testing.T) {
	if _, err := ParseCompressionScheme("zstd"); err == nil {
		t.Fatal("expected an unknown scheme to be rejected")
	}
}
