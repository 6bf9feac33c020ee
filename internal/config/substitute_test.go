// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"strings"
	"testing"
)

func TestSubstituteStringEnvPrefix(t *testing.T) {
	t.Setenv("CC_DATAPLANE_TEST_VAR", "hello")
	got, err := substituteString("env:CC_DATAPLANE_TEST_VAR")
	if err != nil {
		t.Fatalf("substituteString: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}

func TestSubstituteStringEnvMissingFails(t *testing.T) {
	if _, err := substituteString("env:CC_DATAPLANE_DEFINITELY_UNSET"); err == nil {
		t.Fatal("expected an error for an unset env var")
	}
}

func TestSubstituteStringFilePrefix(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "secret")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString("s3cr3t"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	f.Close()

	got, err := substituteString("file:" + f.Name())
	if err != nil {
		t.Fatalf("substituteString: %v", err)
	}
	if got != "s3cr3t" {
		t.Fatalf("expected s3cr3t, got %q", got)
	}
}

func TestSubstituteStringNoPrefixIsLiteral(t *testing.T) {
	got, err := substituteString("plain-value")
	if err != nil {
		t.Fatalf("substituteString: %v", err)
	}
	if got != "plain-value" {
		t.Fatalf("expected plain-value, got %q", got)
	}
}

func TestExpandPathTemplateHostname(t *testing.T) {
	hostname, _ := os.Hostname()
	got, err := ExpandPathTemplate("/var/run/{{hostname}}.sock")
	if err != nil {
		t.Fatalf("ExpandPathTemplate: %v", err)
	}
	if !strings.Contains(got, hostname) {
		t.Fatalf("expected expansion to contain hostname %q, got %q", hostname, got)
	}
}

func TestExpandPathTemplateRandomN(t *testing.T) {
	got, err := ExpandPathTemplate("/tmp/{{random:6}}.sock")
	if err != nil {
		t.Fatalf("ExpandPathTemplate: %v", err)
	}
	if len(got) != len("/tmp/.sock")+6 {
		t.Fatalf("expected a 6-char random token, got %q", got)
	}
}

func TestExpandPathTemplateUnknownTokenFails(t *testing.T) {
	if _, err := ExpandPathTemplate("{{bogus}}"); err == nil {
		t.Fatal("expected an error for an unknown template token")
	}
}

func TestSubstituteTreeWalksNestedMaps(t *testing.T) {
	t.Setenv("CC_DATAPLANE_NESTED_VAR", "nested-value")
	tree := map[string]interface{}{
		"outer": map[string]interface{}{
			"inner": []interface{}{"env:CC_DATAPLANE_NESTED_VAR", "literal"},
		},
	}
	out, err := substituteTree(tree)
	if err != nil {
		t.Fatalf("substituteTree: %v", err)
	}
	inner := out.(map[string]interface{})["outer"].(map[string]interface{})["inner"].([]interface{})
	if inner[0] != "nested-value" {
		t.Fatalf("expected nested substitution, got %v", inner[0])
	}
}
