// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads, substitutes, validates, and decodes the
// pipeline's declarative configuration file: four tagged-union lists
// (inbounds, protocols, pipes, outbounds) discriminated by a "type"
// field, following the same map[string]any-then-mapstructure-decode
// shape the pack's plugin-config repos use for polymorphic config
// entries.
package config

import (
	"reflect"

	"github.com/go-viper/mapstructure/v2"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

// dataTypeHookType is the reflect.Type target stringToDataTypeHook
// looks for: a field declared as value.DataType, fed a config string
// like "int" or "float".
var dataTypeHookType = reflect.TypeOf(value.DataType(0))

func stringToDataTypeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != dataTypeHookType {
		return data, nil
	}
	return value.ParseDataType(data.(string))
}

// RawStage is one declared stage entry before it is decoded into its
// type-specific config struct: a "type" discriminator, a "tag" name,
// optional "upstreams", and whatever fields that type needs.
type RawStage map[string]interface{}

// Type returns the stage's "type" discriminator.
func (s RawStage) Type() string {
	v, _ := s["type"].(string)
	return v
}

// Name returns the stage's "tag" name.
func (s RawStage) Name() string {
	v, _ := s["tag"].(string)
	return v
}

// UpstreamNames returns the "upstreams" list: the bare tag names of
// the stages this one reads from. Resolving a name to a scoped tag.Tag
// is the builder's job, since a raw config only names peer tags by
// string and a name may belong to any scope.
func (s RawStage) UpstreamNames() []string {
	raw, _ := s["upstreams"].([]interface{})
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		if name, ok := u.(string); ok {
			out = append(out, name)
		}
	}
	return out
}

// StringField returns the named top-level field as a string, the
// protocol-reference style lookup inbound stages use (e.g. "protocol").
func (s RawStage) StringField(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

// Decode mapstructure-decodes s into dst, the type-specific config
// struct owned by the package that implements this stage (e.g.
// pipe.TimeseriesConfig).
func (s RawStage) Decode(dst interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToDataTypeHook,
		),
	})
	if err != nil {
		return perr.ConfigInvalid(err.Error())
	}
	if err := dec.Decode(map[string]interface{}(s)); err != nil {
		return perr.ConfigInvalid(err.Error())
	}
	return nil
}

// Root is the decoded top-level configuration document.
type Root struct {
	LogLevel    string     `mapstructure:"log_level"`
	DebugAddr   string     `mapstructure:"debug_addr"`
	TimeTracing bool       `mapstructure:"time_tracing"`
	Nats        RawStage   `mapstructure:"nats"`
	Inbounds    []RawStage `mapstructure:"inbounds"`
	Protocols   []RawStage `mapstructure:"protocols"`
	Pipes       []RawStage `mapstructure:"pipes"`
	Outbounds   []RawStage `mapstructure:"outbounds"`
}
