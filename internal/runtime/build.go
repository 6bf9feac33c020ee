// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package runtime

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/actor"
	"github.com/ClusterCockpit/cc-dataplane/internal/config"
	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/inbound"
	"github.com/ClusterCockpit/cc-dataplane/internal/outbound"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/pipe"
	"github.com/ClusterCockpit/cc-dataplane/internal/protocol"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	ccnats "github.com/ClusterCockpit/cc-dataplane/pkg/nats"
)

// Build validates root's channel DAG, wires a Broadcast per producing
// stage, and constructs every declared stage against it, returning
// them in the order actor.Runtime should drive them. Grounded on
// try_create_from_config's sequencing: channel graph first, then
// inbounds, then pipes/outbounds against it.
func Build(root *config.Root) ([]actor.Stage, error) {
	graph, err := buildGraph(root)
	if err != nil {
		return nil, err
	}

	wiring := dag.Wire(graph, dag.BufferSize{
		Default:     DefaultBufferSize,
		ScaleFactor: channelScaleFactors(root),
	})

	protocols := make(map[string]config.RawStage, len(root.Protocols))
	for _, p := range root.Protocols {
		protocols[p.Name()] = p
	}

	if natsNeeded(root) {
		if err := initNats(root.Nats); err != nil {
			return nil, err
		}
	}

	var stages []actor.Stage

	for _, raw := range root.Inbounds {
		t := tag.New(tag.Inbound, raw.Name())
		stage, err := buildInbound(t, raw, protocols, wiring.Producer(t))
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}

	for _, t := range graph.Order() {
		if t.Scope != tag.Pipe {
			continue
		}
		raw := findStage(root.Pipes, t.Name)
		stage, err := buildPipe(t, raw, graph, wiring)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}

	for _, raw := range root.Outbounds {
		t := tag.New(tag.Outbound, raw.Name())
		stage, err := buildOutbound(t, raw, wiring.Subscribe(graph, t))
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}

	return stages, nil
}

func buildGraph(root *config.Root) (*dag.Graph, error) {
	var nodes []dag.Node
	for _, raw := range root.Inbounds {
		nodes = append(nodes, dag.Node{Tag: tag.New(tag.Inbound, raw.Name())})
	}
	for _, raw := range root.Pipes {
		nodes = append(nodes, dag.Node{
			Tag:       tag.New(tag.Pipe, raw.Name()),
			Upstreams: resolveUpstreams(raw, root),
		})
	}
	for _, raw := range root.Outbounds {
		nodes = append(nodes, dag.Node{
			Tag:       tag.New(tag.Outbound, raw.Name()),
			Upstreams: resolveUpstreams(raw, root),
		})
	}
	return dag.Build(nodes)
}

// resolveUpstreams maps the bare names a stage declares to scoped tags
// by searching inbounds, then pipes, for a matching name (an outbound
// or pipe may read from either). An annotate pipe's control_upstreams
// are appended after its data upstreams, in that fixed order, so
// buildPipe can split the resulting subscriber slice back apart.
func resolveUpstreams(raw config.RawStage, root *config.Root) []tag.Tag {
	var out []tag.Tag
	for _, name := range raw.UpstreamNames() {
		out = append(out, resolveTagByName(name, root))
	}
	if raw.Type() == "annotate" {
		for _, name := range rawStringSlice(raw, "control_upstreams") {
			out = append(out, resolveTagByName(name, root))
		}
	}
	return out
}

func resolveTagByName(name string, root *config.Root) tag.Tag {
	for _, in := range root.Inbounds {
		if in.Name() == name {
			return tag.New(tag.Inbound, name)
		}
	}
	for _, p := range root.Pipes {
		if p.Name() == name {
			return tag.New(tag.Pipe, name)
		}
	}
	return tag.New(tag.Pipe, name)
}

func findStage(stages []config.RawStage, name string) config.RawStage {
	for _, s := range stages {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func rawStringSlice(raw config.RawStage, key string) []string {
	vals, _ := raw[key].([]interface{})
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// channelScaleFactors builds the per-producer buffer scale map
// dag.Wire expects: file-batching sinks and annotate pipes declare a
// wider buffer than the default so a slow consumer doesn't stall its
// producer's poll loop, unless the stage overrides "channel_scale"
// itself.
func channelScaleFactors(root *config.Root) map[tag.Tag]int {
	out := make(map[tag.Tag]int)
	for _, raw := range root.Pipes {
		if f := channelScaleFor(raw); f != 1 {
			out[tag.New(tag.Pipe, raw.Name())] = f
		}
	}
	for _, raw := range root.Outbounds {
		if f := channelScaleFor(raw); f != 1 {
			out[tag.New(tag.Outbound, raw.Name())] = f
		}
	}
	return out
}

func channelScaleFor(raw config.RawStage) int {
	switch v := raw["channel_scale"].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	switch raw.Type() {
	case "parquet":
		return 8
	case "annotate":
		return 32
	default:
		return 1
	}
}

func natsNeeded(root *config.Root) bool {
	for _, in := range root.Inbounds {
		if in.Type() == "nats" {
			return true
		}
	}
	for _, out := range root.Outbounds {
		if out.Type() == "nats" {
			return true
		}
	}
	return false
}

func initNats(raw config.RawStage) error {
	if raw == nil {
		return perr.ConfigInvalid("a nats-type stage requires a top-level [nats] config section")
	}
	var cfg ccnats.NatsConfig
	if err := raw.Decode(&cfg); err != nil {
		return err
	}
	ccnats.Keys = cfg
	ccnats.Connect()
	return nil
}

func buildInbound(t tag.Tag, raw config.RawStage, protocols map[string]config.RawStage, producer *dag.Broadcast) (actor.Stage, error) {
	protocolName, _ := raw.StringField("protocol")
	protocolRaw, ok := protocols[protocolName]
	if !ok {
		return nil, perr.ConfigInvalid(fmt.Sprintf("%s: unknown protocol %q", t, protocolName))
	}
	factory, err := buildProtocolFactory(protocolRaw)
	if err != nil {
		return nil, err
	}

	switch raw.Type() {
	case "unix_socket":
		var cfg struct {
			Path string `mapstructure:"path"`
		}
		if err := raw.Decode(&cfg); err != nil {
			return nil, err
		}
		return inbound.NewUnixSocket(t, cfg.Path, factory, producer), nil
	case "named_pipe":
		var cfg struct {
			Path string `mapstructure:"path"`
			Perm uint32 `mapstructure:"perm"`
		}
		if err := raw.Decode(&cfg); err != nil {
			return nil, err
		}
		return inbound.NewNamedPipe(t, cfg.Path, cfg.Perm, factory, producer), nil
	case "nats":
		var cfg struct {
			Subject string `mapstructure:"subject"`
		}
		if err := raw.Decode(&cfg); err != nil {
			return nil, err
		}
		return inbound.NewNATS(t, cfg.Subject, factory, producer), nil
	default:
		return nil, perr.ConfigInvalid(fmt.Sprintf("%s: unknown inbound type %q", t, raw.Type()))
	}
}

func buildProtocolFactory(raw config.RawStage) (inbound.ProtocolFactory, error) {
	switch raw.Type() {
	case "csv":
		var cfg protocol.CSVConfig
		if err := raw.Decode(&cfg); err != nil {
			return nil, err
		}
		return func(r io.Reader) protocol.Protocol { return protocol.NewCSVProtocol(r, cfg) }, nil
	case "graphite":
		var cfg protocol.GraphiteConfig
		if err := raw.Decode(&cfg); err != nil {
			return nil, err
		}
		return func(r io.Reader) protocol.Protocol { return protocol.NewGraphiteProtocol(r, cfg) }, nil
	case "influx":
		var cfg protocol.InfluxConfig
		if err := raw.Decode(&cfg); err != nil {
			return nil, err
		}
		return func(r io.Reader) protocol.Protocol { return protocol.NewInfluxProtocol(r, cfg) }, nil
	default:
		return nil, perr.ConfigInvalid(fmt.Sprintf("unknown protocol type %q", raw.Type()))
	}
}

// buildPipe constructs a pipe stage. For "annotate" it splits the
// upstream subscriber slice wiring built for t (data upstreams,
// then control upstreams, per resolveUpstreams's fixed ordering).
func buildPipe(t tag.Tag, raw config.RawStage, graph *dag.Graph, wiring *dag.Wiring) (actor.Stage, error) {
	producer := wiring.Producer(t)
	subs := wiring.Subscribe(graph, t)

	switch raw.Type() {
	case "timeseries":
		var cfg pipe.TimeseriesConfig
		if err := raw.Decode(&cfg); err != nil {
			return nil, err
		}
		return pipe.NewTimeseries(t, cfg, subs, producer), nil
	case "annotate":
		var cfg pipe.AnnotateConfig
		if err := raw.Decode(&cfg); err != nil {
			return nil, err
		}
		dataCount := len(raw.UpstreamNames())
		dataSubs, controlSubs := subs[:dataCount], subs[dataCount:]
		return pipe.NewAnnotate(t, cfg, dataSubs, controlSubs, producer), nil
	case "filter":
		var cfg pipe.FilterConfig
		if err := raw.Decode(&cfg); err != nil {
			return nil, err
		}
		return pipe.NewFilter(t, cfg, subs, producer)
	default:
		return nil, perr.ConfigInvalid(fmt.Sprintf("%s: unknown pipe type %q", t, raw.Type()))
	}
}

// buildPrometheusConfig decodes an outbound's raw fields into
// outbound.PrometheusConfig, translating the "auth" sub-map's "type"
// discriminator ("none"/"basic"/"bearer") into an outbound.AuthKind.
func buildPrometheusConfig(raw config.RawStage) (outbound.PrometheusConfig, error) {
	var fields struct {
		Endpoint              string        `mapstructure:"endpoint"`
		UserAgent             string        `mapstructure:"user_agent"`
		RecvTimeout           time.Duration `mapstructure:"recv_timeout"`
		RecvBufferSize        int           `mapstructure:"recv_buffer_size"`
		MaxConcurrentRequests int64         `mapstructure:"max_concurrent_requests"`
	}
	if err := raw.Decode(&fields); err != nil {
		return outbound.PrometheusConfig{}, err
	}

	auth, err := buildAuthConfig(raw)
	if err != nil {
		return outbound.PrometheusConfig{}, err
	}

	cfg := outbound.PrometheusConfig{
		Endpoint:              fields.Endpoint,
		Auth:                  auth,
		UserAgent:             fields.UserAgent,
		RecvTimeout:           fields.RecvTimeout,
		RecvBufferSize:        fields.RecvBufferSize,
		MaxConcurrentRequests: fields.MaxConcurrentRequests,
	}
	if cfg.RecvTimeout == 0 {
		cfg.RecvTimeout = outbound.DefaultPrometheusRecvTimeout
	}
	if cfg.RecvBufferSize == 0 {
		cfg.RecvBufferSize = outbound.DefaultPrometheusBatchSize
	}
	if cfg.MaxConcurrentRequests == 0 {
		cfg.MaxConcurrentRequests = outbound.DefaultMaxConcurrentRequests
	}
	return cfg, nil
}

func buildAuthConfig(raw config.RawStage) (outbound.AuthConfig, error) {
	authRaw, ok := raw["auth"].(map[string]interface{})
	if !ok {
		return outbound.AuthConfig{Kind: outbound.AuthNone}, nil
	}
	var fields struct {
		Type     string `mapstructure:"type"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		Token    string `mapstructure:"token"`
	}
	if err := config.RawStage(authRaw).Decode(&fields); err != nil {
		return outbound.AuthConfig{}, err
	}
	cfg := outbound.AuthConfig{Username: fields.Username, Password: fields.Password, Token: fields.Token}
	switch fields.Type {
	case "", "none":
		cfg.Kind = outbound.AuthNone
	case "basic":
		cfg.Kind = outbound.AuthBasic
	case "bearer":
		cfg.Kind = outbound.AuthBearer
	default:
		return outbound.AuthConfig{}, perr.ConfigInvalid(fmt.Sprintf("unknown auth type %q", fields.Type))
	}
	return cfg, nil
}

// buildColumnarConfig decodes an outbound's raw fields into
// outbound.ColumnarConfig, parsing its "compression" string via
// outbound.ParseCompressionScheme.
func buildColumnarConfig(raw config.RawStage) (outbound.ColumnarConfig, error) {
	var fields struct {
		Directory   string        `mapstructure:"directory"`
		Compression string        `mapstructure:"compression"`
		RecvTimeout time.Duration `mapstructure:"recv_timeout"`
		BatchSize   int           `mapstructure:"batch_size"`
	}
	if err := raw.Decode(&fields); err != nil {
		return outbound.ColumnarConfig{}, err
	}
	scheme, err := outbound.ParseCompressionScheme(fields.Compression)
	if err != nil {
		return outbound.ColumnarConfig{}, err
	}
	cfg := outbound.ColumnarConfig{
		Directory:   fields.Directory,
		Compression: scheme,
		RecvTimeout: fields.RecvTimeout,
		BatchSize:   fields.BatchSize,
	}
	if cfg.Directory == "" {
		return outbound.ColumnarConfig{}, perr.ConfigInvalid("parquet outbound requires a directory")
	}
	return cfg, nil
}

// buildStdioConfig decodes an outbound's raw fields into
// outbound.StdioConfig, mapping its "format" string and "stream"
// selector ("stdout"/"stderr") onto outbound.StdioFormat and an
// io.Writer.
func buildStdioConfig(raw config.RawStage) (outbound.StdioConfig, error) {
	var fields struct {
		Format      string        `mapstructure:"format"`
		Stream      string        `mapstructure:"stream"`
		RecvTimeout time.Duration `mapstructure:"recv_timeout"`
		BatchSize   int           `mapstructure:"batch_size"`
	}
	if err := raw.Decode(&fields); err != nil {
		return outbound.StdioConfig{}, err
	}

	var format outbound.StdioFormat
	switch fields.Format {
	case "", "line":
		format = outbound.StdioLine
	case "json":
		format = outbound.StdioJSON
	default:
		return outbound.StdioConfig{}, perr.ConfigInvalid(fmt.Sprintf("unknown stdio format %q", fields.Format))
	}

	var w io.Writer
	switch fields.Stream {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		return outbound.StdioConfig{}, perr.ConfigInvalid(fmt.Sprintf("unknown stdio stream %q", fields.Stream))
	}

	return outbound.StdioConfig{
		Format:      format,
		Writer:      w,
		RecvTimeout: fields.RecvTimeout,
		BatchSize:   fields.BatchSize,
	}, nil
}

func buildOutbound(t tag.Tag, raw config.RawStage, subs []*dag.Subscriber) (actor.Stage, error) {
	switch raw.Type() {
	case "prometheus":
		cfg, err := buildPrometheusConfig(raw)
		if err != nil {
			return nil, err
		}
		return outbound.NewPrometheus(t, cfg, subs), nil
	case "parquet":
		cfg, err := buildColumnarConfig(raw)
		if err != nil {
			return nil, err
		}
		return outbound.NewColumnar(t, cfg, subs), nil
	case "stdio":
		cfg, err := buildStdioConfig(raw)
		if err != nil {
			return nil, err
		}
		return outbound.NewStdio(t, cfg, subs), nil
	default:
		return nil, perr.ConfigInvalid(fmt.Sprintf("%s: unknown outbound type %q", t, raw.Type()))
	}
}
