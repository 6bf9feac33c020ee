// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package outbound

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/linkedin/goavro/v2"

	"github.com/ClusterCockpit/cc-dataplane/internal/actor"
	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/selfmetrics"
	"github.com/ClusterCockpit/cc-dataplane/internal/symbol"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
	"github.com/ClusterCockpit/cc-dataplane/internal/tracing"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

// CompressionScheme names the outer file compression wrapping a
// columnar batch. "none" and "snappy" defer to goavro's own block codec
// (null and snappy respectively); "gzip" and "brotli" wrap the underlying file writer since
// goavro has no built-in codec for either.
type CompressionScheme int

const (
	CompressionNone CompressionScheme = iota
	CompressionSnappy
	CompressionGzip
	CompressionBrotli
)

// ColumnarConfig configures the Avro/OCF file outbound.
type ColumnarConfig struct {
	Directory   string
	Compression CompressionScheme
	RecvTimeout time.Duration
	BatchSize   int
}

// ParseCompressionScheme maps a config string to a CompressionScheme.
// "lzo" is rejected: no lzo-capable library exists anywhere in the
// dependency pack this module draws from.
func ParseCompressionScheme(name string) (CompressionScheme, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "gzip":
		return CompressionGzip, nil
	case "brotli":
		return CompressionBrotli, nil
	case "lzo":
		return 0, perr.ConfigInvalid("lzo compression is not supported")
	default:
		return 0, perr.ConfigInvalid(fmt.Sprintf("unknown compression scheme %q", name))
	}
}

// Columnar batches Records into Avro object-container files, one file
// per flush, with a schema derived from the first record of each
// batch. Grounded on the teacher's avroCheckpoint.go schema-generation
// and goavro.NewOCFWriter/Append usage.
type Columnar struct {
	tg tag.Tag

	inbounds    []*dag.Subscriber
	dir         string
	compression CompressionScheme
	recvTimeout time.Duration
	batchSize   int
}

// NewColumnar builds a Columnar outbound identified by t.
func NewColumnar(t tag.Tag, cfg ColumnarConfig, inbounds []*dag.Subscriber) *Columnar {
	recvTimeout := cfg.RecvTimeout
	if recvTimeout <= 0 {
		recvTimeout = DefaultRecvTimeout
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 4096
	}
	return &Columnar{
		tg:          t,
		inbounds:    inbounds,
		dir:         cfg.Directory,
		compression: cfg.Compression,
		recvTimeout: recvTimeout,
		batchSize:   batchSize,
	}
}

// Tag implements actor.Stage.
func (c *Columnar) Tag() tag.Tag { return c.tg }

// Poll implements actor.Stage.
func (c *Columnar) Poll(ctx context.Context) error {
	records, err := actor.RecvBatch(ctx, c.tg, c.inbounds, c.recvTimeout, c.batchSize)
	switch err.(type) {
	case nil:
	case *perr.TimeoutError, *perr.CanceledError:
		return nil
	default:
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		rec.Tracing.Mark(c.tg, tracing.Incoming)
	}
	selfmetrics.ObserveOutboundBatch(c.tg, len(records))
	werr := c.writeBatch(records)
	for _, rec := range records {
		if werr == nil {
			rec.Tracing.Mark(c.tg, tracing.Outgoing)
		}
		rec.Tracing.Record()
	}
	return werr
}

func (c *Columnar) writeBatch(records []*record.Record) error {
	schemaJSON, err := deriveSchema(records)
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return perr.Io(err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return perr.Io(err)
	}
	path := filepath.Join(c.dir, fmt.Sprintf("%d.avro", time.Now().UnixNano()))
	f, err := os.Create(path)
	if err != nil {
		return perr.Io(err)
	}
	defer f.Close()

	w, closeWrapper, err := wrapCompression(f, c.compression)
	if err != nil {
		return err
	}

	compressionName := goavro.CompressionNullLabel
	if c.compression == CompressionSnappy {
		compressionName = goavro.CompressionSnappyLabel
	}
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: compressionName,
	})
	if err != nil {
		return perr.Io(err)
	}

	datums := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		datums = append(datums, toDatum(rec))
	}
	if err := writer.Append(datums); err != nil {
		return perr.Io(err)
	}

	if err := closeWrapper(); err != nil {
		return perr.Io(err)
	}
	return nil
}

// wrapCompression wraps f for schemes goavro doesn't natively codec,
// returning the writer to hand to goavro and a close func that must
// run after the OCF writer has finished appending.
func wrapCompression(f io.Writer, scheme CompressionScheme) (io.Writer, func() error, error) {
	switch scheme {
	case CompressionNone, CompressionSnappy:
		return f, func() error { return nil }, nil
	case CompressionGzip:
		gw := gzip.NewWriter(f)
		return gw, gw.Close, nil
	case CompressionBrotli:
		bw := brotli.NewWriter(f)
		return bw, bw.Close, nil
	default:
		return nil, nil, perr.ConfigInvalid("unsupported compression scheme")
	}
}

// deriveSchema builds a nullable-union Avro record schema from the
// first record in a batch, the same "scan one record, emit double
// fields" shape the teacher's generateSchema uses, generalized to
// every value.Kind this pipeline can carry.
func deriveSchema(records []*record.Record) (string, error) {
	if len(records) == 0 {
		return "", perr.InvalidRecord("empty batch")
	}
	first := records[0]

	type field struct {
		Name string `json:"name"`
		Type any    `json:"type"`
	}
	var fields []field
	var names []string
	first.Range(func(k symbol.Symbol, v value.Value) bool {
		names = append(names, k.String())
		return true
	})
	sort.Strings(names)

	for _, name := range names {
		v, _ := first.GetString(name)
		fields = append(fields, field{Name: name, Type: avroUnion(v)})
	}

	schema := map[string]any{
		"type":   "record",
		"name":   "Record",
		"fields": fields,
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return "", perr.Io(err)
	}
	return string(b), nil
}

// avroUnion returns the ["null", <type>] union schema fragment for v's
// kind, so any field absent in a later record deserializes as null
// rather than failing the codec.
func avroUnion(v value.Value) []string {
	return []string{"null", avroTypeOf(v)}
}

func avroTypeOf(v value.Value) string {
	if _, ok := v.AsInt(); ok {
		return "long"
	}
	if _, ok := v.AsFloat(); ok {
		return "double"
	}
	if _, ok := v.AsBool(); ok {
		return "boolean"
	}
	return "string"
}

// toDatum renders a Record into the map[string]any shape goavro's
// Append expects, wrapping every field in its declared union branch.
func toDatum(rec *record.Record) map[string]any {
	out := make(map[string]any)
	rec.Range(func(k symbol.Symbol, v value.Value) bool {
		name := k.String()
		switch {
		case func() bool { _, ok := v.AsInt(); return ok }():
			n, _ := v.AsInt()
			out[name] = goavro.Union("long", n)
		case func() bool { _, ok := v.AsFloat(); return ok }():
			f, _ := v.AsFloat()
			out[name] = goavro.Union("double", f)
		case func() bool { _, ok := v.AsBool(); return ok }():
			b, _ := v.AsBool()
			out[name] = goavro.Union("boolean", b)
		default:
			out[name] = goavro.Union("string", v.Stringify())
		}
		return true
	})
	return out
}
