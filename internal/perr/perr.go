// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perr implements the pipeline's error taxonomy: a small closed
// set of sentinel-wrapped error kinds that callers switch on to decide
// whether a failure is fatal, closes one connection, or just drops one
// record. Every kind is a distinct type so errors.As lets call sites
// recover the structured fields (tag, status code, ...) they need.
package perr

import (
	"fmt"

	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

// ConfigInvalidError means the startup config failed validation. Fatal.
type ConfigInvalidError struct{ Reason string }

func (e *ConfigInvalidError) Error() string { return fmt.Sprintf("config invalid: %s", e.Reason) }

func ConfigInvalid(reason string) error { return &ConfigInvalidError{Reason: reason} }

// DuplicateTagError means the same Tag was declared more than once
// across inbounds/pipes/outbounds. Fatal.
type DuplicateTagError struct{ Tag tag.Tag }

func (e *DuplicateTagError) Error() string { return fmt.Sprintf("duplicate tag %s", e.Tag) }

func DuplicateTag(t tag.Tag) error { return &DuplicateTagError{Tag: t} }

// UnknownTagRequiredError means a stage referenced an upstream tag that
// was never declared. Fatal.
type UnknownTagRequiredError struct {
	By, Missing tag.Tag
}

func (e *UnknownTagRequiredError) Error() string {
	return fmt.Sprintf("%s requires unknown upstream %s", e.By, e.Missing)
}

func UnknownTagRequired(by, missing tag.Tag) error {
	return &UnknownTagRequiredError{By: by, Missing: missing}
}

// CycleError means the declared DAG contains a dependency cycle. Fatal.
type CycleError struct{ Tags []tag.Tag }

func (e *CycleError) Error() string { return fmt.Sprintf("cycle detected among tags %v", e.Tags) }

func Cycle(tags []tag.Tag) error { return &CycleError{Tags: tags} }

// ProtocolEOFError signals a clean end of input. Closes the connection
// task; logged at INFO.
type ProtocolEOFError struct{}

func (e *ProtocolEOFError) Error() string { return "protocol EOF" }

func ProtocolEOF() error { return &ProtocolEOFError{} }

// ProtocolMismatchError signals malformed input that doesn't match the
// configured wire protocol. Closes the connection task; logged at ERROR.
type ProtocolMismatchError struct{ Reason string }

func (e *ProtocolMismatchError) Error() string { return fmt.Sprintf("protocol mismatch: %s", e.Reason) }

func ProtocolMismatch(reason string) error { return &ProtocolMismatchError{Reason: reason} }

// IoError wraps an I/O failure at any boundary (socket, fifo, file).
// Closes the failing scope; logged at ERROR.
type IoError struct{ Underlying error }

func (e *IoError) Error() string { return fmt.Sprintf("io error: %v", e.Underlying) }
func (e *IoError) Unwrap() error { return e.Underlying }

func Io(underlying error) error { return &IoError{Underlying: underlying} }

// ChannelClosedError means an upstream broadcast channel has no more
// senders. The receiving stage exits cleanly.
type ChannelClosedError struct{ Tag tag.Tag }

func (e *ChannelClosedError) Error() string { return fmt.Sprintf("channel %s closed", e.Tag) }

func ChannelClosed(t tag.Tag) error { return &ChannelClosedError{Tag: t} }

// ChannelLaggedError means the subscriber fell behind and n messages
// were dropped. Logged WARN by the caller; the receive loop continues.
type ChannelLaggedError struct {
	Tag tag.Tag
	N   uint64
}

func (e *ChannelLaggedError) Error() string {
	return fmt.Sprintf("channel %s lagged by %d", e.Tag, e.N)
}

func ChannelLagged(t tag.Tag, n uint64) error { return &ChannelLaggedError{Tag: t, N: n} }

// InvalidRecordError means a single record failed a pipe's or sink's
// semantic checks. The record is dropped, logged ERROR; the stage
// continues with the next one.
type InvalidRecordError struct{ Reason string }

func (e *InvalidRecordError) Error() string { return fmt.Sprintf("invalid record: %s", e.Reason) }

func InvalidRecord(reason string) error { return &InvalidRecordError{Reason: reason} }

// TimeoutError is an internal recv/recv_batch signal; it is never
// surfaced as a stage failure.
type TimeoutError struct{}

func (e *TimeoutError) Error() string { return "timeout" }

func Timeout() error { return &TimeoutError{} }

// CanceledError means the stage's cancellation token fired. The stage
// exits cleanly.
type CanceledError struct{}

func (e *CanceledError) Error() string { return "canceled" }

func Canceled() error { return &CanceledError{} }

// HTTPStatusError means a remote-write POST got back any status other
// than 204 No Content. Logged ERROR by the Prometheus outbound; the batch is
// discarded, never retried.
type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

func HTTPStatus(code int, body string) error { return &HTTPStatusError{Code: code, Body: body} }
