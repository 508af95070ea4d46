/*
 * Copyright 2023 Cydarm Technologies Pty Ltd, https://cydarm.com/
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * 		http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package bpmnerr defines the closed error taxonomy shared by every
// package in the engine: the diagram builder, the handler registry and
// the token-flow scheduler all return *Error values built from this set.
package bpmnerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates every error category the engine can produce. The set
// is closed: callers should switch exhaustively or check with Is/As
// rather than string-matching Error().
type Kind int

const (
	// Structural diagram errors.
	KindMissingID Kind = iota
	KindMissingOutput
	KindMissingDefault
	KindMissingTargetRef
	KindMissingStartEvent
	KindMissingEndEvent
	KindMissingDefinitionsID
	KindMissingProcessData
	KindMissingBpmnData

	// Implementation binding errors.
	KindMissingImplementation
	KindMissingImplementations

	// Flow routing errors.
	KindMissingBoundary
	KindMissingIntermediateEvent
	KindMissingIntermediateCatchEvent
	KindMissingIntermediateThrowEventName

	// BPMN requirement violations.
	KindBpmnRequirement

	// Unsupported diagram shapes.
	KindNotSupported

	// User handler failure.
	KindProcessExecution

	// Parse / transport errors.
	KindFile
	KindIO
	KindUTF8

	// Builder-internal misuse.
	KindBuilder
)

var kindNames = map[Kind]string{
	KindMissingID:                         "MissingId",
	KindMissingOutput:                     "MissingOutput",
	KindMissingDefault:                    "MissingDefault",
	KindMissingTargetRef:                  "MissingTargetRef",
	KindMissingStartEvent:                 "MissingStartEvent",
	KindMissingEndEvent:                   "MissingEndEvent",
	KindMissingDefinitionsID:              "MissingDefinitionsId",
	KindMissingProcessData:                "MissingProcessData",
	KindMissingBpmnData:                   "MissingBpmnData",
	KindMissingImplementation:             "MissingImplementation",
	KindMissingImplementations:            "MissingImplementations",
	KindMissingBoundary:                   "MissingBoundary",
	KindMissingIntermediateEvent:          "MissingIntermediateEvent",
	KindMissingIntermediateCatchEvent:     "MissingIntermediateCatchEvent",
	KindMissingIntermediateThrowEventName: "MissingIntermediateThrowEventName",
	KindBpmnRequirement:                   "BpmnRequirement",
	KindNotSupported:                      "NotSupported",
	KindProcessExecution:                  "ProcessExecution",
	KindFile:                              "File",
	KindIO:                                "Io",
	KindUTF8:                              "Utf8",
	KindBuilder:                           "Builder",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error is the concrete error type returned throughout the engine. It
// carries a Kind for programmatic dispatch and an optional wrapped
// cause (via github.com/pkg/errors) for user-handler failures and
// parse/transport errors where the original error is worth preserving.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As from the
// standard library (and github.com/pkg/errors) keep working across
// this boundary.
func (e *Error) Unwrap() error {
	return e.cause
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// MissingID reports a BPMN node that has no id attribute at all.
func MissingID(nodeKind string) *Error {
	return newf(KindMissingID, "BPMN type %s missing id", nodeKind)
}

// MissingOutput reports a node with zero outgoing sequence flows where
// at least one is required.
func MissingOutput(node string) *Error {
	return newf(KindMissingOutput, "%s has no output. (Used correct name or id?)", node)
}

// MissingDefault reports an exclusive or inclusive gateway whose
// callback fell through to the default flow but none was declared.
func MissingDefault(node string) *Error {
	return newf(KindMissingDefault, "%s has no default flow", node)
}

// MissingTargetRef reports a sequenceFlow element missing targetRef.
func MissingTargetRef() *Error {
	return newf(KindMissingTargetRef, "sequenceFlow missing targetRef")
}

// MissingStartEvent reports a process with no none-symbol start event.
func MissingStartEvent() *Error {
	return newf(KindMissingStartEvent, "missing start event")
}

// MissingEndEvent reports a run that produced no terminating end event.
func MissingEndEvent() *Error {
	return newf(KindMissingEndEvent, "missing end event")
}

// MissingDefinitionsID reports a diagram with no Definitions block.
func MissingDefinitionsID() *Error {
	return newf(KindMissingDefinitionsID, "missing definitions id")
}

// MissingProcessData reports a dangling process/sub-process index.
func MissingProcessData(id string) *Error {
	return newf(KindMissingProcessData, "could not find process data with id %s", id)
}

// MissingBpmnData reports a dangling local id lookup within a process.
func MissingBpmnData(id string) *Error {
	return newf(KindMissingBpmnData, "could not find BPMN data with id %s", id)
}

// MissingImplementation reports a runtime call to an unbound func_idx.
func MissingImplementation(what string) *Error {
	return newf(KindMissingImplementation, "%s has no implementation", what)
}

// MissingImplementations reports the full set of unbound handlers
// discovered at build time.
func MissingImplementations(offenders []string) *Error {
	e := newf(KindMissingImplementations, "Missing implementations %s", joinComma(offenders))
	return e
}

// MissingBoundary reports a task/sub-process result that asked for a
// boundary event with no matching attached boundary.
func MissingBoundary(boundary, activity string) *Error {
	return newf(KindMissingBoundary, "could not find %s boundary symbol attached to %s", boundary, activity)
}

// MissingIntermediateEvent reports an event-based gateway whose
// callback selected an event with no matching outgoing flow.
func MissingIntermediateEvent(gateway, value string) *Error {
	return newf(KindMissingIntermediateEvent, "%s could not find %s", gateway, value)
}

// MissingIntermediateCatchEvent reports a link throw with no matching catch.
func MissingIntermediateCatchEvent(symbol, name string) *Error {
	return newf(KindMissingIntermediateCatchEvent, "missing intermediate catch event symbol %s with name %s", symbol, name)
}

// MissingIntermediateThrowEventName reports a throw event with a Link
// symbol (or otherwise requiring a name) but no name set.
func MissingIntermediateThrowEventName(id string) *Error {
	return newf(KindMissingIntermediateThrowEventName, "missing intermediate throw event name on %s", id)
}

// BpmnRequirement reports a violation of a hard BPMN structural rule
// (duplicate none-start events, event-based gateways with <2 outputs,
// parallel joins that did not receive enough tokens).
func BpmnRequirement(message string) *Error {
	return newf(KindBpmnRequirement, "%s", message)
}

// NotSupported reports a diagram shape this engine deliberately
// rejects (conditional sequence flows, unbalanced join graphs).
func NotSupported(what string) *Error {
	return newf(KindNotSupported, "%s not supported", what)
}

// ProcessExecution wraps an error returned by a user handler callback.
func ProcessExecution(cause error) *Error {
	return &Error{Kind: KindProcessExecution, Message: "Process execution error", cause: errors.WithStack(cause)}
}

// Builder reports internal misuse of the diagram builder (e.g. Build()
// called twice on the same Handler).
func Builder(message string) *Error {
	return newf(KindBuilder, "%s", message)
}

// File wraps a file-read or XML-decode error encountered by the reader.
func File(cause error) *Error {
	return &Error{Kind: KindFile, Message: "file error", cause: errors.WithStack(cause)}
}

// IO wraps a generic I/O error.
func IO(cause error) *Error {
	return &Error{Kind: KindIO, Message: "io error", cause: errors.WithStack(cause)}
}

// UTF8 wraps a UTF-8 decoding error.
func UTF8(cause error) *Error {
	return &Error{Kind: KindUTF8, Message: "utf8 error", cause: errors.WithStack(cause)}
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}

// BpmnRequirement message constants, mirrored from the original engine.
const (
	AtLeastTwoOutgoing = "Event gateway must have at least two outgoing sequence flows"
	OnlyOneStartEvent  = "There can only be one start event of type none"
)
