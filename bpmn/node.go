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

// Package bpmn holds the in-memory diagram node model: the closed
// Symbol set, the Id/Outputs cross-reference types, and the sealed
// Node tagged union (Definitions, Process, Event, Activity, Gateway,
// SequenceFlow). Nothing here parses XML or walks tokens — that is the
// diagram and engine packages' job. This package is a pure data model.
package bpmn

import "github.com/cydarm/bpmn-engine/bpmnerr"

// Symbol is the closed set of BPMN event markers this engine
// recognises. Only Terminate and Cancel at an End event force
// immediate termination; every other symbol is routing metadata.
type Symbol int

const (
	SymbolNone Symbol = iota
	SymbolMessage
	SymbolTimer
	SymbolEscalation
	SymbolConditional
	SymbolLink
	SymbolError
	SymbolCancel
	SymbolCompensation
	SymbolSignal
	SymbolMultiple
	SymbolParallelMultiple
	SymbolTerminate
)

var symbolNames = [...]string{
	"None", "Message", "Timer", "Escalation", "Conditional", "Link",
	"Error", "Cancel", "Compensation", "Signal", "Multiple",
	"ParallelMultiple", "Terminate",
}

func (s Symbol) String() string {
	if int(s) >= 0 && int(s) < len(symbolNames) {
		return symbolNames[s]
	}
	return "Unknown"
}

// Interrupting reports whether this symbol, when it terminates a
// sub-process, must be routed to a boundary event on the enclosing
// activity rather than allowed to continue normally.
func (s Symbol) Interrupting() bool {
	switch s {
	case SymbolError, SymbolEscalation, SymbolCancel, SymbolCompensation,
		SymbolConditional, SymbolMessage, SymbolSignal, SymbolTimer:
		return true
	default:
		return false
	}
}

// Id is a cross-reference pair: the declared BPMN id string plus the
// resolved local array index. LocalID is meaningless until the owning
// ProcessData has been finalized.
type Id struct {
	BpmnID  string
	LocalID int
}

// Outputs is the parallel-array cross-reference list for a node's
// outgoing sequence flows. Declaration order is preserved: it matters
// for exclusive-gateway default-path fallback and for deterministic
// fork enumeration.
type Outputs struct {
	BpmnIDs []string
	LocalIDs []int
}

// Add appends a raw bpmn-id reference discovered during the build
// walk. LocalIDs is left short until Resolve runs.
func (o *Outputs) Add(bpmnID string) {
	o.BpmnIDs = append(o.BpmnIDs, bpmnID)
}

// Len reports the number of declared outputs.
func (o *Outputs) Len() int {
	return len(o.BpmnIDs)
}

// Resolve rewrites every bpmn-id reference into a local index using a
// lookup table built once per ProcessData during finalize.
func (o *Outputs) Resolve(lookup map[string]int) error {
	o.LocalIDs = make([]int, len(o.BpmnIDs))
	for i, id := range o.BpmnIDs {
		local, ok := lookup[id]
		if !ok {
			return bpmnerr.MissingTargetRef()
		}
		o.LocalIDs[i] = local
	}
	return nil
}

// EventType distinguishes the five event flavours this engine routes.
type EventType int

const (
	EventStart EventType = iota
	EventIntermediateCatch
	EventIntermediateThrow
	EventBoundary
	EventEnd
)

// ActivityType distinguishes the callable task kinds from SubProcess.
type ActivityType int

const (
	ActivityTask ActivityType = iota
	ActivityScriptTask
	ActivityUserTask
	ActivityServiceTask
	ActivityCallActivity
	ActivityReceiveTask
	ActivitySendTask
	ActivityManualTask
	ActivityBusinessRuleTask
	ActivitySubProcess
)

// Callable reports whether this activity kind carries a Task-style
// handler callback rather than recursing into a nested ProcessData.
func (t ActivityType) Callable() bool {
	return t != ActivitySubProcess
}

// GatewayType distinguishes the five gateway routing strategies.
type GatewayType int

const (
	GatewayExclusive GatewayType = iota
	GatewayInclusive
	GatewayParallel
	GatewayEventBased
	GatewayComplex
)

// Node is the sealed tagged union of every BPMN element this engine
// keeps around after the build walk. It is implemented only by the
// concrete types in this package; the marker method is unexported so
// no external type can join the union (a tagged union, not an
// interface meant for implementation by callers).
type Node interface {
	isBpmn()
}

// Definitions is the top-level container node. It carries no payload
// of its own beyond its id; the actual top-level process references
// live as Process nodes inside the same ProcessData block.
type Definitions struct {
	ID Id
}

func (*Definitions) isBpmn() {}

// Process is a flow container reference. When DataIndex is non-nil it
// points at the index, within the owning Diagram, of the ProcessData
// block this Process (or SubProcess) expands to.
type Process struct {
	ID        Id
	Name      string
	DataIndex *int
}

func (*Process) isBpmn() {}

// Event covers Start, IntermediateCatch, IntermediateThrow, Boundary
// and End events. AttachedToRef is only meaningful for Boundary
// events.
type Event struct {
	ID            Id
	Name          string
	EventType     EventType
	Symbol        Symbol
	Outputs       Outputs
	AttachedToRef Id
}

func (*Event) isBpmn() {}

// Activity covers every callable task kind plus SubProcess. FuncIdx is
// nil until a handler is installed for a callable activity type.
type Activity struct {
	ID           Id
	Name         string
	ActivityType ActivityType
	Outputs      Outputs
	FuncIdx      *int
	DataIndex    *int
}

func (*Activity) isBpmn() {}

// Gateway covers Exclusive, Inclusive, Parallel, EventBased and
// Complex gateways. Inputs counts incoming sequence flows and is used
// to decide Fork vs Join. Default is the fallback output's bpmn id,
// resolved to a local id on finalize.
type Gateway struct {
	ID          Id
	Name        string
	GatewayType GatewayType
	Outputs     Outputs
	Inputs      int
	Default     *Id
	FuncIdx     *int
}

func (*Gateway) isBpmn() {}

// SequenceFlow connects two nodes within the same ProcessData.
// Conditional is set by the reader when the flow carries an inline
// condition element; such flows are rejected at build time.
type SequenceFlow struct {
	ID          Id
	Name        string
	TargetRef   Id
	SourceRef   Id
	Conditional bool
}

func (*SequenceFlow) isBpmn() {}

// ID returns the cross-reference id carried by any node in the union.
func ID(n Node) Id {
	switch v := n.(type) {
	case *Definitions:
		return v.ID
	case *Process:
		return v.ID
	case *Event:
		return v.ID
	case *Activity:
		return v.ID
	case *Gateway:
		return v.ID
	case *SequenceFlow:
		return v.ID
	default:
		return Id{}
	}
}

// SetLocalID fills in the resolved local index for a node once its
// owning ProcessData has assigned one.
func SetLocalID(n Node, local int) {
	switch v := n.(type) {
	case *Definitions:
		v.ID.LocalID = local
	case *Process:
		v.ID.LocalID = local
	case *Event:
		v.ID.LocalID = local
	case *Activity:
		v.ID.LocalID = local
	case *Gateway:
		v.ID.LocalID = local
	case *SequenceFlow:
		v.ID.LocalID = local
	}
}

// AddOutput appends a raw bpmn-id output reference to whichever
// Outputs field the node carries. Nodes with no outputs field are a
// no-op (callers only invoke this for Event/Activity/Gateway).
func AddOutput(n Node, bpmnID string) {
	switch v := n.(type) {
	case *Event:
		v.Outputs.Add(bpmnID)
	case *Activity:
		v.Outputs.Add(bpmnID)
	case *Gateway:
		v.Outputs.Add(bpmnID)
	}
}

// AddInput increments a gateway's inbound sequence-flow counter. It is
// a no-op for every other node kind.
func AddInput(n Node) {
	if gw, ok := n.(*Gateway); ok {
		gw.Inputs++
	}
}

// SetDataIndex records which ProcessData block a Process or SubProcess
// Activity expands to.
func SetDataIndex(n Node, idx int) {
	switch v := n.(type) {
	case *Process:
		v.DataIndex = &idx
	case *Activity:
		v.DataIndex = &idx
	}
}

// Name returns the node's declared name, or the empty string.
func Name(n Node) string {
	switch v := n.(type) {
	case *Process:
		return v.Name
	case *Event:
		return v.Name
	case *Activity:
		return v.Name
	case *Gateway:
		return v.Name
	case *SequenceFlow:
		return v.Name
	default:
		return ""
	}
}
