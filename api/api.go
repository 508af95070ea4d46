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

// Package api holds the value types a handler callback sees and
// returns: the shared user-state handle, gateway selection values, and
// the result wrapper returned from Run.
package api

import (
	"sync"

	"github.com/cydarm/bpmn-engine/bpmn"
)

// Data is a shared-ownership, interior-mutable handle to user state of
// type T — the Go analogue of Rust's Arc<Mutex<T>>. The engine clones
// the handle for every concurrently running handler; handlers mutate
// the underlying value only while holding the lock.
type Data[T any] struct {
	mu    *sync.Mutex
	value *T
}

// NewData wraps a value for sharing across handler invocations.
func NewData[T any](value *T) Data[T] {
	return Data[T]{mu: &sync.Mutex{}, value: value}
}

// Lock acquires the handle's lock and returns the guarded value.
// Callers must call Unlock when done.
func (d Data[T]) Lock() *T {
	d.mu.Lock()
	return d.value
}

// Unlock releases the handle's lock.
func (d Data[T]) Unlock() {
	d.mu.Unlock()
}

// EndNode describes the event a process run terminated at.
type EndNode struct {
	ID     string
	Name   *string
	Symbol bpmn.Symbol
}

// ProcessOutput is the value returned from a successful Run: the final
// user state plus a descriptor of the terminating end event.
type ProcessOutput[T any] struct {
	Data    T
	EndNode EndNode
}

// WithKind distinguishes the three shapes an Inclusive gateway
// callback may return.
type WithKind int

const (
	WithDefault WithKind = iota
	WithFlow
	WithFork
)

// With is the value an Inclusive gateway handler returns to select its
// next output(s).
type With struct {
	Kind  WithKind
	Flow  string
	Items []string
}

// NewWithDefault selects the gateway's declared default flow.
func NewWithDefault() With {
	return With{Kind: WithDefault}
}

// NewWithFlow selects a single output by name or bpmn id.
func NewWithFlow(nameOrID string) With {
	return With{Kind: WithFlow, Flow: nameOrID}
}

// NewWithFork selects a set of outputs by name or bpmn id, to be
// deduplicated by the engine.
func NewWithFork(namesOrIDs []string) With {
	return With{Kind: WithFork, Items: namesOrIDs}
}

// Boundary is the value a Task handler returns to route to a boundary
// event instead of continuing through the task's normal outputs.
type Boundary struct {
	Name   *string
	Symbol bpmn.Symbol
}

// NewBoundarySymbol builds a Boundary matched by symbol only (no name
// set on the task's handler result).
func NewBoundarySymbol(symbol bpmn.Symbol) Boundary {
	return Boundary{Symbol: symbol}
}

// NewBoundaryNameSymbol builds a Boundary matched by both name and
// symbol.
func NewBoundaryNameSymbol(name string, symbol bpmn.Symbol) Boundary {
	return Boundary{Name: &name, Symbol: symbol}
}

func (b Boundary) String() string {
	if b.Name != nil {
		return *b.Name + "/" + b.Symbol.String()
	}
	return b.Symbol.String()
}

// IntermediateEvent is the value an EventBased gateway handler returns
// to select which awaited event fired.
type IntermediateEvent struct {
	Name   string
	Symbol bpmn.Symbol
}

// NewIntermediateEvent builds an IntermediateEvent selection value.
func NewIntermediateEvent(name string, symbol bpmn.Symbol) IntermediateEvent {
	return IntermediateEvent{Name: name, Symbol: symbol}
}
