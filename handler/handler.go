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

// Package handler holds the callback registry: a flat vector of
// user-supplied Task/Exclusive/Inclusive/EventBased functions, and the
// (kind, name-or-id) -> callback index map installed into diagram
// nodes at build time.
package handler

import (
	"github.com/cydarm/bpmn-engine/api"
	"github.com/cydarm/bpmn-engine/bpmnerr"
	"github.com/golang/glog"
)

// HandlerType tags which callback shape a registered name maps to.
type HandlerType int

const (
	Task HandlerType = iota
	Exclusive
	Inclusive
	EventBased
)

func (h HandlerType) String() string {
	switch h {
	case Task:
		return "Task"
	case Exclusive:
		return "Exclusive"
	case Inclusive:
		return "Inclusive"
	case EventBased:
		return "EventBased"
	default:
		return "Unknown"
	}
}

// HandlerMap maps (kind, name-or-id) to a callback index in the flat
// callback vector a Handler builds. It is installed into diagram nodes
// once and then discarded.
type HandlerMap struct {
	byKind map[HandlerType]map[string]int
}

// NewHandlerMap builds an empty map.
func NewHandlerMap() *HandlerMap {
	return &HandlerMap{byKind: make(map[HandlerType]map[string]int)}
}

// Get looks up the callback index registered for kind and name.
func (m *HandlerMap) Get(kind HandlerType, name string) (int, bool) {
	names, ok := m.byKind[kind]
	if !ok {
		return 0, false
	}
	idx, ok := names[name]
	return idx, ok
}

// Insert records a callback index for (kind, name), logging a warning
// and overriding the prior index if one already exists. Duplicate
// registration is not an error.
func (m *HandlerMap) Insert(kind HandlerType, name string, idx int) {
	names, ok := m.byKind[kind]
	if !ok {
		names = make(map[string]int)
		m.byKind[kind] = names
	}
	if _, exists := names[name]; exists {
		glog.Warningf("duplicate handler registration for %s %q, overriding", kind, name)
	}
	names[name] = idx
}

// TaskFunc implements task business logic. Returning a nil *Boundary
// continues through the task's outgoing flows (passing through a single
// one, forking over several); a non-nil Boundary routes to a matching
// boundary event attached to the task.
type TaskFunc[T any] func(api.Data[T]) (*api.Boundary, error)

// ExclusiveFunc selects an Exclusive gateway's output by name or id. A
// nil result takes the gateway's default flow.
type ExclusiveFunc[T any] func(api.Data[T]) (*string, error)

// InclusiveFunc selects an Inclusive gateway's output set.
type InclusiveFunc[T any] func(api.Data[T]) (api.With, error)

// EventBasedFunc selects which awaited event fired at an EventBased
// gateway.
type EventBasedFunc[T any] func(api.Data[T]) (api.IntermediateEvent, error)

type callback[T any] struct {
	kind       HandlerType
	task       TaskFunc[T]
	exclusive  ExclusiveFunc[T]
	inclusive  InclusiveFunc[T]
	eventBased EventBasedFunc[T]
}

// Handler accumulates named callbacks during the fluent builder phase
// and produces the installed HandlerMap exactly once.
type Handler[T any] struct {
	callbacks  []callback[T]
	handlerMap *HandlerMap
	consumed   bool
}

// NewHandler builds an empty callback registry.
func NewHandler[T any]() *Handler[T] {
	return &Handler[T]{handlerMap: NewHandlerMap()}
}

// AddTask registers a Task callback under name, returning its index.
func (h *Handler[T]) AddTask(name string, fn TaskFunc[T]) int {
	idx := len(h.callbacks)
	h.callbacks = append(h.callbacks, callback[T]{kind: Task, task: fn})
	h.handlerMap.Insert(Task, name, idx)
	return idx
}

// AddExclusive registers an Exclusive gateway callback under name.
func (h *Handler[T]) AddExclusive(name string, fn ExclusiveFunc[T]) int {
	idx := len(h.callbacks)
	h.callbacks = append(h.callbacks, callback[T]{kind: Exclusive, exclusive: fn})
	h.handlerMap.Insert(Exclusive, name, idx)
	return idx
}

// AddInclusive registers an Inclusive gateway callback under name.
func (h *Handler[T]) AddInclusive(name string, fn InclusiveFunc[T]) int {
	idx := len(h.callbacks)
	h.callbacks = append(h.callbacks, callback[T]{kind: Inclusive, inclusive: fn})
	h.handlerMap.Insert(Inclusive, name, idx)
	return idx
}

// AddEventBased registers an EventBased gateway callback under name.
func (h *Handler[T]) AddEventBased(name string, fn EventBasedFunc[T]) int {
	idx := len(h.callbacks)
	h.callbacks = append(h.callbacks, callback[T]{kind: EventBased, eventBased: fn})
	h.handlerMap.Insert(EventBased, name, idx)
	return idx
}

// Build consumes the accumulated HandlerMap exactly once. A second
// call fails: the map is transient build-phase state, not meant to
// outlive diagram installation.
func (h *Handler[T]) Build() (*HandlerMap, error) {
	if h.consumed {
		return nil, bpmnerr.Builder("handler map already consumed")
	}
	h.consumed = true
	m := h.handlerMap
	h.handlerMap = nil
	return m, nil
}

// RunTask invokes the Task callback at idx.
func (h *Handler[T]) RunTask(idx int, data api.Data[T]) (*api.Boundary, error) {
	if idx < 0 || idx >= len(h.callbacks) || h.callbacks[idx].kind != Task {
		return nil, bpmnerr.MissingImplementation("task")
	}
	return h.callbacks[idx].task(data)
}

// RunExclusive invokes the Exclusive callback at idx.
func (h *Handler[T]) RunExclusive(idx int, data api.Data[T]) (*string, error) {
	if idx < 0 || idx >= len(h.callbacks) || h.callbacks[idx].kind != Exclusive {
		return nil, bpmnerr.MissingImplementation("exclusive gateway")
	}
	return h.callbacks[idx].exclusive(data)
}

// RunInclusive invokes the Inclusive callback at idx.
func (h *Handler[T]) RunInclusive(idx int, data api.Data[T]) (api.With, error) {
	if idx < 0 || idx >= len(h.callbacks) || h.callbacks[idx].kind != Inclusive {
		return api.With{}, bpmnerr.MissingImplementation("inclusive gateway")
	}
	return h.callbacks[idx].inclusive(data)
}

// RunEventBased invokes the EventBased callback at idx.
func (h *Handler[T]) RunEventBased(idx int, data api.Data[T]) (api.IntermediateEvent, error) {
	if idx < 0 || idx >= len(h.callbacks) || h.callbacks[idx].kind != EventBased {
		return api.IntermediateEvent{}, bpmnerr.MissingImplementation("event-based gateway")
	}
	return h.callbacks[idx].eventBased(data)
}
