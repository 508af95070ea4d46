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

// Package bpmnengine is the public facade: parse a BPMN 2.0 diagram,
// register callbacks against it with a fluent Builder, then Run it
// against an initial value of caller-supplied state T.
package bpmnengine

import (
	"context"

	"github.com/cydarm/bpmn-engine/api"
	"github.com/cydarm/bpmn-engine/bpmnerr"
	"github.com/cydarm/bpmn-engine/diagram"
	"github.com/cydarm/bpmn-engine/engine"
	"github.com/cydarm/bpmn-engine/handler"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

// Builder accumulates callback registrations against a parsed diagram.
// It is the Build phase of the two-phase type-state: nothing here can
// Run.
type Builder[T any] struct {
	diagram  *diagram.Diagram
	handler  *handler.Handler[T]
	strict   bool
	parallel bool
}

// Process is a built, runnable diagram: every callable activity and
// multi-output Exclusive/Inclusive/EventBased gateway has a bound
// callback. It is the Run phase; it
// carries no fluent registration methods.
type Process[T any] struct {
	diagram  *diagram.Diagram
	handler  *handler.Handler[T]
	strict   bool
	parallel bool
}

// New parses a BPMN 2.0 XML file into a Builder. Strict unbalanced-
// diagram checking is on by default; use Lenient to disable it.
func New[T any](path string) (*Builder[T], error) {
	d, err := diagram.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Builder[T]{diagram: d, handler: handler.NewHandler[T](), strict: true}, nil
}

// NewFromString parses a BPMN 2.0 XML document held in memory.
func NewFromString[T any](src string) (*Builder[T], error) {
	d, err := diagram.ReadString(src)
	if err != nil {
		return nil, err
	}
	return &Builder[T]{diagram: d, handler: handler.NewHandler[T](), strict: true}, nil
}

// Lenient disables the unbalanced-diagram check this engine otherwise
// enforces after every join.
func (b *Builder[T]) Lenient() *Builder[T] {
	b.strict = false
	return b
}

// Parallel evaluates the tokens within a single fork's frontier
// concurrently instead of one at a time. Results are still applied to
// the token-accounting stack sequentially and in order, so run output
// is identical to sequential mode; only wall-clock scheduling changes.
func (b *Builder[T]) Parallel() *Builder[T] {
	b.parallel = true
	return b
}

// Task registers a Task callback by activity name (or bpmn id when the
// activity carries no name).
func (b *Builder[T]) Task(name string, fn handler.TaskFunc[T]) *Builder[T] {
	b.handler.AddTask(name, fn)
	return b
}

// Exclusive registers an Exclusive gateway callback.
func (b *Builder[T]) Exclusive(name string, fn handler.ExclusiveFunc[T]) *Builder[T] {
	b.handler.AddExclusive(name, fn)
	return b
}

// Inclusive registers an Inclusive gateway callback.
func (b *Builder[T]) Inclusive(name string, fn handler.InclusiveFunc[T]) *Builder[T] {
	b.handler.AddInclusive(name, fn)
	return b
}

// EventBased registers an EventBased gateway callback.
func (b *Builder[T]) EventBased(name string, fn handler.EventBasedFunc[T]) *Builder[T] {
	b.handler.AddEventBased(name, fn)
	return b
}

// Build installs every registered callback into the diagram, failing
// with bpmnerr.MissingImplementations if any callable activity or
// multi-output Exclusive/Inclusive/EventBased gateway was left
// unbound.
func (b *Builder[T]) Build() (*Process[T], error) {
	hm, err := b.handler.Build()
	if err != nil {
		return nil, err
	}
	if missing := b.diagram.InstallAndCheck(hm); len(missing) > 0 {
		return nil, bpmnerr.MissingImplementations(missing)
	}
	return &Process[T]{diagram: b.diagram, handler: b.handler, strict: b.strict, parallel: b.parallel}, nil
}

// Run executes every top-level process in the diagram against initial,
// returning the final state and a descriptor of the terminating end
// event. ctx is accepted for call-site symmetry with other blocking
// engine entry points; Run does not read it, so cancelling it has no
// effect on a run.
func (p *Process[T]) Run(ctx context.Context, initial T) (api.ProcessOutput[T], error) {
	runID := uuid.NewString()
	glog.Infof("run %s: starting", runID)

	var opts []engine.Option[T]
	if p.parallel {
		opts = append(opts, engine.WithParallel[T]())
	}
	eng := engine.New(p.diagram, p.handler, p.strict, "run "+runID+": ", opts...)
	data := api.NewData(&initial)

	end, err := eng.RunDiagram(data)
	if err != nil {
		glog.Errorf("run %s: failed: %s", runID, err)
		return api.ProcessOutput[T]{}, err
	}

	glog.Infof("run %s: reached end event %s", runID, end.ID)
	final := *data.Lock()
	data.Unlock()
	return api.ProcessOutput[T]{Data: final, EndNode: end}, nil
}
