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

// Package engine is the token scheduler: a worklist loop over token
// frontiers that advances each token through straight-line edges,
// resolves gateway routing, and enforces fork/join accounting via an
// explicit stack rather than recursion.
package engine

import (
	"fmt"
	"sync"

	"github.com/cydarm/bpmn-engine/api"
	"github.com/cydarm/bpmn-engine/bpmn"
	"github.com/cydarm/bpmn-engine/bpmnerr"
	"github.com/cydarm/bpmn-engine/diagram"
	"github.com/cydarm/bpmn-engine/handler"
	"github.com/golang/glog"
)

// returnKind tags what a single-token advance produced.
type returnKind int

const (
	returnFork returnKind = iota
	returnJoin
	returnEnd
)

// stepResult is what flow() returns for one token: a fan-out of
// destination node local ids, a gateway awaiting a join, or a
// terminating event.
type stepResult struct {
	kind    returnKind
	outputs []int
	gateway *bpmn.Gateway
	end     *bpmn.Event
}

// Engine walks a Diagram, dispatching to a Handler[T] for callback
// decisions, in the strictness mode configured at construction.
type Engine[T any] struct {
	diagram  *diagram.Diagram
	handler  *handler.Handler[T]
	strict   bool
	parallel bool
	logTag   string
}

// Option configures an Engine at construction time.
type Option[T any] func(*Engine[T])

// WithParallel evaluates the tokens within a single frontier
// concurrently (spec 5: "sibling frontiers and tokens within a
// frontier in parallel"). flow() is pure w.r.t. engine state -- the
// only shared mutable state a handler touches is user data, guarded by
// the lock embedded in api.Data -- so fanning it out is safe; the
// Fork/Join/End effects it produces are still applied to the frontier
// sequentially, in token order, once every goroutine in the batch has
// returned.
func WithParallel[T any]() Option[T] {
	return func(e *Engine[T]) { e.parallel = true }
}

// New builds an Engine over a built diagram and handler registry.
// strict enables the unbalanced-diagram check after every join.
func New[T any](d *diagram.Diagram, h *handler.Handler[T], strict bool, logTag string, opts ...Option[T]) *Engine[T] {
	e := &Engine[T]{diagram: d, handler: h, strict: strict, logTag: logTag}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunDiagram executes every top-level process listed in the
// Definitions block in order, returning the end-node descriptor of
// the last process's terminating end event.
func (e *Engine[T]) RunDiagram(data api.Data[T]) (api.EndNode, error) {
	defs, err := e.diagram.Definitions()
	if err != nil {
		return api.EndNode{}, err
	}

	var last api.EndNode
	ran := false
	for _, n := range defs.Nodes {
		proc, ok := n.(*bpmn.Process)
		if !ok || proc.DataIndex == nil {
			continue
		}
		pd, err := e.diagram.Get(*proc.DataIndex)
		if err != nil {
			return api.EndNode{}, err
		}
		end, err := e.Execute(pd, data)
		if err != nil {
			return api.EndNode{}, err
		}
		last = end
		ran = true
	}
	if !ran {
		return api.EndNode{}, bpmnerr.MissingStartEvent()
	}
	return last, nil
}

// Execute runs the worklist loop (spec 4.3.2) over a single
// ProcessData until a terminating end event is reached.
func (e *Engine[T]) Execute(pd *diagram.ProcessData, data api.Data[T]) (api.EndNode, error) {
	if pd.Start == nil {
		return api.EndNode{}, bpmnerr.MissingStartEvent()
	}

	fr := newFrontier(*pd.Start, e.strict)
	var lastEnd *bpmn.Event

	for {
		active := fr.activeTokens()
		if len(active) == 0 {
			if lastEnd == nil {
				return api.EndNode{}, bpmnerr.MissingEndEvent()
			}
			return endNodeOf(lastEnd), nil
		}

		// Reverse iteration over frontiers: a nested fork completes
		// before an outer one progresses. tokensConsumed/resumeJoin run
		// once per frontier, immediately after that frontier's tokens
		// are consumed -- not once per round -- so the completed
		// top-of-stack tokenData is popped before the next frontier in
		// this round gets a chance to consume onto it.
		for i := len(active) - 1; i >= 0; i-- {
			results, err := e.flowFrontier(pd, active[i], data)
			if err != nil {
				return api.EndNode{}, err
			}

			for _, result := range results {
				switch result.kind {
				case returnJoin:
					glog.V(1).Infof("%sjoin: gateway %s", e.logTag, describeGateway(result.gateway))
					fr.consumeToken(result.gateway)
				case returnEnd:
					if result.end.Symbol == bpmn.SymbolTerminate || result.end.Symbol == bpmn.SymbolCancel {
						return endNodeOf(result.end), nil
					}
					fr.consumeToken(nil)
					lastEnd = result.end
				case returnFork:
					fr.pendingFork(result.outputs)
				}
			}

			joined, ok, err := fr.tokensConsumed()
			if err != nil {
				return api.EndNode{}, err
			}
			if ok {
				if err := e.resumeJoin(pd, joined, fr, data); err != nil {
					return api.EndNode{}, err
				}
			}
		}

		fr.commit()
	}
}

// flowFrontier advances every token in one frontier, in token order
// for the results it returns. With parallel mode off (the default)
// tokens run one at a time, identical to a single flow() call per
// token. With parallel mode on, the flow() calls themselves run
// concurrently -- they only read diagram/handler state and touch user
// data through its lock -- but results are still collected and handed
// back in original token order, so the caller applies Fork/Join/End
// effects to the frontier deterministically and sequentially.
func (e *Engine[T]) flowFrontier(pd *diagram.ProcessData, tokens []int, data api.Data[T]) ([]stepResult, error) {
	results := make([]stepResult, len(tokens))
	errs := make([]error, len(tokens))

	if e.parallel && len(tokens) > 1 {
		var wg sync.WaitGroup
		wg.Add(len(tokens))
		for i, tok := range tokens {
			go func(i, tok int) {
				defer wg.Done()
				glog.V(1).Infof("%sflow: node %d", e.logTag, tok)
				results[i], errs[i] = e.flow(pd, tok, data)
			}(i, tok)
		}
		wg.Wait()
	} else {
		for i, tok := range tokens {
			glog.V(1).Infof("%sflow: node %d", e.logTag, tok)
			results[i], errs[i] = e.flow(pd, tok, data)
		}
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// resumeJoin fires the gateway a completed fork's tokens joined at
// (spec 4.3.5): Parallel forks its outputs once enough distinct
// arrivals occurred, Inclusive re-runs its callback, and a
// single-output join is promoted immediately rather than treated as a
// fresh fork.
func (e *Engine[T]) resumeJoin(pd *diagram.ProcessData, joined []*bpmn.Gateway, fr *frontier, data api.Data[T]) error {
	if len(joined) == 0 {
		return nil
	}
	gw := joined[0]

	switch gw.GatewayType {
	case bpmn.GatewayParallel:
		arrived := len(joined)
		if arrived < gw.Inputs {
			return bpmnerr.BpmnRequirement(fmt.Sprintf("not enough tokens at %s", describeGateway(gw)))
		}
		if gw.Outputs.Len() == 1 {
			fr.immediate([]int{pd.ResolveFlow(gw.Outputs.LocalIDs[0])})
			return nil
		}
		fr.pendingFork(resolveAll(pd, gw.Outputs.LocalIDs))
		return nil

	case bpmn.GatewayInclusive:
		if gw.Outputs.Len() == 1 {
			fr.immediate([]int{pd.ResolveFlow(gw.Outputs.LocalIDs[0])})
			return nil
		}
		targets, err := e.resolveInclusiveTargets(pd, gw, data)
		if err != nil {
			return err
		}
		if len(targets) == 1 {
			fr.immediate(targets)
			return nil
		}
		fr.pendingFork(targets)
		return nil

	default:
		return bpmnerr.NotSupported("join at a non-parallel/inclusive gateway")
	}
}

// flow advances a single token through straight-line edges (spec
// 4.3.3), returning a Fork, Join, or End result at the first node that
// cannot simply pass through.
func (e *Engine[T]) flow(pd *diagram.ProcessData, localID int, data api.Data[T]) (stepResult, error) {
	node := pd.Nodes[localID]

	switch v := node.(type) {
	case *bpmn.Event:
		switch v.EventType {
		case bpmn.EventStart, bpmn.EventIntermediateCatch, bpmn.EventBoundary:
			return e.forkOrPassthrough(pd, &v.Outputs, describeNode(v), data)

		case bpmn.EventIntermediateThrow:
			if v.Symbol == bpmn.SymbolLink {
				if v.Name == "" {
					return stepResult{}, bpmnerr.MissingIntermediateThrowEventName(v.ID.BpmnID)
				}
				catchID, ok := pd.CatchEventLink(v.Name)
				if !ok {
					return stepResult{}, bpmnerr.MissingIntermediateCatchEvent(v.Symbol.String(), v.Name)
				}
				return e.flow(pd, catchID, data)
			}
			return e.forkOrPassthrough(pd, &v.Outputs, describeNode(v), data)

		case bpmn.EventEnd:
			return stepResult{kind: returnEnd, end: v}, nil
		}
		return stepResult{}, bpmnerr.NotSupported("unknown event type")

	case *bpmn.Activity:
		if v.ActivityType.Callable() {
			return e.flowTask(pd, localID, v, data)
		}
		return e.flowSubProcess(pd, localID, v, data)

	case *bpmn.Gateway:
		return e.routeGateway(pd, v, data)

	case *bpmn.SequenceFlow:
		return e.flow(pd, v.TargetRef.LocalID, data)
	}

	return stepResult{}, bpmnerr.NotSupported("unknown node kind")
}

func (e *Engine[T]) flowTask(pd *diagram.ProcessData, localID int, act *bpmn.Activity, data api.Data[T]) (stepResult, error) {
	if act.FuncIdx == nil {
		return stepResult{}, bpmnerr.MissingImplementation(describeNode(act))
	}
	boundary, err := e.handler.RunTask(*act.FuncIdx, data)
	if err != nil {
		return stepResult{}, bpmnerr.ProcessExecution(err)
	}
	if boundary != nil {
		ev, err := pd.FindBoundary(localID, *boundary)
		if err != nil {
			return stepResult{}, err
		}
		return e.flow(pd, ev.ID.LocalID, data)
	}
	return e.forkOrPassthrough(pd, &act.Outputs, describeNode(act), data)
}

func (e *Engine[T]) flowSubProcess(pd *diagram.ProcessData, localID int, act *bpmn.Activity, data api.Data[T]) (stepResult, error) {
	if act.DataIndex == nil {
		return stepResult{}, bpmnerr.MissingProcessData(act.ID.BpmnID)
	}
	subPD, err := e.diagram.Get(*act.DataIndex)
	if err != nil {
		return stepResult{}, err
	}
	end, err := e.Execute(subPD, data)
	if err != nil {
		return stepResult{}, err
	}

	if end.Symbol.Interrupting() {
		b := api.Boundary{Symbol: end.Symbol}
		if end.Name != nil {
			b.Name = end.Name
		}
		if ev, err := pd.FindBoundary(localID, b); err == nil {
			return e.flow(pd, ev.ID.LocalID, data)
		}
		return stepResult{}, bpmnerr.MissingBoundary(b.String(), describeNode(act))
	}

	return e.forkOrPassthrough(pd, &act.Outputs, describeNode(act), data)
}

// forkOrPassthrough is the `n=0 -> MissingOutput, n=1 -> passthrough,
// n>=2 -> Fork` degenerate rule applied to Start/IntermediateCatch/
// Boundary events, non-Link IntermediateThrow events, and activities.
func (e *Engine[T]) forkOrPassthrough(pd *diagram.ProcessData, outputs *bpmn.Outputs, label string, data api.Data[T]) (stepResult, error) {
	switch outputs.Len() {
	case 0:
		return stepResult{}, bpmnerr.MissingOutput(label)
	case 1:
		return e.flow(pd, pd.ResolveFlow(outputs.LocalIDs[0]), data)
	default:
		return stepResult{kind: returnFork, outputs: resolveAll(pd, outputs.LocalIDs)}, nil
	}
}

// routeGateway implements spec 4.3.4. The n=1 && inputs=1 passthrough
// is checked before any gateway-type dispatch, mirroring the ordering
// visible in the original engine (not stated as an ordering in the
// distilled spec text, but load-bearing).
func (e *Engine[T]) routeGateway(pd *diagram.ProcessData, gw *bpmn.Gateway, data api.Data[T]) (stepResult, error) {
	n := gw.Outputs.Len()
	if n == 0 {
		return stepResult{}, bpmnerr.MissingOutput(describeGateway(gw))
	}
	// An Exclusive gateway with a single output is a passthrough
	// regardless of input count -- this is what makes an exclusive
	// merge (>1 inputs, 1 output) and a loop re-entry point work
	// without a bound callback, since InstallAndCheck only binds
	// gateways with Outputs.Len() > 1.
	if n == 1 && gw.GatewayType == bpmn.GatewayExclusive {
		return e.flow(pd, pd.ResolveFlow(gw.Outputs.LocalIDs[0]), data)
	}
	if n == 1 && gw.Inputs <= 1 {
		return e.flow(pd, pd.ResolveFlow(gw.Outputs.LocalIDs[0]), data)
	}

	switch gw.GatewayType {
	case bpmn.GatewayExclusive:
		return e.routeExclusive(pd, gw, data)

	case bpmn.GatewayParallel:
		if gw.Inputs > 1 {
			return stepResult{kind: returnJoin, gateway: gw}, nil
		}
		return stepResult{kind: returnFork, outputs: resolveAll(pd, gw.Outputs.LocalIDs)}, nil

	case bpmn.GatewayInclusive:
		if gw.Inputs > 1 {
			return stepResult{kind: returnJoin, gateway: gw}, nil
		}
		targets, err := e.resolveInclusiveTargets(pd, gw, data)
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{kind: returnFork, outputs: targets}, nil

	case bpmn.GatewayEventBased:
		if n == 1 {
			return stepResult{}, bpmnerr.BpmnRequirement(bpmnerr.AtLeastTwoOutgoing)
		}
		if gw.FuncIdx == nil {
			return stepResult{}, bpmnerr.MissingImplementation(describeGateway(gw))
		}
		ie, err := e.handler.RunEventBased(*gw.FuncIdx, data)
		if err != nil {
			return stepResult{}, bpmnerr.ProcessExecution(err)
		}
		sfLocal, ok := pd.FindByIntermediateEvent(gw, ie)
		if !ok {
			return stepResult{}, bpmnerr.MissingIntermediateEvent(describeGateway(gw), ie.Name)
		}
		return e.flow(pd, pd.ResolveFlow(sfLocal), data)

	default:
		return stepResult{}, bpmnerr.NotSupported("complex gateway")
	}
}

func (e *Engine[T]) routeExclusive(pd *diagram.ProcessData, gw *bpmn.Gateway, data api.Data[T]) (stepResult, error) {
	if gw.FuncIdx == nil {
		return stepResult{}, bpmnerr.MissingImplementation(describeGateway(gw))
	}
	selected, err := e.handler.RunExclusive(*gw.FuncIdx, data)
	if err != nil {
		return stepResult{}, bpmnerr.ProcessExecution(err)
	}

	var sfLocal int
	if selected != nil {
		if local, ok := pd.FindByNameOrID(gw, *selected); ok {
			sfLocal = local
			return e.flow(pd, pd.ResolveFlow(sfLocal), data)
		}
	}
	local, err := pd.DefaultPath(gw)
	if err != nil {
		return stepResult{}, err
	}
	return e.flow(pd, pd.ResolveFlow(local), data)
}

// resolveInclusiveTargets runs (or re-runs, at join time) an Inclusive
// gateway's callback and resolves its With selection into destination
// node local ids, deduplicating Fork selections with a warning.
func (e *Engine[T]) resolveInclusiveTargets(pd *diagram.ProcessData, gw *bpmn.Gateway, data api.Data[T]) ([]int, error) {
	if gw.FuncIdx == nil {
		return nil, bpmnerr.MissingImplementation(describeGateway(gw))
	}
	with, err := e.handler.RunInclusive(*gw.FuncIdx, data)
	if err != nil {
		return nil, bpmnerr.ProcessExecution(err)
	}

	switch with.Kind {
	case api.WithDefault:
		return e.defaultTarget(pd, gw)

	case api.WithFlow:
		if local, ok := pd.FindByNameOrID(gw, with.Flow); ok {
			return []int{pd.ResolveFlow(local)}, nil
		}
		return e.defaultTarget(pd, gw)

	case api.WithFork:
		if len(with.Items) == 0 {
			return e.defaultTarget(pd, gw)
		}
		seen := make(map[int]struct{})
		dup := false
		var out []int
		for _, item := range with.Items {
			local, ok := pd.FindByNameOrID(gw, item)
			if !ok {
				continue
			}
			if _, exists := seen[local]; exists {
				dup = true
				continue
			}
			seen[local] = struct{}{}
			out = append(out, pd.ResolveFlow(local))
		}
		if dup {
			glog.Warningf("%sinclusive gateway %s: discarding duplicate selected flows", e.logTag, describeGateway(gw))
		}
		if len(out) == 0 {
			return e.defaultTarget(pd, gw)
		}
		return out, nil
	}

	return nil, bpmnerr.NotSupported("inclusive gateway selection")
}

func (e *Engine[T]) defaultTarget(pd *diagram.ProcessData, gw *bpmn.Gateway) ([]int, error) {
	local, err := pd.DefaultPath(gw)
	if err != nil {
		return nil, err
	}
	return []int{pd.ResolveFlow(local)}, nil
}

func resolveAll(pd *diagram.ProcessData, sfLocalIDs []int) []int {
	targets := make([]int, len(sfLocalIDs))
	for i, sfLocal := range sfLocalIDs {
		targets[i] = pd.ResolveFlow(sfLocal)
	}
	return targets
}

func endNodeOf(ev *bpmn.Event) api.EndNode {
	var name *string
	if ev.Name != "" {
		n := ev.Name
		name = &n
	}
	return api.EndNode{ID: ev.ID.BpmnID, Name: name, Symbol: ev.Symbol}
}

func describeNode(n bpmn.Node) string {
	if name := bpmn.Name(n); name != "" {
		return name
	}
	return bpmn.ID(n).BpmnID
}

func describeGateway(gw *bpmn.Gateway) string {
	if gw.Name != "" {
		return gw.Name
	}
	return gw.ID.BpmnID
}
