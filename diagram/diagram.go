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

// Package diagram holds the index-addressable diagram representation
// (ProcessData/Diagram), the three-stack builder that produces it from
// a stream of XML element events, and the streaming reader front-end.
package diagram

import (
	"fmt"
	"sort"

	"github.com/cydarm/bpmn-engine/api"
	"github.com/cydarm/bpmn-engine/bpmn"
	"github.com/cydarm/bpmn-engine/bpmnerr"
	"github.com/cydarm/bpmn-engine/handler"
)

// ProcessData is a single BPMN process or sub-process: its node array,
// the index of its lone none-symbol start event, and the two lookup
// tables built at finalize time.
type ProcessData struct {
	Nodes           []bpmn.Node
	Start           *int
	Boundaries      map[int][]int
	CatchEventLinks map[string]int
}

func newProcessData() *ProcessData {
	return &ProcessData{
		Boundaries:      make(map[int][]int),
		CatchEventLinks: make(map[string]int),
	}
}

// Add assigns the next local id to node and appends it to Nodes. A
// second none-symbol start event in the same process fails build.
func (pd *ProcessData) Add(node bpmn.Node) error {
	localID := len(pd.Nodes)
	if ev, ok := node.(*bpmn.Event); ok && ev.EventType == bpmn.EventStart && ev.Symbol == bpmn.SymbolNone {
		if pd.Start != nil {
			return bpmnerr.BpmnRequirement(bpmnerr.OnlyOneStartEvent)
		}
		s := localID
		pd.Start = &s
	}
	bpmn.SetLocalID(node, localID)
	pd.Nodes = append(pd.Nodes, node)
	return nil
}

// finalize rewrites every bpmn-id cross-reference in this block into a
// local index and populates Boundaries/CatchEventLinks.
func (pd *ProcessData) finalize() error {
	lookup := make(map[string]int, len(pd.Nodes))
	for _, n := range pd.Nodes {
		id := bpmn.ID(n)
		if id.BpmnID != "" {
			lookup[id.BpmnID] = id.LocalID
		}
	}

	for _, n := range pd.Nodes {
		switch v := n.(type) {
		case *bpmn.Event:
			if err := v.Outputs.Resolve(lookup); err != nil {
				return err
			}
			if v.EventType == bpmn.EventBoundary {
				local, ok := lookup[v.AttachedToRef.BpmnID]
				if !ok {
					return bpmnerr.MissingBpmnData(v.AttachedToRef.BpmnID)
				}
				v.AttachedToRef.LocalID = local
				pd.Boundaries[local] = append(pd.Boundaries[local], v.ID.LocalID)
			}
			if v.EventType == bpmn.EventIntermediateCatch && v.Symbol == bpmn.SymbolLink {
				pd.CatchEventLinks[v.Name] = v.ID.LocalID
			}
		case *bpmn.Activity:
			if err := v.Outputs.Resolve(lookup); err != nil {
				return err
			}
		case *bpmn.Gateway:
			if err := v.Outputs.Resolve(lookup); err != nil {
				return err
			}
			if v.Default != nil {
				local, ok := lookup[v.Default.BpmnID]
				if !ok {
					return bpmnerr.MissingBpmnData(v.Default.BpmnID)
				}
				v.Default.LocalID = local
			}
		case *bpmn.SequenceFlow:
			local, ok := lookup[v.TargetRef.BpmnID]
			if !ok {
				return bpmnerr.MissingTargetRef()
			}
			v.TargetRef.LocalID = local
			if v.SourceRef.BpmnID != "" {
				if sl, ok := lookup[v.SourceRef.BpmnID]; ok {
					v.SourceRef.LocalID = sl
				}
			}
		}
	}
	return nil
}

// FindBoundary looks for a boundary event attached to activityLocalID
// whose symbol matches b, and whose name matches b.Name when the
// handler supplied one. A nil b.Name matches on symbol alone,
// regardless of whether the candidate event itself carries a name.
func (pd *ProcessData) FindBoundary(activityLocalID int, b api.Boundary) (*bpmn.Event, error) {
	for _, id := range pd.Boundaries[activityLocalID] {
		ev, ok := pd.Nodes[id].(*bpmn.Event)
		if !ok || ev.Symbol != b.Symbol {
			continue
		}
		if b.Name == nil || ev.Name == *b.Name {
			return ev, nil
		}
	}
	return nil, bpmnerr.MissingBoundary(b.String(), pd.describeNode(activityLocalID))
}

// FindByNameOrID scans gw's own outputs for a sequence flow whose name
// or bpmn id equals nameOrID, returning its local id.
func (pd *ProcessData) FindByNameOrID(gw *bpmn.Gateway, nameOrID string) (int, bool) {
	for _, localID := range gw.Outputs.LocalIDs {
		sf, ok := pd.Nodes[localID].(*bpmn.SequenceFlow)
		if !ok {
			continue
		}
		if sf.Name == nameOrID || sf.ID.BpmnID == nameOrID {
			return localID, true
		}
	}
	return 0, false
}

// FindByIntermediateEvent scans gw's own outputs for a sequence flow
// leading to a ReceiveTask or Event matching the selected intermediate
// event's name and symbol.
func (pd *ProcessData) FindByIntermediateEvent(gw *bpmn.Gateway, ie api.IntermediateEvent) (int, bool) {
	for _, localID := range gw.Outputs.LocalIDs {
		sf, ok := pd.Nodes[localID].(*bpmn.SequenceFlow)
		if !ok {
			continue
		}
		target := pd.Nodes[sf.TargetRef.LocalID]
		switch t := target.(type) {
		case *bpmn.Activity:
			if t.ActivityType == bpmn.ActivityReceiveTask && t.Name == ie.Name && ie.Symbol == bpmn.SymbolMessage {
				return localID, true
			}
		case *bpmn.Event:
			if t.Name != ie.Name {
				continue
			}
			switch ie.Symbol {
			case bpmn.SymbolMessage, bpmn.SymbolSignal, bpmn.SymbolTimer, bpmn.SymbolConditional:
				if t.Symbol == ie.Symbol {
					return localID, true
				}
			}
		}
	}
	return 0, false
}

// CatchEventLink looks up the intermediate catch event local id for a
// link name, within this ProcessData only.
func (pd *ProcessData) CatchEventLink(name string) (int, bool) {
	id, ok := pd.CatchEventLinks[name]
	return id, ok
}

// ResolveFlow follows a sequence flow's targetRef, returning the local
// id of the node it points to.
func (pd *ProcessData) ResolveFlow(sfLocalID int) int {
	sf := pd.Nodes[sfLocalID].(*bpmn.SequenceFlow)
	return sf.TargetRef.LocalID
}

// DefaultPath resolves a gateway's declared default flow, or fails
// with MissingDefault when none was set.
func (pd *ProcessData) DefaultPath(gw *bpmn.Gateway) (int, error) {
	if gw.Default == nil {
		return 0, bpmnerr.MissingDefault(pd.describeGateway(gw))
	}
	return gw.Default.LocalID, nil
}

func (pd *ProcessData) describeNode(localID int) string {
	if localID < 0 || localID >= len(pd.Nodes) {
		return ""
	}
	if name := bpmn.Name(pd.Nodes[localID]); name != "" {
		return name
	}
	return bpmn.ID(pd.Nodes[localID]).BpmnID
}

func (pd *ProcessData) describeGateway(gw *bpmn.Gateway) string {
	if gw.Name != "" {
		return gw.Name
	}
	return gw.ID.BpmnID
}

// Diagram is the ordered sequence of finalized ProcessData blocks. The
// last block is the Definitions block; earlier blocks are top-level
// processes and their nested sub-processes, leaves first.
type Diagram struct {
	Blocks []*ProcessData
}

// Get returns the ProcessData block at idx.
func (d *Diagram) Get(idx int) (*ProcessData, error) {
	if idx < 0 || idx >= len(d.Blocks) {
		return nil, bpmnerr.MissingProcessData(fmt.Sprintf("#%d", idx))
	}
	return d.Blocks[idx], nil
}

// Definitions returns the last block, which lists all top-level
// processes by DataIndex.
func (d *Diagram) Definitions() (*ProcessData, error) {
	if len(d.Blocks) == 0 {
		return nil, bpmnerr.MissingDefinitionsID()
	}
	return d.Blocks[len(d.Blocks)-1], nil
}

// InstallAndCheck walks every block, binding a callback index to every
// callable activity and every multi-output Exclusive/Inclusive/
// EventBased gateway. It returns the sorted set of unresolved
// (kind: name) descriptors; an empty result means build succeeds.
func (d *Diagram) InstallAndCheck(hm *handler.HandlerMap) []string {
	missing := make(map[string]struct{})

	for _, pd := range d.Blocks {
		for _, n := range pd.Nodes {
			switch v := n.(type) {
			case *bpmn.Activity:
				if !v.ActivityType.Callable() {
					continue
				}
				key := v.Name
				if key == "" {
					key = v.ID.BpmnID
				}
				if idx, ok := hm.Get(handler.Task, key); ok {
					i := idx
					v.FuncIdx = &i
				} else {
					missing[fmt.Sprintf("Task: %s", key)] = struct{}{}
				}
			case *bpmn.Gateway:
				if v.Outputs.Len() <= 1 {
					continue
				}
				var kind handler.HandlerType
				switch v.GatewayType {
				case bpmn.GatewayExclusive:
					kind = handler.Exclusive
				case bpmn.GatewayInclusive:
					kind = handler.Inclusive
				case bpmn.GatewayEventBased:
					kind = handler.EventBased
				default:
					continue
				}
				key := v.Name
				if key == "" {
					key = v.ID.BpmnID
				}
				if idx, ok := hm.Get(kind, key); ok {
					i := idx
					v.FuncIdx = &i
				} else {
					missing[fmt.Sprintf("%s: %s", kind, key)] = struct{}{}
				}
			}
		}
	}

	out := make([]string, 0, len(missing))
	for k := range missing {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
