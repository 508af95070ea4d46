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

package diagram

import (
	"strings"

	"github.com/cydarm/bpmn-engine/bpmn"
	"github.com/cydarm/bpmn-engine/bpmnerr"
)

// direction is the transient build-only node the original reader
// pushes for <incoming>/<outgoing> children. It never joins the
// bpmn.Node union and never leaves this package.
type direction struct {
	incoming bool
	text     strings.Builder
}

// builder is the three-stack state machine that turns a sequence of
// element-start/element-end/text events into finalized ProcessData
// blocks. stack holds the currently open Bpmn nodes (nesting);
// processStack holds the currently open ProcessData blocks (a Process
// may nest SubProcesses); data holds finalized blocks in completion
// order.
type builder struct {
	stack        []bpmn.Node
	processStack []*ProcessData
	directions   []*direction
	data         []*ProcessData
}

func newBuilder() *builder {
	return &builder{}
}

// addNewProcess opens a new ProcessData scope (definitions, process,
// or subProcess) and pushes its own reference node onto stack.
func (b *builder) addNewProcess(node bpmn.Node) {
	b.processStack = append(b.processStack, newProcessData())
	b.stack = append(b.stack, node)
}

// add pushes a leaf Bpmn node (event, activity, gateway, sequence
// flow) onto stack; it is appended to the current ProcessData on End.
func (b *builder) add(node bpmn.Node) {
	b.stack = append(b.stack, node)
}

// addDirection opens a transient direction scope for an
// <incoming>/<outgoing> child element.
func (b *builder) addDirection(incoming bool) {
	b.directions = append(b.directions, &direction{incoming: incoming})
}

// addText accumulates character data into the innermost open
// direction; text outside a direction is ignored.
func (b *builder) addText(text string) {
	if len(b.directions) == 0 {
		return
	}
	b.directions[len(b.directions)-1].text.WriteString(text)
}

// endDirection closes the innermost direction and applies it to the
// node currently on top of stack: outgoing appends to that node's
// outputs, incoming increments a gateway's input counter.
func (b *builder) endDirection() error {
	if len(b.directions) == 0 {
		return bpmnerr.Builder("unmatched direction end")
	}
	d := b.directions[len(b.directions)-1]
	b.directions = b.directions[:len(b.directions)-1]

	if len(b.stack) == 0 {
		return bpmnerr.Builder("direction with no enclosing node")
	}
	node := b.stack[len(b.stack)-1]
	text := strings.TrimSpace(d.text.String())
	if d.incoming {
		bpmn.AddInput(node)
	} else {
		bpmn.AddOutput(node, text)
	}
	return nil
}

// markConditional flags the sequence flow currently on top of stack as
// carrying an inline condition element.
func (b *builder) markConditional() {
	if len(b.stack) == 0 {
		return
	}
	if sf, ok := b.stack[len(b.stack)-1].(*bpmn.SequenceFlow); ok {
		sf.Conditional = true
	}
}

// setSymbol records an event-definition child element's symbol on the
// Event currently on top of stack.
func (b *builder) setSymbol(symbol bpmn.Symbol) {
	if len(b.stack) == 0 {
		return
	}
	if ev, ok := b.stack[len(b.stack)-1].(*bpmn.Event); ok {
		ev.Symbol = symbol
	}
}

// checkUnsupported rejects diagram shapes this engine deliberately
// does not execute: sequence flows carrying an inline condition.
func checkUnsupported(node bpmn.Node) error {
	if sf, ok := node.(*bpmn.SequenceFlow); ok && sf.Conditional {
		return bpmnerr.NotSupported("conditional sequence flow")
	}
	return nil
}

// end pops a leaf node off stack and appends it to the current
// ProcessData, rejecting unsupported shapes first.
func (b *builder) end() error {
	if len(b.stack) == 0 {
		return bpmnerr.Builder("unmatched element end")
	}
	node := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]

	if err := checkUnsupported(node); err != nil {
		return err
	}
	if len(b.processStack) == 0 {
		return bpmnerr.Builder("element end with no open process")
	}
	pd := b.processStack[len(b.processStack)-1]
	return pd.Add(node)
}

// endProcess closes a definitions/process/subProcess scope: it pops
// both stacks, finalizes the completed block, and -- if an enclosing
// ProcessData exists -- records the completed block's index on the
// popped node and appends it to the parent. The outermost definitions
// scope has no parent, so its own reference node is appended to its
// own (about to be finalized) block instead.
func (b *builder) endProcess() error {
	if len(b.stack) == 0 || len(b.processStack) == 0 {
		return bpmnerr.Builder("unmatched process end")
	}
	node := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]

	pd := b.processStack[len(b.processStack)-1]
	b.processStack = b.processStack[:len(b.processStack)-1]

	if len(b.processStack) > 0 {
		idx := len(b.data)
		bpmn.SetDataIndex(node, idx)
		parent := b.processStack[len(b.processStack)-1]
		if err := parent.Add(node); err != nil {
			return err
		}
	} else {
		if err := pd.Add(node); err != nil {
			return err
		}
	}

	if err := pd.finalize(); err != nil {
		return err
	}
	b.data = append(b.data, pd)
	return nil
}

// finish validates the builder ended in a consistent state and
// produces the finished Diagram.
func (b *builder) finish() (*Diagram, error) {
	if len(b.stack) != 0 || len(b.processStack) != 0 {
		return nil, bpmnerr.Builder("unclosed elements at end of document")
	}
	if len(b.data) == 0 {
		return nil, bpmnerr.MissingDefinitionsID()
	}
	return &Diagram{Blocks: b.data}, nil
}
