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

package engine

import (
	"github.com/cydarm/bpmn-engine/bpmn"
	"github.com/cydarm/bpmn-engine/bpmnerr"
)

// tokenData is the fork/join accounting record for one live fork: the
// number of tokens it created, the number consumed so far, and which
// gateways those consumptions joined at.
type tokenData struct {
	created  int
	consumed int
	joined   []*bpmn.Gateway
}

func (t *tokenData) done() bool {
	return t.created <= t.consumed
}

// frontier is the worklist state for one Execute call: frontiers
// awaiting advancement this round, frontiers produced this round
// (promoted after the round), and the LIFO fork/join accounting stack.
// This is the explicit-stack alternative to recursion or coroutines
// the join-synchronisation discipline relies on.
type frontier struct {
	tokensReady [][]int
	uncommitted [][]int
	tokenStack  []*tokenData
	strict      bool
}

func newFrontier(start int, strict bool) *frontier {
	return &frontier{tokensReady: [][]int{{start}}, strict: strict}
}

// activeTokens swaps out the current round's ready frontiers for
// advancement, leaving tokensReady empty for this round's commits.
func (f *frontier) activeTokens() [][]int {
	active := f.tokensReady
	f.tokensReady = nil
	return active
}

// immediate promotes a frontier straight back into tokensReady without
// pushing a new tokenData record: used for single-output joins, which
// do not introduce a new fork.
func (f *frontier) immediate(ids []int) {
	f.tokensReady = append(f.tokensReady, ids)
}

// pendingFork stages a frontier to be promoted (with a fresh tokenData
// record) once the current round finishes.
func (f *frontier) pendingFork(ids []int) {
	f.uncommitted = append(f.uncommitted, ids)
}

// commit promotes every staged frontier, pushing one tokenData record
// per frontier.
func (f *frontier) commit() {
	for _, ids := range f.uncommitted {
		f.tokenStack = append(f.tokenStack, &tokenData{created: len(ids)})
		f.tokensReady = append(f.tokensReady, ids)
	}
	f.uncommitted = nil
}

// consumeToken records that one token of the top-of-stack fork has
// been consumed, either by reaching a join gateway or an end event.
func (f *frontier) consumeToken(gw *bpmn.Gateway) {
	if len(f.tokenStack) == 0 {
		return
	}
	top := f.tokenStack[len(f.tokenStack)-1]
	top.consumed++
	if gw != nil {
		top.joined = append(top.joined, gw)
	}
}

// tokensConsumed pops the top-of-stack fork record if it is fully
// consumed, returning the gateways its tokens joined at. In strict
// mode, arrivals at more than one distinct gateway are rejected as an
// unbalanced diagram.
func (f *frontier) tokensConsumed() ([]*bpmn.Gateway, bool, error) {
	if len(f.tokenStack) == 0 {
		return nil, false, nil
	}
	top := f.tokenStack[len(f.tokenStack)-1]
	if !top.done() {
		return nil, false, nil
	}
	f.tokenStack = f.tokenStack[:len(f.tokenStack)-1]

	if f.strict {
		if err := checkUnbalanced(top.joined); err != nil {
			return nil, false, err
		}
	}
	return top.joined, true, nil
}

func checkUnbalanced(joined []*bpmn.Gateway) error {
	seen := make(map[int]struct{}, len(joined))
	for _, gw := range joined {
		seen[gw.ID.LocalID] = struct{}{}
	}
	if len(seen) > 1 {
		return bpmnerr.NotSupported("Unbalanced diagram")
	}
	return nil
}
