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
	"encoding/xml"
	"io"
	"os"
	"strings"

	"github.com/cydarm/bpmn-engine/bpmn"
	"github.com/cydarm/bpmn-engine/bpmnerr"
)

var activityTypes = map[string]bpmn.ActivityType{
	"task":             bpmn.ActivityTask,
	"scriptTask":       bpmn.ActivityScriptTask,
	"userTask":         bpmn.ActivityUserTask,
	"serviceTask":      bpmn.ActivityServiceTask,
	"sendTask":         bpmn.ActivitySendTask,
	"receiveTask":      bpmn.ActivityReceiveTask,
	"manualTask":       bpmn.ActivityManualTask,
	"businessRuleTask": bpmn.ActivityBusinessRuleTask,
	"callActivity":     bpmn.ActivityCallActivity,
}

var gatewayTypes = map[string]bpmn.GatewayType{
	"exclusiveGateway":  bpmn.GatewayExclusive,
	"inclusiveGateway":  bpmn.GatewayInclusive,
	"parallelGateway":   bpmn.GatewayParallel,
	"eventBasedGateway": bpmn.GatewayEventBased,
}

var eventTypes = map[string]bpmn.EventType{
	"startEvent":             bpmn.EventStart,
	"endEvent":               bpmn.EventEnd,
	"intermediateThrowEvent": bpmn.EventIntermediateThrow,
	"intermediateCatchEvent": bpmn.EventIntermediateCatch,
	"boundaryEvent":          bpmn.EventBoundary,
}

var symbolDefinitions = map[string]bpmn.Symbol{
	"messageEventDefinition":     bpmn.SymbolMessage,
	"timerEventDefinition":       bpmn.SymbolTimer,
	"signalEventDefinition":      bpmn.SymbolSignal,
	"errorEventDefinition":       bpmn.SymbolError,
	"escalationEventDefinition":  bpmn.SymbolEscalation,
	"cancelEventDefinition":      bpmn.SymbolCancel,
	"compensateEventDefinition":  bpmn.SymbolCompensation,
	"terminateEventDefinition":   bpmn.SymbolTerminate,
	"conditionalEventDefinition": bpmn.SymbolConditional,
	"linkEventDefinition":        bpmn.SymbolLink,
}

func attr(start xml.StartElement, name string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func idOf(start xml.StartElement, kind string) (bpmn.Id, error) {
	id, ok := attr(start, "id")
	if !ok {
		return bpmn.Id{}, bpmnerr.MissingID(kind)
	}
	return bpmn.Id{BpmnID: id}, nil
}

func optionalRef(start xml.StartElement, name string) *bpmn.Id {
	if v, ok := attr(start, name); ok {
		return &bpmn.Id{BpmnID: v}
	}
	return nil
}

// Read parses a BPMN 2.0 XML document from r into a Diagram, driving
// the three-stack builder from a streaming token loop.
func Read(r io.Reader) (*Diagram, error) {
	dec := xml.NewDecoder(r)
	b := newBuilder()

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if isUTF8Error(err) {
				return nil, bpmnerr.UTF8(err)
			}
			return nil, bpmnerr.File(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := handleStart(b, t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if err := handleEnd(b, t); err != nil {
				return nil, err
			}
		case xml.CharData:
			b.addText(string(t))
		}
	}

	return b.finish()
}

// ReadFile reads and parses a BPMN 2.0 XML document from a file path.
func ReadFile(path string) (*Diagram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, bpmnerr.IO(err)
	}
	defer f.Close()
	return Read(f)
}

// isUTF8Error reports whether a decoder error is a malformed-UTF-8
// complaint rather than a structural XML syntax error. encoding/xml
// has no distinct error type for this (unlike quick_xml's
// str::Utf8Error), so it is recognized by message the way the
// standard library's own xml.Decoder documents it ("invalid UTF-8").
func isUTF8Error(err error) bool {
	return strings.Contains(err.Error(), "UTF-8")
}

// ReadString parses a BPMN 2.0 XML document held in a string.
func ReadString(src string) (*Diagram, error) {
	return Read(strings.NewReader(src))
}

func handleStart(b *builder, t xml.StartElement) error {
	local := t.Name.Local

	switch local {
	case "definitions":
		id, err := idOf(t, local)
		if err != nil {
			return err
		}
		b.addNewProcess(&bpmn.Definitions{ID: id})
		return nil

	case "process":
		id, err := idOf(t, local)
		if err != nil {
			return err
		}
		name, _ := attr(t, "name")
		b.addNewProcess(&bpmn.Process{ID: id, Name: name})
		return nil

	case "subProcess":
		id, err := idOf(t, local)
		if err != nil {
			return err
		}
		name, _ := attr(t, "name")
		b.addNewProcess(&bpmn.Activity{ID: id, Name: name, ActivityType: bpmn.ActivitySubProcess})
		return nil

	case "sequenceFlow":
		id, err := idOf(t, local)
		if err != nil {
			return err
		}
		name, _ := attr(t, "name")
		sf := &bpmn.SequenceFlow{ID: id, Name: name}
		if target, ok := attr(t, "targetRef"); ok {
			sf.TargetRef = bpmn.Id{BpmnID: target}
		}
		if source, ok := attr(t, "sourceRef"); ok {
			sf.SourceRef = bpmn.Id{BpmnID: source}
		}
		b.add(sf)
		return nil

	case "incoming":
		b.addDirection(true)
		return nil

	case "outgoing":
		b.addDirection(false)
		return nil

	case "conditionExpression":
		b.markConditional()
		return nil
	}

	if activityType, ok := activityTypes[local]; ok {
		id, err := idOf(t, local)
		if err != nil {
			return err
		}
		name, _ := attr(t, "name")
		b.add(&bpmn.Activity{ID: id, Name: name, ActivityType: activityType})
		return nil
	}

	if gatewayType, ok := gatewayTypes[local]; ok {
		id, err := idOf(t, local)
		if err != nil {
			return err
		}
		name, _ := attr(t, "name")
		gw := &bpmn.Gateway{ID: id, Name: name, GatewayType: gatewayType}
		gw.Default = optionalRef(t, "default")
		b.add(gw)
		return nil
	}

	if eventType, ok := eventTypes[local]; ok {
		id, err := idOf(t, local)
		if err != nil {
			return err
		}
		name, _ := attr(t, "name")
		ev := &bpmn.Event{ID: id, Name: name, EventType: eventType}
		if eventType == bpmn.EventBoundary {
			if ref, ok := attr(t, "attachedToRef"); ok {
				ev.AttachedToRef = bpmn.Id{BpmnID: ref}
			}
		}
		b.add(ev)
		return nil
	}

	if symbol, ok := symbolDefinitions[local]; ok {
		b.setSymbol(symbol)
		return nil
	}

	// Everything else (bpmndi layout, documentation, extensionElements,
	// multiple/parallelMultiple markers, ...) is ignored.
	return nil
}

func handleEnd(b *builder, t xml.EndElement) error {
	local := t.Name.Local

	switch local {
	case "definitions", "process", "subProcess":
		return b.endProcess()
	case "incoming", "outgoing":
		return b.endDirection()
	}

	if _, ok := activityTypes[local]; ok {
		return b.end()
	}
	if _, ok := gatewayTypes[local]; ok {
		return b.end()
	}
	if _, ok := eventTypes[local]; ok {
		return b.end()
	}
	if local == "sequenceFlow" {
		return b.end()
	}

	return nil
}
