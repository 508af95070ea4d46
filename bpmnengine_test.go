package bpmnengine_test

import (
	"context"
	"testing"

	bpmnengine "github.com/cydarm/bpmn-engine"
	"github.com/cydarm/bpmn-engine/api"
	"github.com/cydarm/bpmn-engine/bpmnerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterXML = `<?xml version="1.0" encoding="UTF-8"?>
<definitions id="defs1">
  <process id="proc1">
    <startEvent id="start1">
      <outgoing>flow1</outgoing>
    </startEvent>
    <task id="task1" name="Count 1">
      <incoming>flow1</incoming>
      <outgoing>flow2</outgoing>
    </task>
    <exclusiveGateway id="gw1" name="equal to 3" default="flow3">
      <incoming>flow2</incoming>
      <outgoing>flow3</outgoing>
      <outgoing>flowYes</outgoing>
    </exclusiveGateway>
    <endEvent id="end1">
      <incoming>flow3</incoming>
    </endEvent>
    <sequenceFlow id="flow1" sourceRef="start1" targetRef="task1"/>
    <sequenceFlow id="flow2" sourceRef="task1" targetRef="gw1"/>
    <sequenceFlow id="flow3" name="NO" sourceRef="gw1" targetRef="end1"/>
    <sequenceFlow id="flowYes" name="YES" sourceRef="gw1" targetRef="task1"/>
  </process>
</definitions>`

type counterState struct {
	Count int
}

func TestBuilderRunsCounterThreeToCompletion(t *testing.T) {
	b, err := bpmnengine.NewFromString[counterState](counterXML)
	require.NoError(t, err)

	proc, err := b.
		Task("Count 1", func(data api.Data[counterState]) (*api.Boundary, error) {
			s := data.Lock()
			defer data.Unlock()
			s.Count++
			return nil, nil
		}).
		Exclusive("equal to 3", func(data api.Data[counterState]) (*string, error) {
			s := data.Lock()
			defer data.Unlock()
			v := "YES"
			if s.Count == 3 {
				v = "NO"
			}
			return &v, nil
		}).
		Build()
	require.NoError(t, err)

	out, err := proc.Run(context.Background(), counterState{})
	require.NoError(t, err)

	assert.Equal(t, 3, out.Data.Count)
	assert.Equal(t, "end1", out.EndNode.ID)
}

const parallelFanXML = `<?xml version="1.0" encoding="UTF-8"?>
<definitions id="defs1">
  <process id="proc1">
    <startEvent id="start1"><outgoing>f1</outgoing></startEvent>
    <parallelGateway id="fork1">
      <incoming>f1</incoming>
      <outgoing>f2</outgoing>
      <outgoing>f3</outgoing>
      <outgoing>f4</outgoing>
    </parallelGateway>
    <task id="t1" name="Branch1"><incoming>f2</incoming><outgoing>f5</outgoing></task>
    <task id="t2" name="Branch2"><incoming>f3</incoming><outgoing>f6</outgoing></task>
    <task id="t3" name="Branch3"><incoming>f4</incoming><outgoing>f7</outgoing></task>
    <parallelGateway id="join1">
      <incoming>f5</incoming>
      <incoming>f6</incoming>
      <incoming>f7</incoming>
      <outgoing>f8</outgoing>
    </parallelGateway>
    <endEvent id="end1"><incoming>f8</incoming></endEvent>
    <sequenceFlow id="f1" sourceRef="start1" targetRef="fork1"/>
    <sequenceFlow id="f2" sourceRef="fork1" targetRef="t1"/>
    <sequenceFlow id="f3" sourceRef="fork1" targetRef="t2"/>
    <sequenceFlow id="f4" sourceRef="fork1" targetRef="t3"/>
    <sequenceFlow id="f5" sourceRef="t1" targetRef="join1"/>
    <sequenceFlow id="f6" sourceRef="t2" targetRef="join1"/>
    <sequenceFlow id="f7" sourceRef="t3" targetRef="join1"/>
    <sequenceFlow id="f8" sourceRef="join1" targetRef="end1"/>
  </process>
</definitions>`

type fanState struct {
	n int
}

func TestBuilderParallelModeMatchesSequentialResult(t *testing.T) {
	bump := func(data api.Data[fanState]) (*api.Boundary, error) {
		s := data.Lock()
		defer data.Unlock()
		s.n++
		return nil, nil
	}

	build := func(parallel bool) *bpmnengine.Process[fanState] {
		b, err := bpmnengine.NewFromString[fanState](parallelFanXML)
		require.NoError(t, err)
		if parallel {
			b = b.Parallel()
		}
		proc, err := b.
			Task("Branch1", bump).
			Task("Branch2", bump).
			Task("Branch3", bump).
			Build()
		require.NoError(t, err)
		return proc
	}

	seq, err := build(false).Run(context.Background(), fanState{})
	require.NoError(t, err)
	par, err := build(true).Run(context.Background(), fanState{})
	require.NoError(t, err)

	assert.Equal(t, 3, seq.Data.n)
	assert.Equal(t, seq.Data.n, par.Data.n)
	assert.Equal(t, seq.EndNode.ID, par.EndNode.ID)
}

func TestBuilderBuildFailsOnMissingImplementation(t *testing.T) {
	b, err := bpmnengine.NewFromString[counterState](counterXML)
	require.NoError(t, err)

	_, err = b.Build()
	require.Error(t, err)

	var bpmnErr *bpmnerr.Error
	require.ErrorAs(t, err, &bpmnErr)
	assert.Equal(t, bpmnerr.KindMissingImplementations, bpmnErr.Kind)
}
