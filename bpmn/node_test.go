package bpmn_test

import (
	"testing"

	"github.com/cydarm/bpmn-engine/bpmn"
	"github.com/stretchr/testify/assert"
)

func TestSymbolInterrupting(t *testing.T) {
	assert.True(t, bpmn.SymbolError.Interrupting())
	assert.True(t, bpmn.SymbolEscalation.Interrupting())
	assert.True(t, bpmn.SymbolCancel.Interrupting())
	assert.True(t, bpmn.SymbolCompensation.Interrupting())
	assert.True(t, bpmn.SymbolConditional.Interrupting())
	assert.True(t, bpmn.SymbolMessage.Interrupting())
	assert.True(t, bpmn.SymbolSignal.Interrupting())
	assert.True(t, bpmn.SymbolTimer.Interrupting())
	assert.False(t, bpmn.SymbolNone.Interrupting())
	assert.False(t, bpmn.SymbolTerminate.Interrupting())
	assert.False(t, bpmn.SymbolLink.Interrupting())
}

func TestOutputsResolve(t *testing.T) {
	var o bpmn.Outputs
	o.Add("flow1")
	o.Add("flow2")
	assert.Equal(t, 2, o.Len())

	lookup := map[string]int{"flow1": 3, "flow2": 7}
	assert.NoError(t, o.Resolve(lookup))
	assert.Equal(t, []int{3, 7}, o.LocalIDs)
}

func TestOutputsResolveMissing(t *testing.T) {
	var o bpmn.Outputs
	o.Add("nowhere")
	err := o.Resolve(map[string]int{})
	assert.Error(t, err)
}

func TestNodeHelpers(t *testing.T) {
	gw := &bpmn.Gateway{ID: bpmn.Id{BpmnID: "gw1"}, GatewayType: bpmn.GatewayParallel}
	bpmn.AddOutput(gw, "flow1")
	bpmn.AddInput(gw)
	bpmn.AddInput(gw)

	assert.Equal(t, 1, gw.Outputs.Len())
	assert.Equal(t, 2, gw.Inputs)

	bpmn.SetLocalID(gw, 5)
	assert.Equal(t, 5, bpmn.ID(gw).LocalID)

	proc := &bpmn.Process{ID: bpmn.Id{BpmnID: "p1"}, Name: "Sub"}
	bpmn.SetDataIndex(proc, 2)
	assert.NotNil(t, proc.DataIndex)
	assert.Equal(t, 2, *proc.DataIndex)
	assert.Equal(t, "Sub", bpmn.Name(proc))
}

func TestActivityTypeCallable(t *testing.T) {
	assert.True(t, bpmn.ActivityTask.Callable())
	assert.False(t, bpmn.ActivitySubProcess.Callable())
}
