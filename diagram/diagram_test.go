package diagram_test

import (
	"testing"

	"github.com/cydarm/bpmn-engine/bpmn"
	"github.com/cydarm/bpmn-engine/bpmnerr"
	"github.com/cydarm/bpmn-engine/diagram"
	"github.com/cydarm/bpmn-engine/handler"
	"github.com/stretchr/testify/assert"
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

func TestReadStringParsesCounterDiagram(t *testing.T) {
	d, err := diagram.ReadString(counterXML)
	assert.NoError(t, err)
	assert.Len(t, d.Blocks, 2)

	defs, err := d.Definitions()
	assert.NoError(t, err)
	assert.Len(t, defs.Nodes, 2) // Process node + Definitions node

	proc, ok := defs.Nodes[0].(*bpmn.Process)
	assert.True(t, ok)
	assert.NotNil(t, proc.DataIndex)

	processData, err := d.Get(*proc.DataIndex)
	assert.NoError(t, err)
	assert.NotNil(t, processData.Start)

	startNode := processData.Nodes[*processData.Start].(*bpmn.Event)
	assert.Equal(t, "start1", startNode.ID.BpmnID)
	assert.Equal(t, 1, startNode.Outputs.Len())

	gw := findGateway(t, processData, "gw1")
	assert.Equal(t, 2, gw.Outputs.Len())
	assert.NotNil(t, gw.Default)
}

func TestReadFileMissingPathReportsIOError(t *testing.T) {
	_, err := diagram.ReadFile("/no/such/diagram.bpmn")
	assert.Error(t, err)

	var bpmnErr *bpmnerr.Error
	assert.ErrorAs(t, err, &bpmnErr)
	assert.Equal(t, bpmnerr.KindIO, bpmnErr.Kind)
}

func TestReadStringInvalidUTF8ReportsUTF8Error(t *testing.T) {
	xml := "<?xml version=\"1.0\"?><definitions id=\"defs1\">\xff\xfe</definitions>"
	_, err := diagram.ReadString(xml)
	assert.Error(t, err)

	var bpmnErr *bpmnerr.Error
	assert.ErrorAs(t, err, &bpmnErr)
	assert.Equal(t, bpmnerr.KindUTF8, bpmnErr.Kind)
}

func TestConditionalSequenceFlowRejected(t *testing.T) {
	const xml = `<definitions id="defs1">
  <process id="proc1">
    <startEvent id="start1"><outgoing>flow1</outgoing></startEvent>
    <endEvent id="end1"><incoming>flow1</incoming></endEvent>
    <sequenceFlow id="flow1" sourceRef="start1" targetRef="end1">
      <conditionExpression>count == 3</conditionExpression>
    </sequenceFlow>
  </process>
</definitions>`
	_, err := diagram.ReadString(xml)
	assert.Error(t, err)
}

func TestDuplicateNoneStartRejected(t *testing.T) {
	const xml = `<definitions id="defs1">
  <process id="proc1">
    <startEvent id="start1"><outgoing>flow1</outgoing></startEvent>
    <startEvent id="start2"><outgoing>flow1</outgoing></startEvent>
    <endEvent id="end1"><incoming>flow1</incoming></endEvent>
    <sequenceFlow id="flow1" sourceRef="start1" targetRef="end1"/>
  </process>
</definitions>`
	_, err := diagram.ReadString(xml)
	assert.Error(t, err)
}

func TestInstallAndCheckReportsMissing(t *testing.T) {
	d, err := diagram.ReadString(counterXML)
	assert.NoError(t, err)

	hm := handler.NewHandlerMap()
	missing := d.InstallAndCheck(hm)
	assert.ElementsMatch(t, []string{"Exclusive: equal to 3", "Task: Count 1"}, missing)
}

func TestInstallAndCheckBindsFuncIdx(t *testing.T) {
	d, err := diagram.ReadString(counterXML)
	assert.NoError(t, err)

	hm := handler.NewHandlerMap()
	hm.Insert(handler.Task, "Count 1", 0)
	hm.Insert(handler.Exclusive, "equal to 3", 1)

	missing := d.InstallAndCheck(hm)
	assert.Empty(t, missing)

	defs, _ := d.Definitions()
	proc := defs.Nodes[0].(*bpmn.Process)
	processData, _ := d.Get(*proc.DataIndex)

	task := processData.Nodes[1].(*bpmn.Activity)
	assert.NotNil(t, task.FuncIdx)
	assert.Equal(t, 0, *task.FuncIdx)
}

func findGateway(t *testing.T, pd *diagram.ProcessData, id string) *bpmn.Gateway {
	t.Helper()
	for _, n := range pd.Nodes {
		if gw, ok := n.(*bpmn.Gateway); ok && gw.ID.BpmnID == id {
			return gw
		}
	}
	t.Fatalf("gateway %s not found", id)
	return nil
}
