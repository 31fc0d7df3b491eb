package builder_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riddler/statifier/builder"
	"github.com/riddler/statifier/document"
)

const trafficLight = `<scxml initial="red" version="1.0">
  <datamodel>
    <data id="cycles" expr="0"/>
  </datamodel>
  <state id="red">
    <transition event="tick" target="green">
      <assign location="cycles" expr="cycles + 1"/>
    </transition>
  </state>
  <state id="green">
    <transition event="tick" target="yellow"/>
  </state>
  <state id="yellow">
    <transition event="tick" target="red"/>
  </state>
</scxml>`

func TestBuildBasicCycle(t *testing.T) {
	doc, err := builder.New().Build(strings.NewReader(trafficLight))
	require.NoError(t, err)

	require.NotNil(t, doc.Cache)
	assert.Len(t, doc.DataElems, 1)
	assert.Equal(t, "cycles", doc.DataElems[0].ID)

	red, ok := doc.FindState("red")
	require.True(t, ok)
	assert.Equal(t, document.Atomic, red.Kind)

	ts := doc.TransitionsFrom("red")
	require.Len(t, ts, 1)
	assert.Equal(t, []document.StateID{"green"}, ts[0].Targets)
	require.Len(t, ts[0].Actions, 1)
}

const compoundDoc = `<scxml initial="parent">
  <state id="parent" initial="child1">
    <state id="child1">
      <transition event="go" target="child2"/>
    </state>
    <state id="child2"/>
  </state>
</scxml>`

func TestBuildCompoundAutoEntry(t *testing.T) {
	doc, err := builder.New().Build(strings.NewReader(compoundDoc))
	require.NoError(t, err)

	parent, ok := doc.FindState("parent")
	require.True(t, ok)
	assert.Equal(t, document.Compound, parent.Kind)
	assert.Equal(t, []document.StateID{"child1"}, parent.Initial)
}

const parallelDoc = `<scxml initial="app">
  <parallel id="app">
    <state id="ui" initial="idle">
      <state id="idle"/>
      <state id="busy"/>
    </state>
    <state id="network" initial="offline">
      <state id="offline"/>
      <state id="online"/>
    </state>
  </parallel>
</scxml>`

func TestBuildParallelRegions(t *testing.T) {
	doc, err := builder.New().Build(strings.NewReader(parallelDoc))
	require.NoError(t, err)

	app, ok := doc.FindState("app")
	require.True(t, ok)
	assert.Equal(t, document.Parallel, app.Kind)
	assert.Len(t, app.Children, 2)

	require.NotNil(t, doc.Cache)
	assert.Contains(t, doc.Cache.ParallelRegions["app"], document.StateID("ui"))
}

const malformedDoc = `<scxml initial="a"><state id="a"></scxml>`

func TestBuildRejectsUnbalancedTags(t *testing.T) {
	_, err := builder.New().Build(strings.NewReader(malformedDoc))
	require.Error(t, err)
	var malformed *builder.MalformedSource
	assert.ErrorAs(t, err, &malformed)
}

const missingTargetDoc = `<scxml initial="a">
  <state id="a">
    <transition event="go" target="nope"/>
  </state>
</scxml>`

func TestBuildRejectsUnresolvedTarget(t *testing.T) {
	_, err := builder.New().Build(strings.NewReader(missingTargetDoc))
	require.Error(t, err)
}

const ifDoc = `<scxml initial="a">
  <datamodel>
    <data id="n" expr="5"/>
  </datamodel>
  <state id="a">
    <onentry>
      <if cond="n &gt; 10">
        <raise event="big"/>
      <elseif cond="n &gt; 0"/>
        <raise event="positive"/>
      <else/>
        <raise event="nonpositive"/>
      </if>
    </onentry>
  </state>
</scxml>`

func TestBuildIfElseifElse(t *testing.T) {
	doc, err := builder.New().Build(strings.NewReader(ifDoc))
	require.NoError(t, err)

	a, ok := doc.FindState("a")
	require.True(t, ok)
	require.Len(t, a.OnEntry, 1)
}

const historyDoc = `<scxml initial="parent">
  <state id="parent" initial="child1">
    <state id="child1"/>
    <state id="child2"/>
    <history id="h" type="shallow">
      <transition target="child1"/>
    </history>
  </state>
</scxml>`

func TestBuildHistoryPseudoState(t *testing.T) {
	doc, err := builder.New().Build(strings.NewReader(historyDoc))
	require.NoError(t, err)

	h, ok := doc.FindState("h")
	require.True(t, ok)
	assert.Equal(t, document.HistoryShallow, h.Kind)
	require.NotNil(t, h.InitialTransition)
	assert.Equal(t, []document.StateID{"child1"}, h.InitialTransition.Targets)
}

const badHistoryDoc = `<scxml initial="parent">
  <state id="parent" initial="child1">
    <state id="child1"/>
    <history id="h" type="shallow"/>
  </state>
</scxml>`

func TestBuildRejectsHistoryWithoutDefaultTransition(t *testing.T) {
	_, err := builder.New().Build(strings.NewReader(badHistoryDoc))
	assert.Error(t, err)
}

func TestBuildFullyReachableGraphHasNoWarnings(t *testing.T) {
	doc, err := builder.New().Build(strings.NewReader(trafficLight))
	require.NoError(t, err)
	assert.Empty(t, doc.Warnings)
}

const unreachableDoc = `<scxml initial="a">
  <state id="a">
    <transition event="go" target="b"/>
  </state>
  <state id="b"/>
  <state id="orphan"/>
</scxml>`

func TestBuildReportsUnreachableStateAsNonFatalWarning(t *testing.T) {
	doc, err := builder.New().Build(strings.NewReader(unreachableDoc))
	require.NoError(t, err)
	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0], "orphan")
}
