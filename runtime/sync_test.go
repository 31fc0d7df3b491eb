package runtime_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riddler/statifier/builder"
	"github.com/riddler/statifier/document"
	"github.com/riddler/statifier/engine"
	"github.com/riddler/statifier/logging"
	"github.com/riddler/statifier/runtime"
)

func build(t *testing.T, src string) *document.Document {
	t.Helper()
	doc, err := builder.New().Build(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

const selfSendDoc = `<scxml initial="a">
  <state id="a">
    <onentry>
      <send event="go"/>
    </onentry>
    <transition event="go" target="b"/>
  </state>
  <state id="b"/>
</scxml>`

func TestSendSyncDeliversZeroDelayInternalSendDuringInitialize(t *testing.T) {
	doc := build(t, selfSendDoc)
	sc := engine.New(doc)
	require.NoError(t, runtime.Initialize(sc))
	assert.True(t, sc.InState("b"), "a zero-delay internal send raised from onentry should be delivered by Initialize's drain")
}

const delayedSendDoc = `<scxml initial="a">
  <state id="a">
    <onentry>
      <send event="go" delay="5s"/>
    </onentry>
    <transition event="go" target="b"/>
  </state>
  <state id="b"/>
</scxml>`

func TestSendSyncDeliversDelayedSendImmediatelyWithWarning(t *testing.T) {
	doc := build(t, delayedSendDoc)
	mem := logging.NewMemoryAdapter(16, logging.Trace)
	sc := engine.New(doc, engine.WithLogger(mem))
	require.NoError(t, runtime.Initialize(sc))

	assert.True(t, sc.InState("b"), "the synchronous runtime has no clock, so a delayed send should still be delivered, just immediately")

	found := false
	for _, e := range mem.Entries() {
		if e.Level == logging.Warn && strings.Contains(e.Message, "delivered immediately") {
			found = true
		}
	}
	assert.True(t, found, "collapsing a delay to zero should be logged, not silent")
}

const externalSendDoc = `<scxml initial="a">
  <state id="a">
    <onentry>
      <send event="ping" target="http://example.invalid/hook"/>
    </onentry>
  </state>
</scxml>`

func TestSendSyncDropsExternalTargetSendWithWarning(t *testing.T) {
	doc := build(t, externalSendDoc)
	mem := logging.NewMemoryAdapter(16, logging.Trace)
	sc := engine.New(doc, engine.WithLogger(mem))
	require.NoError(t, runtime.Initialize(sc))

	found := false
	for _, e := range mem.Entries() {
		if e.Level == logging.Warn && strings.Contains(e.Message, "dropped") {
			found = true
		}
	}
	assert.True(t, found, "a send with no transport should be logged and dropped, not silently lost")
}

const pingPongDoc = `<scxml initial="idle">
  <state id="idle">
    <transition event="start" target="running"/>
  </state>
  <state id="running">
    <transition event="stop" target="idle"/>
  </state>
</scxml>`

func TestSendSyncStepsExternalEvents(t *testing.T) {
	doc := build(t, pingPongDoc)
	sc := engine.New(doc)
	require.NoError(t, runtime.Initialize(sc))
	assert.True(t, sc.InState("idle"))

	require.NoError(t, runtime.SendSync(sc, "start", nil))
	assert.True(t, sc.InState("running"))

	require.NoError(t, runtime.SendSync(sc, "stop", nil))
	assert.True(t, sc.InState("idle"))
}
