package actions_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riddler/statifier/actions"
	"github.com/riddler/statifier/datamodel"
	"github.com/riddler/statifier/document"
	"github.com/riddler/statifier/eval"
)

// fakeCtx is a minimal actions.Context stand-in for unit-testing
// individual action types in isolation, without a full engine.StateChart.
type fakeCtx struct {
	data        datamodel.Tree
	evaluator   *eval.Adapter
	raised      []string
	raisedData  []any
	sends       []sendCall
	logs        []logCall
	inState     map[string]bool
	invokes     map[string]actions.InvokeHandler
	invocations []registeredInvocation
}

type registeredInvocation struct {
	id          string
	autoForward bool
	handle      actions.Invocation
}

type sendCall struct {
	target, event string
	data          any
	delay, id     string
}

type logCall struct {
	level, message string
	metadata       map[string]any
}

func newFakeCtx() *fakeCtx {
	return &fakeCtx{data: datamodel.Tree{}, evaluator: eval.NewAdapter(), inState: map[string]bool{}}
}

func (f *fakeCtx) Data() datamodel.Tree     { return f.data }
func (f *fakeCtx) SetData(d datamodel.Tree) { f.data = d }
func (f *fakeCtx) EvalContext() eval.Context {
	return eval.Context{Data: f.data, InState: f.InState}
}
func (f *fakeCtx) Evaluator() *eval.Adapter { return f.evaluator }
func (f *fakeCtx) RaiseInternal(name string, data any) {
	f.raised = append(f.raised, name)
	f.raisedData = append(f.raisedData, data)
}
func (f *fakeCtx) ScheduleSend(target, event string, data any, delay, id string) {
	f.sends = append(f.sends, sendCall{target, event, data, delay, id})
}
func (f *fakeCtx) CancelSend(string) {}
func (f *fakeCtx) Log(level, message string, metadata map[string]any) {
	f.logs = append(f.logs, logCall{level, message, metadata})
}
func (f *fakeCtx) InState(id string) bool { return f.inState[id] }
func (f *fakeCtx) InvokeHandler(name string) (actions.InvokeHandler, bool) {
	h, ok := f.invokes[name]
	return h, ok
}
func (f *fakeCtx) RegisterInvocation(id string, autoForward bool, handle actions.Invocation) {
	f.invocations = append(f.invocations, registeredInvocation{id: id, autoForward: autoForward, handle: handle})
}

func compile(t *testing.T, a *eval.Adapter, raw string) document.CompiledExpr {
	t.Helper()
	c, err := a.Compile(raw)
	require.NoError(t, err)
	return c
}

func TestAssignExecute(t *testing.T) {
	ctx := newFakeCtx()
	a := actions.Assign{Location: "x", Expr: compile(t, ctx.evaluator, "41 + 1")}

	require.NoError(t, a.Execute(ctx))
	v, ok := datamodel.Get(ctx.Data(), []datamodel.Segment{{Key: "x"}})
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestRaiseExecute(t *testing.T) {
	ctx := newFakeCtx()
	require.NoError(t, actions.Raise{Event: "internal.done"}.Execute(ctx))
	assert.Equal(t, []string{"internal.done"}, ctx.raised)
}

func TestIfExecutesFirstTrueBranch(t *testing.T) {
	ctx := newFakeCtx()
	ctx.data = datamodel.Tree{"n": 5}

	ifAction := actions.If{Branches: []actions.CondBlock{
		{CondRaw: "n > 10", Cond: compile(t, ctx.evaluator, "n > 10"), Actions: []document.Action{
			actions.Raise{Event: "big"},
		}},
		{CondRaw: "n > 0", Cond: compile(t, ctx.evaluator, "n > 0"), Actions: []document.Action{
			actions.Raise{Event: "positive"},
		}},
		{Actions: []document.Action{actions.Raise{Event: "fallback"}}},
	}}

	require.NoError(t, ifAction.Execute(ctx))
	assert.Equal(t, []string{"positive"}, ctx.raised)
}

func TestIfFallsThroughToElse(t *testing.T) {
	ctx := newFakeCtx()
	ctx.data = datamodel.Tree{"n": -1}

	ifAction := actions.If{Branches: []actions.CondBlock{
		{Cond: compile(t, ctx.evaluator, "n > 0"), Actions: []document.Action{actions.Raise{Event: "positive"}}},
		{Actions: []document.Action{actions.Raise{Event: "else"}}},
	}}

	require.NoError(t, ifAction.Execute(ctx))
	assert.Equal(t, []string{"else"}, ctx.raised)
}

func TestForeachRestoresPriorBindings(t *testing.T) {
	ctx := newFakeCtx()
	ctx.data = datamodel.Tree{
		"item": "sentinel-item",
		"idx":  "sentinel-idx",
		"list": []any{10, 20, 30},
	}

	fe := actions.Foreach{
		Array: compile(t, ctx.evaluator, "list"),
		Item:  "item",
		Index: "idx",
		Actions: []document.Action{
			actions.Assign{Location: "sum", Expr: compile(t, ctx.evaluator, "item")},
		},
	}

	require.NoError(t, fe.Execute(ctx))

	item, ok := datamodel.Get(ctx.Data(), []datamodel.Segment{{Key: "item"}})
	require.True(t, ok)
	assert.Equal(t, "sentinel-item", item)

	idx, ok := datamodel.Get(ctx.Data(), []datamodel.Segment{{Key: "idx"}})
	require.True(t, ok)
	assert.Equal(t, "sentinel-idx", idx)
}

func TestForeachNewItemBindingKeepsLastValue(t *testing.T) {
	ctx := newFakeCtx()
	ctx.data = datamodel.Tree{"list": []any{1, 2}}

	fe := actions.Foreach{
		Array: compile(t, ctx.evaluator, "list"),
		Item:  "item",
		Actions: []document.Action{
			actions.Raise{Event: "tick"},
		},
	}
	require.NoError(t, fe.Execute(ctx))
	assert.Len(t, ctx.raised, 2)

	item, ok := datamodel.Get(ctx.Data(), []datamodel.Segment{{Key: "item"}})
	require.True(t, ok)
	assert.Equal(t, 2, item)
}

func TestSendSchedulesWithResolvedTargetAndEvent(t *testing.T) {
	ctx := newFakeCtx()
	ctx.data = datamodel.Tree{"dest": "#_parent", "name": "ping"}

	send := actions.Send{
		TargetExpr: compile(t, ctx.evaluator, "dest"),
		EventExpr:  compile(t, ctx.evaluator, "name"),
		DelayRaw:   "0s",
		IDRaw:      "s1",
	}
	require.NoError(t, send.Execute(ctx))
	require.Len(t, ctx.sends, 1)
	assert.Equal(t, "#_parent", ctx.sends[0].target)
	assert.Equal(t, "ping", ctx.sends[0].event)
	assert.Equal(t, "s1", ctx.sends[0].id)
}

func TestLogExecuteRecordsMetadata(t *testing.T) {
	ctx := newFakeCtx()
	ctx.data = datamodel.Tree{"x": 7}

	logAction := actions.Log{Label: "checkpoint", Expr: compile(t, ctx.evaluator, "x")}
	require.NoError(t, logAction.Execute(ctx))
	require.Len(t, ctx.logs, 1)
	assert.Equal(t, "checkpoint", ctx.logs[0].message)
	assert.Equal(t, 7, ctx.logs[0].metadata["value"])
}

func TestExecuteAllContinuesPastAFailingAction(t *testing.T) {
	ctx := newFakeCtx()
	list := []document.Action{
		actions.Raise{Event: "first"},
		actions.Assign{Location: "x.y", Expr: compile(t, ctx.evaluator, "1")},
		actions.Raise{Event: "third"},
	}
	ctx.data = datamodel.Tree{"x": 5} // "x" is a scalar, so "x.y" assignment fails

	err := actions.ExecuteAll(ctx, list)
	assert.Error(t, err)
	// "third" still ran even though the assign in between it and "first"
	// failed: actions are best-effort, not a chain that aborts on error.
	assert.Equal(t, []string{"first", "error.execution", "third"}, ctx.raised)
}

func TestAssignFailureRaisesErrorExecution(t *testing.T) {
	ctx := newFakeCtx()
	ctx.data = datamodel.Tree{"x": 5}
	a := actions.Assign{Location: "x.y", Expr: compile(t, ctx.evaluator, "1")}

	err := a.Execute(ctx)
	assert.Error(t, err)
	require.Equal(t, []string{"error.execution"}, ctx.raised)
	meta, ok := ctx.raisedData[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "assign.execution", meta["type"])
}

func TestForeachNotIterableRaisesErrorExecution(t *testing.T) {
	ctx := newFakeCtx()
	ctx.data = datamodel.Tree{"notAList": 5}
	fe := actions.Foreach{Array: compile(t, ctx.evaluator, "notAList"), Item: "item"}

	err := fe.Execute(ctx)
	assert.Error(t, err)
	require.Equal(t, []string{"error.execution"}, ctx.raised)
	meta, ok := ctx.raisedData[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "foreach.execution", meta["type"])
}

func TestForeachContinuesToNextItemAfterInnerActionError(t *testing.T) {
	ctx := newFakeCtx()
	ctx.data = datamodel.Tree{"list": []any{1, 2}, "x": 5}

	fe := actions.Foreach{
		Array: compile(t, ctx.evaluator, "list"),
		Item:  "item",
		Actions: []document.Action{
			actions.Assign{Location: "x.y", Expr: compile(t, ctx.evaluator, "1")}, // always fails: x is a scalar
			actions.Raise{Event: "tick"},
		},
	}
	err := fe.Execute(ctx)
	assert.Error(t, err)
	// both iterations ran their "tick" raise despite the assign failing each time
	assert.Equal(t, 2, countRaised(ctx.raised, "tick"))
}

func countRaised(raised []string, name string) int {
	n := 0
	for _, r := range raised {
		if r == name {
			n++
		}
	}
	return n
}

type fakeInvocation struct {
	cancelled bool
	forwarded []string
}

func (f *fakeInvocation) Cancel()                         { f.cancelled = true }
func (f *fakeInvocation) Forward(eventName string, _ any) { f.forwarded = append(f.forwarded, eventName) }

type fakeHandler struct {
	handle actions.Invocation
	err    error
}

func (h *fakeHandler) Start(actions.Context, actions.Invoke, map[string]any) (actions.Invocation, error) {
	return h.handle, h.err
}

func TestInvokeSuccessRegistersInvocationAndRaisesDoneInvoke(t *testing.T) {
	ctx := newFakeCtx()
	handle := &fakeInvocation{}
	ctx.invokes = map[string]actions.InvokeHandler{"worker": &fakeHandler{handle: handle}}

	inv := actions.Invoke{ID: "task1", Type: "worker", AutoForward: true}
	require.NoError(t, inv.Execute(ctx))

	assert.Equal(t, []string{"done.invoke.task1"}, ctx.raised)
	require.Len(t, ctx.invocations, 1)
	assert.Equal(t, "task1", ctx.invocations[0].id)
	assert.True(t, ctx.invocations[0].autoForward)
	assert.Same(t, handle, ctx.invocations[0].handle)
}

func TestInvokeCommunicationErrorRaisesErrorCommunication(t *testing.T) {
	ctx := newFakeCtx()
	ctx.invokes = map[string]actions.InvokeHandler{
		"worker": &fakeHandler{err: &actions.CommunicationError{Reason: "connection refused"}},
	}

	inv := actions.Invoke{ID: "task1", Type: "worker"}
	assert.Error(t, inv.Execute(ctx))
	assert.Equal(t, []string{"error.communication"}, ctx.raised)
}

func TestInvokeGenericFailureRaisesErrorExecution(t *testing.T) {
	ctx := newFakeCtx()
	ctx.invokes = map[string]actions.InvokeHandler{
		"worker": &fakeHandler{err: fmt.Errorf("rejected")},
	}

	inv := actions.Invoke{ID: "task1", Type: "worker"}
	assert.Error(t, inv.Execute(ctx))
	assert.Equal(t, []string{"error.execution"}, ctx.raised)
}

func TestInvokeMissingHandlerRaisesErrorExecution(t *testing.T) {
	ctx := newFakeCtx()
	inv := actions.Invoke{ID: "task1", Type: "nope"}
	assert.Error(t, inv.Execute(ctx))
	assert.Equal(t, []string{"error.execution"}, ctx.raised)
}
