// Package actions implements the tagged-sum executable-content node types
// (Log, Raise, Assign, If, Foreach, Send, Invoke) and their Execute
// dispatch, mirroring the teacher's internal/extensibility/actionrunner.go
// type-switch dispatch over an opaque ActionRef, generalized from the
// teacher's two concrete cases (func literal, registered-string lookup) to
// one concrete Go type per SCXML executable-content element.
package actions

import (
	"errors"
	"fmt"

	"github.com/riddler/statifier/datamodel"
	"github.com/riddler/statifier/document"
	"github.com/riddler/statifier/eval"
)

// Log corresponds to <log label="..." expr="...">.
type Log struct {
	Label    string
	ExprRaw  string
	Expr     document.CompiledExpr
	Location document.Location
}

func (Log) ActionKind() string { return "log" }

// Raise corresponds to <raise event="...">: an internal event, never
// externally observable.
type Raise struct {
	Event    string
	Location document.Location
}

func (Raise) ActionKind() string { return "raise" }

// Assign corresponds to <assign location="..." expr="...">.
type Assign struct {
	Location string
	ExprRaw  string
	Expr     document.CompiledExpr
	SourcePos document.Location
}

func (Assign) ActionKind() string { return "assign" }

// CondBlock is one <if>/<elseif>/<else> arm. Cond is nil for the trailing
// <else> arm, which always matches.
type CondBlock struct {
	CondRaw string
	Cond    document.CompiledExpr
	Actions []document.Action
}

// If corresponds to <if>...<elseif>...<else>...</if>: the first arm whose
// Cond evaluates true (or the else arm, if reached) runs; at most one arm
// ever executes.
type If struct {
	Branches []CondBlock
	Location document.Location
}

func (If) ActionKind() string { return "if" }

// Foreach corresponds to <foreach array="..." item="..." index="...">.
// Item and Index name datamodel locations. A location that already held a
// value before the loop started is restored to that value once the loop
// completes; a location that did not exist before keeps the value of the
// last iteration.
type Foreach struct {
	ArrayRaw string
	Array    document.CompiledExpr
	Item     string
	Index    string
	Actions  []document.Action
	Location document.Location
}

func (Foreach) ActionKind() string { return "foreach" }

// Param corresponds to <param name="..." expr="..."> or
// <param name="..." location="...">, used by both <send> and <invoke>.
type Param struct {
	Name     string
	Location string
	ExprRaw  string
	Expr     document.CompiledExpr
}

// Send corresponds to <send>: schedules an event (internal if Target is
// "#_internal", external otherwise; Type is carried but not consulted when
// routing) after an optional Delay.
type Send struct {
	IDRaw         string
	IDLocation    string
	EventName     string
	EventExprRaw  string
	EventExpr     document.CompiledExpr
	Target        string
	TargetExprRaw string
	TargetExpr    document.CompiledExpr
	Type          string
	DelayRaw      string
	DelayExpr     document.CompiledExpr
	Params        []Param
	ContentRaw    string
	ContentExpr   document.CompiledExpr
	Location      document.Location
}

func (Send) ActionKind() string { return "send" }

// Invoke corresponds to <invoke>: starts an external service identified by
// Type/Src. Finalize holds the parsed <finalize> actions; Execute does not
// run them.
type Invoke struct {
	ID          string
	IDLocation  string
	Type        string
	TypeExpr    document.CompiledExpr
	Src         string
	SrcExpr     document.CompiledExpr
	Params      []Param
	Finalize    []document.Action
	AutoForward bool
	Location    document.Location
}

func (Invoke) ActionKind() string { return "invoke" }

// Context is the minimal surface an executing action needs: datamodel
// access, event raising/sending, logging, and condition/value evaluation.
// engine.StateChart implements this; actions never imports engine, which
// would otherwise create an actions<->engine import cycle (engine needs to
// walk a Document's action lists to run them).
type Context interface {
	Data() datamodel.Tree
	SetData(datamodel.Tree)
	EvalContext() eval.Context
	Evaluator() *eval.Adapter
	RaiseInternal(name string, data any)
	ScheduleSend(target, eventName string, data any, delay string, sendID string)
	CancelSend(sendID string)
	Log(level string, message string, metadata map[string]any)
	InState(stateID string) bool
	InvokeHandler(invokeType string) (InvokeHandler, bool)
	RegisterInvocation(invokeID string, autoForward bool, handle Invocation)
}

// Invocation is the live handle to a started <invoke>: Cancel stops the
// invoked service (called automatically when the invoking state exits),
// and Forward relays an external event the chart itself just received, for
// an <invoke autoforward="true">.
type Invocation interface {
	Cancel()
	Forward(eventName string, data any)
}

// InvokeHandler starts an <invoke>'d external service. Real production
// handlers (HTTP callouts, child statecharts, message-queue consumers) are
// registered by the embedding application; none ship in this package.
type InvokeHandler interface {
	// Start begins the invoked service. A returned error wrapping
	// CommunicationError is reported as error.communication; any other
	// error (including one surfacing a handler's own internal failure) is
	// reported as error.execution.
	Start(ctx Context, inv Invoke, params map[string]any) (Invocation, error)
}

// CommunicationError marks an InvokeHandler failure as a transport/
// communication problem reaching the invoked service, as opposed to the
// service rejecting the invocation outright -- the distinction the SCXML
// error taxonomy draws between error.communication and error.execution.
type CommunicationError struct {
	Reason string
}

func (e *CommunicationError) Error() string { return e.Reason }

// Execute runs the receiver against ctx. Every concrete action type
// implements this directly so the engine's step loop can range over a
// []document.Action and type-assert back to actions.Executable without a
// second dispatch table.
type Executable interface {
	Execute(ctx Context) error
}

func (a Log) Execute(ctx Context) error {
	var value any
	if a.Expr != nil {
		value = ctx.Evaluator().EvaluateValue(a.Expr, ctx.EvalContext())
	}
	meta := map[string]any{}
	if a.Label != "" {
		meta["label"] = a.Label
	}
	if value != nil {
		meta["value"] = value
	}
	ctx.Log("info", a.Label, meta)
	return nil
}

func (a Raise) Execute(ctx Context) error {
	ctx.RaiseInternal(a.Event, nil)
	return nil
}

func (a Assign) Execute(ctx Context) error {
	value := ctx.Evaluator().EvaluateValue(a.Expr, ctx.EvalContext())
	if datamodel.IsUndefined(value) {
		return nil
	}
	out, err := ctx.Evaluator().Assign(ctx.Data(), a.Location, value)
	if err != nil {
		wrapped := fmt.Errorf("actions: assign %q: %w", a.Location, err)
		ctx.RaiseInternal("error.execution", map[string]any{
			"type": "assign.execution", "location": a.Location, "reason": err.Error(),
		})
		return wrapped
	}
	ctx.SetData(out)
	return nil
}

func (a If) Execute(ctx Context) error {
	for _, branch := range a.Branches {
		if branch.Cond != nil && !ctx.Evaluator().EvaluateCondition(branch.Cond, ctx.EvalContext()) {
			continue
		}
		return ExecuteAll(ctx, branch.Actions)
	}
	return nil
}

func (a Foreach) Execute(ctx Context) error {
	raw := ctx.Evaluator().EvaluateValue(a.Array, ctx.EvalContext())
	items, ok := raw.([]any)
	if !ok {
		err := fmt.Errorf("actions: foreach array %q did not evaluate to a list", a.ArrayRaw)
		ctx.RaiseInternal("error.execution", map[string]any{
			"type": "foreach.execution", "array": a.ArrayRaw, "reason": err.Error(),
		})
		return err
	}

	prevItem, hadItem := datamodel.Get(ctx.Data(), mustPath(a.Item))
	var prevIndex any
	var hadIndex bool
	if a.Index != "" {
		prevIndex, hadIndex = datamodel.Get(ctx.Data(), mustPath(a.Index))
	}

	// Best-effort per SCXML: a binding or inner-block failure on one item
	// does not stop the remaining items from running.
	var firstErr error
	for i, item := range items {
		data, err := datamodel.Assign(ctx.Data(), mustPath(a.Item), item)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("actions: foreach binding item: %w", err)
			}
			continue
		}
		ctx.SetData(data)
		if a.Index != "" {
			data, err = datamodel.Assign(ctx.Data(), mustPath(a.Index), i)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("actions: foreach binding index: %w", err)
				}
				continue
			}
			ctx.SetData(data)
		}
		if err := ExecuteAll(ctx, a.Actions); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	restored := ctx.Data()
	if hadItem {
		restored, _ = datamodel.Assign(restored, mustPath(a.Item), prevItem)
	}
	if a.Index != "" && hadIndex {
		restored, _ = datamodel.Assign(restored, mustPath(a.Index), prevIndex)
	}
	ctx.SetData(restored)
	return firstErr
}

func (a Send) Execute(ctx Context) error {
	name := a.EventName
	if a.EventExpr != nil {
		if v, ok := ctx.Evaluator().EvaluateValue(a.EventExpr, ctx.EvalContext()).(string); ok {
			name = v
		}
	}
	target := a.Target
	if a.TargetExpr != nil {
		if v, ok := ctx.Evaluator().EvaluateValue(a.TargetExpr, ctx.EvalContext()).(string); ok {
			target = v
		}
	}

	// lenient: a <send> with one bad <param> still fires with the rest,
	// rather than dropping the whole event.
	data, _ := ctx.Evaluator().EvaluateParams(toParamSpecs(a.Params), ctx.Data(), ctx.EvalContext(), eval.ParamLenient)
	if data == nil {
		data = map[string]any{}
	}
	if a.ContentExpr != nil {
		data["_content"] = ctx.Evaluator().EvaluateValue(a.ContentExpr, ctx.EvalContext())
	} else if a.ContentRaw != "" {
		data["_content"] = a.ContentRaw
	}

	id := a.IDRaw
	ctx.ScheduleSend(target, name, data, a.DelayRaw, id)
	return nil
}

func (a Invoke) Execute(ctx Context) error {
	handler, ok := ctx.InvokeHandler(a.Type)
	if !ok {
		err := fmt.Errorf("actions: no invoke handler registered for type %q", a.Type)
		ctx.RaiseInternal("error.execution", map[string]any{
			"type": "invoke.execution", "invokeid": a.ID, "reason": err.Error(),
		})
		return err
	}

	// strict: a malformed <param> means the handler never starts with the
	// arguments the document actually declared, so treat it the same as a
	// handler-rejected invocation rather than silently starting it short.
	params, err := ctx.Evaluator().EvaluateParams(toParamSpecs(a.Params), ctx.Data(), ctx.EvalContext(), eval.ParamStrict)
	if err != nil {
		wrapped := fmt.Errorf("actions: invoke %q: %w", a.ID, err)
		ctx.RaiseInternal("error.execution", map[string]any{
			"type": "invoke.execution", "invokeid": a.ID, "reason": err.Error(),
		})
		return wrapped
	}

	handle, err := handler.Start(ctx, a, params)
	if err != nil {
		var commErr *CommunicationError
		if errors.As(err, &commErr) {
			ctx.RaiseInternal("error.communication", map[string]any{"invokeid": a.ID, "reason": err.Error()})
		} else {
			ctx.RaiseInternal("error.execution", map[string]any{
				"type": "invoke.execution", "invokeid": a.ID, "reason": err.Error(),
			})
		}
		return err
	}

	if handle != nil {
		ctx.RegisterInvocation(a.ID, a.AutoForward, handle)
	}

	doneName := "done.invoke"
	if a.ID != "" {
		doneName = "done.invoke." + a.ID
	}
	ctx.RaiseInternal(doneName, nil)
	return nil
}

// toParamSpecs adapts this package's Param (shared by <send> and <invoke>)
// to eval.ParamSpec, the shape evaluate_params operates over.
func toParamSpecs(params []Param) []eval.ParamSpec {
	specs := make([]eval.ParamSpec, len(params))
	for i, p := range params {
		specs[i] = eval.ParamSpec{Name: p.Name, Location: p.Location, Expr: p.Expr}
	}
	return specs
}

// ExecuteAll runs every action in order. Actions are best-effort per
// SCXML: a failing action raises error.execution (or error.communication,
// for Invoke) on its own and execution continues with the rest of the
// list rather than aborting it. ExecuteAll itself returns the first error
// encountered, purely so a caller can log it; callers must not use a
// non-nil return to skip anything, since everything in list has already
// run by the time ExecuteAll returns.
func ExecuteAll(ctx Context, list []document.Action) error {
	var firstErr error
	for _, act := range list {
		exe, ok := act.(Executable)
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("actions: %T does not implement Executable", act)
			}
			continue
		}
		if err := exe.Execute(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func mustPath(location string) []datamodel.Segment {
	path, err := datamodel.ParsePath(location)
	if err != nil {
		return nil
	}
	return path
}
