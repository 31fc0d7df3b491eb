// Package eval implements the evaluator adapter: an opaque boundary
// between the interpreter and whatever expression language backs
// conditions, data values, and location-path assignment.
//
// Grounded on the teacher's internal/extensibility/guardevaluator.go
// (string-expression evaluation against a Context) and actionrunner.go
// (tagged dispatch by Go type), generalized from the teacher's hand-rolled
// "key op value" parser to github.com/expr-lang/expr, the expression
// engine used elsewhere across the retrieved pack.
package eval

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/riddler/statifier/datamodel"
)

// Context is the read view an expression is evaluated against: the current
// datamodel, the event being processed (if any), and an In(stateID)
// predicate over the active configuration.
type Context struct {
	Data    datamodel.Tree
	Event   Event
	InState func(stateID string) bool
}

// Event mirrors the subset of an SCXML event an expression may reference
// as `_event`.
type Event struct {
	Name string
	Type string // "platform", "internal", or "external"
	Data any
}

// env is the variable environment handed to expr for every evaluation:
// the datamodel tree's keys are promoted to top-level names, plus the
// reserved `_event` and `In` bindings.
func (c Context) env() map[string]any {
	out := make(map[string]any, len(c.Data)+2)
	for k, v := range c.Data {
		out[k] = v
	}
	out["_event"] = map[string]any{
		"name": c.Event.Name,
		"type": c.Event.Type,
		"data": c.Event.Data,
	}
	in := c.InState
	if in == nil {
		in = func(string) bool { return false }
	}
	out["In"] = in
	return out
}

// Adapter compiles and evaluates expressions. It is the only package that
// imports expr-lang/expr directly; document, actions, and engine see only
// document.CompiledExpr (an opaque any).
type Adapter struct{}

// NewAdapter constructs an evaluator adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Compile parses and type-checks expr into an opaque handle suitable for
// repeated evaluation. Returns an error for malformed expressions so the
// builder can surface it as a validation failure at document-build time.
func (a *Adapter) Compile(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	program, err := expr.Compile(raw, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("eval: compiling %q: %w", raw, err)
	}
	return program, nil
}

// EvaluateCondition runs a compiled cond expression and coerces the result
// to bool. Any runtime error (undefined function, type mismatch) or a
// non-bool result is treated as false rather than propagated, since a
// guard that cannot be evaluated must not enable its transition. Callers
// that need to distinguish "legitimately false" from "could not be
// evaluated" (selectTransitions does, to raise error.execution) should use
// EvaluateConditionChecked instead.
func (a *Adapter) EvaluateCondition(compiled any, ctx Context) bool {
	ok, _ := a.EvaluateConditionChecked(compiled, ctx)
	return ok
}

// EvaluateConditionChecked is EvaluateCondition's counterpart that also
// reports why a condition evaluated to false: a malformed expression, a
// runtime error, or a non-bool result all return (false, err); a nil
// compiled expression (no cond attribute) is vacuously true.
func (a *Adapter) EvaluateConditionChecked(compiled any, ctx Context) (bool, error) {
	if compiled == nil {
		return true, nil
	}
	program, ok := compiled.(*vm.Program)
	if !ok {
		return false, fmt.Errorf("eval: not a compiled expression: %T", compiled)
	}
	out, err := expr.Run(program, ctx.env())
	if err != nil {
		return false, fmt.Errorf("eval: evaluating condition: %w", err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("eval: condition did not evaluate to a boolean (got %T)", out)
	}
	return b, nil
}

// EvaluateValue runs a compiled data/param expression and returns its raw
// result. A runtime error yields datamodel.Undefined, not an error, since
// SCXML data initialization tolerates a failed expression by leaving the
// value undefined rather than aborting the whole document. A nil result
// (what a name missing from the datamodel evaluates to) also yields
// datamodel.Undefined.
func (a *Adapter) EvaluateValue(compiled any, ctx Context) any {
	if compiled == nil {
		return datamodel.Undefined
	}
	program, ok := compiled.(*vm.Program)
	if !ok {
		return datamodel.Undefined
	}
	out, err := expr.Run(program, ctx.env())
	if err != nil || out == nil {
		return datamodel.Undefined
	}
	return out
}

// EvaluateValueStrict is EvaluateValue's counterpart for contexts (such as
// <param> evaluation feeding an external send) where a failed expression
// must be reported rather than silently swallowed.
func (a *Adapter) EvaluateValueStrict(compiled any, ctx Context) (any, error) {
	if compiled == nil {
		return nil, nil
	}
	program, ok := compiled.(*vm.Program)
	if !ok {
		return nil, fmt.Errorf("eval: not a compiled expression: %T", compiled)
	}
	out, err := expr.Run(program, ctx.env())
	if err != nil {
		return nil, fmt.Errorf("eval: evaluating expression: %w", err)
	}
	return out, nil
}

// ParamPolicy controls EvaluateParams's behavior when one <param> fails to
// evaluate.
type ParamPolicy int

const (
	// ParamLenient drops a <param> that fails to evaluate and keeps going,
	// the default for <send> (outbound events are best-effort).
	ParamLenient ParamPolicy = iota
	// ParamStrict aborts EvaluateParams entirely on the first failure, used
	// for <invoke> since starting a service short of params it declared is
	// worse than not starting it at all.
	ParamStrict
)

// ParamSpec is one <param name="..." expr="..."> or <param name="..."
// location="...">, the shape both <send> and <invoke> share.
type ParamSpec struct {
	Name     string
	Location string
	Expr     any
}

// EvaluateParams evaluates every spec in document order into a name->value
// map. Under ParamStrict the first failure (a param whose expr errors, or
// whose location cannot be read) aborts immediately; under ParamLenient
// that entry is dropped and evaluation continues with the rest.
func (a *Adapter) EvaluateParams(specs []ParamSpec, data datamodel.Tree, ctx Context, policy ParamPolicy) (map[string]any, error) {
	out := make(map[string]any, len(specs))
	for _, p := range specs {
		v, err := a.evaluateParam(p, data, ctx)
		if err != nil {
			if policy == ParamStrict {
				return nil, fmt.Errorf("eval: evaluating param %q: %w", p.Name, err)
			}
			continue
		}
		out[p.Name] = v
	}
	return out, nil
}

func (a *Adapter) evaluateParam(p ParamSpec, data datamodel.Tree, ctx Context) (any, error) {
	switch {
	case p.Expr != nil:
		return a.EvaluateValueStrict(p.Expr, ctx)
	case p.Location != "":
		path, err := a.ResolveLocation(p.Location)
		if err != nil {
			return nil, err
		}
		v, ok := datamodel.Get(data, path)
		if !ok {
			return nil, fmt.Errorf("location %q not found", p.Location)
		}
		return v, nil
	default:
		return nil, nil
	}
}

// ResolveLocation parses a location attribute into a datamodel path.
func (a *Adapter) ResolveLocation(location string) ([]datamodel.Segment, error) {
	return datamodel.ParsePath(location)
}

// Assign writes value at location within data, returning the updated tree.
func (a *Adapter) Assign(data datamodel.Tree, location string, value any) (datamodel.Tree, error) {
	path, err := a.ResolveLocation(location)
	if err != nil {
		return nil, err
	}
	return datamodel.Assign(data, path, value)
}
