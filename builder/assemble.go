package builder

import (
	"slices"
	"strings"

	"github.com/riddler/statifier/actions"
	"github.com/riddler/statifier/document"
	"github.com/riddler/statifier/logging"
)

// stateLikeNames are the element names that produce a document.State.
var stateLikeNames = map[string]bool{
	"state": true, "parallel": true, "final": true, "history": true,
}

// assembler carries the per-Build mutable counters (document order,
// transition ids) that the teacher's MachineBuilder keeps as fields on
// MachineBuilder itself (nextID, nameToID).
type assembler struct {
	b *Builder

	doc          *document.Document
	docOrder     int
	transitionID document.TransitionID
	errs         ValidationErrors
}

// fromElement walks the <scxml> root element into a document.Document.
func (b *Builder) fromElement(root *element) (*document.Document, *ValidationErrors) {
	a := &assembler{b: b, doc: &document.Document{
		States:              map[document.StateID]*document.State{},
		Transitions:         map[document.TransitionID]*document.Transition{},
		TransitionsBySource: map[document.StateID][]document.TransitionID{},
	}}

	if v, ok := root.attr("datamodel"); ok {
		a.doc.DatamodelDialect = v
	} else {
		a.doc.DatamodelDialect = "expr"
	}
	if v, ok := root.attr("version"); ok {
		a.doc.Version = v
	}

	rootID := document.StateID("__root")
	a.doc.Root = rootID
	rootState := &document.State{ID: rootID, Kind: document.Compound, Depth: 0}
	a.doc.States[rootID] = rootState
	a.doc.StatesOrder = append(a.doc.StatesOrder, rootID)

	for _, child := range root.Children {
		if !stateLikeNames[child.Name] {
			continue
		}
		id := a.buildState(child, rootID, 1)
		rootState.Children = append(rootState.Children, id)
	}

	if v, ok := root.attr("initial"); ok {
		rootState.Initial = splitIDREFS(v)
	} else if len(rootState.Children) > 0 {
		rootState.Initial = []document.StateID{rootState.Children[0]}
	}

	for _, dataEl := range findDataElems(root) {
		a.doc.DataElems = append(a.doc.DataElems, a.buildDataElem(dataEl))
	}

	return a.doc, &a.errs
}

// buildState recursively assembles el (a <state>/<parallel>/<final>/
// <history> element) and everything under it, returning its id.
func (a *assembler) buildState(el *element, parent document.StateID, depth int) document.StateID {
	id, ok := el.attr("id")
	if !ok {
		if a.b.strictIDs {
			a.errs.Add(&ValidationFailed{Message: "state missing required id attribute (strict mode)"})
		}
		id = a.b.synthID(el.Name)
	}
	sid := document.StateID(id)

	kind := document.Atomic
	switch el.Name {
	case "parallel":
		kind = document.Parallel
		a.b.features.Mark("parallel", logging.Supported)
	case "final":
		kind = document.Final
	case "history":
		if t, ok := el.attr("type"); ok && t == "deep" {
			kind = document.HistoryDeep
			a.b.features.Mark("history-deep", logging.Supported)
		} else {
			kind = document.HistoryShallow
			a.b.features.Mark("history-shallow", logging.Supported)
		}
	}

	state := &document.State{
		ID:       sid,
		Kind:     kind,
		Parent:   parent,
		Depth:    depth,
		Location: document.Location{Line: el.Line, Column: el.Col},
	}
	a.doc.States[sid] = state
	a.doc.StatesOrder = append(a.doc.StatesOrder, sid)

	var childIDs []document.StateID
	for _, child := range el.Children {
		if stateLikeNames[child.Name] {
			childIDs = append(childIDs, a.buildState(child, sid, depth+1))
		}
	}
	state.Children = childIDs
	if el.Name == "state" && len(childIDs) > 0 {
		state.Kind = document.Compound
	}

	if initEl, ok := el.firstChildNamed("initial"); ok {
		if transEl, ok := initEl.firstChildNamed("transition"); ok {
			state.InitialTransition = a.buildTransition(transEl, sid, true)
		}
		if v, hasAttr := el.attr("initial"); hasAttr {
			if state.InitialTransition == nil || !slices.Equal(splitIDREFS(v), state.InitialTransition.Targets) {
				a.errs.Add(&AttributeConflict{StateID: id, A: "initial (attribute)", B: "initial (element)"})
			}
		}
	} else if v, ok := el.attr("initial"); ok {
		state.Initial = splitIDREFS(v)
	} else if len(childIDs) > 0 && el.Name == "state" {
		state.Initial = []document.StateID{childIDs[0]}
	}

	if histEl, ok := el.firstChildNamed("transition"); ok && el.Name == "history" {
		state.InitialTransition = a.buildTransition(histEl, sid, true)
	}

	for _, oe := range el.childrenNamed("onentry") {
		state.OnEntry = append(state.OnEntry, a.buildActions(oe.Children)...)
	}
	for _, oe := range el.childrenNamed("onexit") {
		state.OnExit = append(state.OnExit, a.buildActions(oe.Children)...)
	}

	if el.Name == "final" {
		if dd, ok := el.firstChildNamed("donedata"); ok {
			state.DoneData = a.buildDoneData(dd)
		}
	}

	if el.Name != "history" {
		for _, trEl := range el.childrenNamed("transition") {
			a.buildTransition(trEl, sid, false)
		}
	}

	return sid
}

// buildTransition assembles a <transition> element. If internalOnly is
// true (an <initial>/<history> default transition), the built Transition
// is returned rather than registered in doc.TransitionsBySource, since
// those transitions are not enabled by the step engine's normal event
// matching -- they only ever fire as part of entering their owning
// pseudo-state.
func (a *assembler) buildTransition(el *element, source document.StateID, internalOnly bool) *document.Transition {
	t := &document.Transition{
		ID:       a.transitionID,
		Source:   source,
		DocOrder: a.docOrder,
		Location: document.Location{Line: el.Line, Column: el.Col},
		Kind:     document.External,
	}
	a.transitionID++
	a.docOrder++

	if v, ok := el.attr("event"); ok {
		t.Events = strings.Fields(v)
	}
	if v, ok := el.attr("cond"); ok {
		t.CondRaw = v
		t.Cond = a.compile(v)
	}
	if v, ok := el.attr("target"); ok {
		t.Targets = splitIDREFS(v)
	}
	if v, ok := el.attr("type"); ok && v == "internal" {
		t.Kind = document.Internal
	}

	var actionEls []*element
	for _, c := range el.Children {
		actionEls = append(actionEls, c)
	}
	t.Actions = a.buildActions(actionEls)

	if !internalOnly {
		a.doc.Transitions[t.ID] = t
		a.doc.TransitionsBySource[source] = append(a.doc.TransitionsBySource[source], t.ID)
	}
	return t
}

// buildActions dispatches each executable-content element to its
// actions.* constructor. Unknown element names are ignored rather than
// rejected, since a document may carry vendor extensions alongside
// standard executable content.
func (a *assembler) buildActions(els []*element) []document.Action {
	var out []document.Action
	for _, el := range els {
		switch el.Name {
		case "log":
			out = append(out, a.buildLog(el))
		case "raise":
			out = append(out, a.buildRaise(el))
		case "assign":
			out = append(out, a.buildAssign(el))
		case "if":
			out = append(out, a.buildIf(el))
		case "foreach":
			out = append(out, a.buildForeach(el))
		case "send":
			out = append(out, a.buildSend(el))
		case "cancel":
			out = append(out, a.buildCancel(el))
		case "invoke":
			out = append(out, a.buildInvoke(el))
		case "script":
			// Inline scripting is out of scope: no script-language adapter
			// is named anywhere in the retrieved corpus. Recorded as a
			// partially-supported feature rather than a hard failure.
			a.b.features.Mark("script", logging.Partial)
		}
	}
	return out
}

func (a *assembler) compile(raw string) document.CompiledExpr {
	if raw == "" {
		return nil
	}
	c, err := a.b.evaluator.Compile(raw)
	if err != nil {
		a.errs.Add(&ValidationFailed{Message: "compiling expression " + raw + ": " + err.Error()})
		return nil
	}
	return c
}

func (a *assembler) buildLog(el *element) document.Action {
	label, _ := el.attr("label")
	exprRaw, _ := el.attr("expr")
	return actions.Log{Label: label, ExprRaw: exprRaw, Expr: a.compile(exprRaw), Location: document.Location{Line: el.Line, Column: el.Col}}
}

func (a *assembler) buildRaise(el *element) document.Action {
	event, _ := el.attr("event")
	return actions.Raise{Event: event, Location: document.Location{Line: el.Line, Column: el.Col}}
}

func (a *assembler) buildAssign(el *element) document.Action {
	loc, _ := el.attr("location")
	exprRaw, _ := el.attr("expr")
	return actions.Assign{Location: loc, ExprRaw: exprRaw, Expr: a.compile(exprRaw), SourcePos: document.Location{Line: el.Line, Column: el.Col}}
}

func (a *assembler) buildIf(el *element) document.Action {
	var branches []actions.CondBlock
	cond := firstAttr(el, "cond")
	var pending []*element
	flush := func(condRaw string, isElse bool) {
		b := actions.CondBlock{CondRaw: condRaw, Actions: a.buildActions(pending)}
		if !isElse {
			b.Cond = a.compile(condRaw)
		}
		branches = append(branches, b)
		pending = nil
	}
	curCond := cond
	curIsElse := false
	for _, child := range el.Children {
		switch child.Name {
		case "elseif":
			flush(curCond, curIsElse)
			curCond = firstAttr(child, "cond")
			curIsElse = false
		case "else":
			flush(curCond, curIsElse)
			curCond = ""
			curIsElse = true
		default:
			pending = append(pending, child)
		}
	}
	flush(curCond, curIsElse)

	return actions.If{Branches: branches, Location: document.Location{Line: el.Line, Column: el.Col}}
}

func (a *assembler) buildForeach(el *element) document.Action {
	arr, _ := el.attr("array")
	item, _ := el.attr("item")
	index, _ := el.attr("index")
	return actions.Foreach{
		ArrayRaw: arr,
		Array:    a.compile(arr),
		Item:     item,
		Index:    index,
		Actions:  a.buildActions(el.Children),
		Location: document.Location{Line: el.Line, Column: el.Col},
	}
}

func (a *assembler) buildParams(el *element) []actions.Param {
	var out []actions.Param
	for _, p := range el.childrenNamed("param") {
		name, _ := p.attr("name")
		loc, _ := p.attr("location")
		exprRaw, _ := p.attr("expr")
		out = append(out, actions.Param{Name: name, Location: loc, ExprRaw: exprRaw, Expr: a.compile(exprRaw)})
	}
	return out
}

func (a *assembler) buildSend(el *element) document.Action {
	s := actions.Send{Location: document.Location{Line: el.Line, Column: el.Col}}
	s.IDRaw, _ = el.attr("id")
	s.IDLocation, _ = el.attr("idlocation")
	s.EventName, _ = el.attr("event")
	if v, ok := el.attr("eventexpr"); ok {
		s.EventExprRaw = v
		s.EventExpr = a.compile(v)
	}
	s.Target, _ = el.attr("target")
	if v, ok := el.attr("targetexpr"); ok {
		s.TargetExprRaw = v
		s.TargetExpr = a.compile(v)
	}
	s.Type, _ = el.attr("type")
	s.DelayRaw, _ = el.attr("delay")
	if v, ok := el.attr("delayexpr"); ok {
		s.DelayExpr = a.compile(v)
	}
	s.Params = a.buildParams(el)
	if c, ok := el.firstChildNamed("content"); ok {
		s.ContentRaw = trimText(c.Text)
		if v, ok := c.attr("expr"); ok {
			s.ContentExpr = a.compile(v)
		}
	}
	return s
}

func (a *assembler) buildCancel(el *element) document.Action {
	// Represented as a Send with a reserved internal target so the engine
	// can recognize and route it without a dedicated document.Action kind.
	sendID, _ := el.attr("sendid")
	return actions.Send{Target: "#_cancel", EventName: sendID, Location: document.Location{Line: el.Line, Column: el.Col}}
}

func (a *assembler) buildInvoke(el *element) document.Action {
	inv := actions.Invoke{Location: document.Location{Line: el.Line, Column: el.Col}}
	inv.ID, _ = el.attr("id")
	inv.IDLocation, _ = el.attr("idlocation")
	inv.Type, _ = el.attr("type")
	if v, ok := el.attr("typeexpr"); ok {
		inv.TypeExpr = a.compile(v)
	}
	inv.Src, _ = el.attr("src")
	if v, ok := el.attr("srcexpr"); ok {
		inv.SrcExpr = a.compile(v)
	}
	if v, ok := el.attr("autoforward"); ok {
		inv.AutoForward = v == "true"
	}
	inv.Params = a.buildParams(el)
	if fz, ok := el.firstChildNamed("finalize"); ok {
		inv.Finalize = a.buildActions(fz.Children)
	}
	a.b.features.Mark("invoke", logging.Partial)
	return inv
}

func (a *assembler) buildDoneData(el *element) document.Action {
	send := actions.Send{Target: "#_internal", EventName: "done.state", Location: document.Location{Line: el.Line, Column: el.Col}}
	send.Params = a.buildParams(el)
	if c, ok := el.firstChildNamed("content"); ok {
		send.ContentRaw = trimText(c.Text)
		if v, ok := c.attr("expr"); ok {
			send.ContentExpr = a.compile(v)
		}
	}
	return send
}

func (a *assembler) buildDataElem(el *element) *document.DataElem {
	d := &document.DataElem{Location: document.Location{Line: el.Line, Column: el.Col}}
	d.ID, _ = el.attr("id")
	if v, ok := el.attr("expr"); ok {
		d.Expr = v
	} else {
		d.Content = trimText(el.Text)
	}
	return d
}

// findDataElems locates every <data> element under the root <datamodel>
// element(s); SCXML allows at most one top-level <datamodel> but this
// walks all of them defensively.
func findDataElems(root *element) []*element {
	var out []*element
	for _, dm := range root.childrenNamed("datamodel") {
		out = append(out, dm.childrenNamed("data")...)
	}
	return out
}

func firstAttr(el *element, name string) string {
	v, _ := el.attr(name)
	return v
}

// splitIDREFS parses a whitespace-separated IDREFS attribute value.
func splitIDREFS(v string) []document.StateID {
	fields := strings.Fields(v)
	out := make([]document.StateID, 0, len(fields))
	for _, f := range fields {
		out = append(out, document.StateID(f))
	}
	return out
}
