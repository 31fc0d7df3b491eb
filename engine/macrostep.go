package engine

import (
	"fmt"

	"github.com/riddler/statifier/actions"
	"github.com/riddler/statifier/datamodel"
	"github.com/riddler/statifier/document"
	"github.com/riddler/statifier/eval"
)

// maxMicrosteps caps the iterations of runToCompletion's settling loop
// (internal-queue events and eventless microsteps alike) within one macrostep,
// matching the teacher's realtime/parallel.go processRegionMicrosteps
// MAX_MICROSTEPS=100 constant, generalized from a per-region cap to a
// whole-configuration cap since this package processes all regions in one
// unified selection pass rather than one goroutine per region.
const maxMicrosteps = 100

// Initialize computes the initial datamodel and enters the document's
// initial configuration, then settles any resulting eventless transition
// chain. Call once before the first Step.
func (sc *StateChart) Initialize() error {
	if err := sc.initializeDatamodel(); err != nil {
		return err
	}

	root, ok := sc.doc.FindState(sc.doc.Root)
	if !ok {
		return fmt.Errorf("engine: document root %q not found", sc.doc.Root)
	}

	sc.currentEvent = Event{Kind: KindPlatform}
	entry := sc.computeEntrySet("", []document.StateID{root.ID})
	sc.sortByDocumentOrder(entry)
	sc.applyEntrySet(entry)

	return sc.runToCompletion()
}

func (sc *StateChart) initializeDatamodel() error {
	data := datamodel.Tree{}
	for _, d := range sc.doc.DataElems {
		value := any(datamodel.Undefined)
		switch {
		case d.Expr != "":
			compiled, err := sc.evaluator.Compile(d.Expr)
			if err != nil {
				return fmt.Errorf("engine: compiling data %q: %w", d.ID, err)
			}
			value = sc.evaluator.EvaluateValue(compiled, eval.Context{Data: data})
		case d.Content != "":
			value = d.Content
		}
		data[d.ID] = value
	}
	sc.data = data
	return nil
}

// Step presents an external event to the chart and runs it to completion:
// one microstep for the event itself (if it enables any transition),
// followed by the eventless/internal-queue settling loop.
func (sc *StateChart) Step(eventName string, data any) error {
	sc.forwardToInvocations(eventName, data)

	event := Event{Name: eventName, Kind: KindExternal, Data: data}
	sc.currentEvent = event
	if enabled := sc.selectTransitions(&event); len(enabled) > 0 {
		sc.microstep(enabled)
	}
	return sc.runToCompletion()
}

// runToCompletion drains the internal queue and chains eventless
// transitions until neither yields progress, giving internal-queue events
// priority over eventless transitions at every iteration. Grounded on the
// teacher's realtime/parallel.go processMacrostepToCompletion, generalized
// from its explicit per-region eventless pass (needed there because each
// parallel region tracked its own current state independently) to a single
// selectTransitions call, since this package's Configuration already spans
// every active region at once.
func (sc *StateChart) runToCompletion() error {
	for i := 0; i < maxMicrosteps; i++ {
		if len(sc.internalQueue) > 0 {
			event := sc.internalQueue[0]
			sc.internalQueue = sc.internalQueue[1:]
			sc.currentEvent = event
			if enabled := sc.selectTransitions(&event); len(enabled) > 0 {
				sc.microstep(enabled)
			}
			continue
		}

		sc.currentEvent = Event{Kind: KindPlatform}
		enabled := sc.selectTransitions(nil)
		if len(enabled) == 0 {
			macrostepsTotal.Inc()
			return nil
		}
		sc.microstep(enabled)
	}

	macrostepIterationCap.Inc()
	sc.Log("warn", "macrostep exceeded eventless iteration cap", map[string]any{"cap": maxMicrosteps})
	macrostepsTotal.Inc()
	return nil
}

// microstep applies one set of conflict-free transitions: exit, act,
// enter, in that order, recording history and raising done.state.* events
// as states are exited/entered.
func (sc *StateChart) microstep(transitions []*document.Transition) {
	if len(transitions) == 0 {
		return
	}

	exitSet := map[document.StateID]bool{}
	for _, t := range transitions {
		for id := range sc.fullExitSet(t) {
			exitSet[id] = true
		}
	}

	sc.recordHistory(exitSet)

	var exitList []document.StateID
	for id := range exitSet {
		exitList = append(exitList, id)
	}
	sc.sortByDocumentOrder(exitList)
	for i := len(exitList) - 1; i >= 0; i-- {
		id := exitList[i]
		s, ok := sc.doc.FindState(id)
		if !ok {
			continue
		}
		if err := actions.ExecuteAll(sc, s.OnExit); err != nil {
			sc.Log("warn", "onexit action failed", map[string]any{"state": string(id), "error": err.Error()})
		}
		sc.cancelInvokesOf(s)
		sc.config.Remove(id)
	}

	for _, t := range transitions {
		if err := actions.ExecuteAll(sc, t.Actions); err != nil {
			sc.Log("warn", "transition action failed", map[string]any{"source": string(t.Source), "error": err.Error()})
		}
	}

	entrySet := map[document.StateID]bool{}
	var order []document.StateID
	for _, t := range transitions {
		if t.IsTargetless() {
			continue
		}
		domain := transitionDomain(sc.doc, t)
		entryDomain := domain
		if isSelfExitingDomain(t, domain) {
			if s, ok := sc.doc.FindState(domain); ok {
				entryDomain = s.Parent
			}
		}
		for _, id := range sc.computeEntrySet(entryDomain, t.Targets) {
			if !entrySet[id] {
				entrySet[id] = true
				order = append(order, id)
			}
		}
	}
	sc.sortByDocumentOrder(order)
	sc.applyEntrySet(order)

	microstepsTotal.Inc()
}

// applyEntrySet activates each state in order (already document-order
// sorted by the caller) and runs its onentry actions, raising done.state.*
// events for any Final state entered.
func (sc *StateChart) applyEntrySet(order []document.StateID) {
	for _, id := range order {
		sc.config.Add(id)
		s, ok := sc.doc.FindState(id)
		if !ok {
			continue
		}
		if err := actions.ExecuteAll(sc, s.OnEntry); err != nil {
			sc.Log("warn", "onentry action failed", map[string]any{"state": string(id), "error": err.Error()})
		}
		if s.Kind == document.Final {
			sc.raiseDoneEvents(id)
		}
	}
}

// cancelInvokesOf cancels every invocation s's own onentry started, per
// SCXML's rule that an <invoke> is implicitly cancelled when the state that
// started it is exited.
func (sc *StateChart) cancelInvokesOf(s *document.State) {
	for _, act := range s.OnEntry {
		if inv, ok := act.(actions.Invoke); ok {
			sc.cancelInvocation(inv.ID)
		}
	}
}

// recordHistory snapshots, for every history pseudo-state whose parent is
// about to be exited, the active configuration under that parent.
func (sc *StateChart) recordHistory(exitSet map[document.StateID]bool) {
	for id := range exitSet {
		s, ok := sc.doc.FindState(id)
		if !ok {
			continue
		}
		for _, child := range s.Children {
			cs, ok := sc.doc.FindState(child)
			if !ok {
				continue
			}
			if cs.Kind == document.HistoryShallow || cs.Kind == document.HistoryDeep {
				sc.history.Record(sc.doc, child, id, cs.Kind, sc.config)
			}
		}
	}
}

// raiseDoneEvents raises done.state.<parent> when a Final child becomes
// active under a Compound parent, and done.state.<parallel> when every
// region of an enclosing Parallel is, as a result, done.
func (sc *StateChart) raiseDoneEvents(finalID document.StateID) {
	s, ok := sc.doc.FindState(finalID)
	if !ok || s.Parent == "" {
		return
	}
	parent, ok := sc.doc.FindState(s.Parent)
	if !ok {
		return
	}

	if parent.Kind == document.Compound {
		sc.raiseDone(parent.ID, s.DoneData)
	}

	for _, parallelID := range sc.doc.Cache.ParallelAncestors[finalID] {
		if sc.isParallelDone(parallelID) {
			sc.raiseDone(parallelID, nil)
		}
	}
}

func (sc *StateChart) isParallelDone(parallelID document.StateID) bool {
	regions := sc.doc.Cache.ParallelRegions[parallelID]
	if len(regions) == 0 {
		return false
	}
	for _, scope := range regions {
		done := false
		for id := range scope {
			s, ok := sc.doc.FindState(id)
			if ok && s.Kind == document.Final && sc.config.IsActive(id) {
				done = true
				break
			}
		}
		if !done {
			return false
		}
	}
	return true
}

func (sc *StateChart) raiseDone(id document.StateID, doneData document.Action) {
	var data any
	if doneData != nil {
		data = sc.evalDoneData(doneData)
	}
	sc.RaiseInternal("done.state."+string(id), data)
}

// evalDoneData evaluates a <donedata> payload, represented internally as an
// actions.Send sentinel (see builder/assemble.go's buildDoneData) built
// purely for its Params/Content fields; its Target/EventName are never
// used since done.state events are raised directly, not sent.
func (sc *StateChart) evalDoneData(a document.Action) any {
	send, ok := a.(actions.Send)
	if !ok {
		return nil
	}
	if send.ContentExpr != nil {
		return sc.evaluator.EvaluateValue(send.ContentExpr, sc.EvalContext())
	}
	if send.ContentRaw != "" {
		return send.ContentRaw
	}
	if len(send.Params) == 0 {
		return nil
	}
	data := map[string]any{}
	for _, p := range send.Params {
		var v any
		if p.Expr != nil {
			v = sc.evaluator.EvaluateValue(p.Expr, sc.EvalContext())
		} else if p.Location != "" {
			path, err := datamodel.ParsePath(p.Location)
			if err == nil {
				v, _ = datamodel.Get(sc.data, path)
			}
		}
		data[p.Name] = v
	}
	return data
}
