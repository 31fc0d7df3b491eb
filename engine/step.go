package engine

import (
	"sort"
	"strings"

	"github.com/riddler/statifier/document"
)

// selectTransitions implements SCXML's selectTransitions/
// removeConflictingTransitions pair: for event == nil, the enabled
// eventless transitions; otherwise the transitions enabled by event. Exactly
// one transition per active atomic state's ancestor chain is considered
// (the nearest enabled one), and document-order/child-wins conflict
// resolution discards any transition whose exit set overlaps a
// higher-priority one already selected.
//
// Generalized from the teacher's internal/core/interpreter.go getAncestors/
// computeLCCA (single active path, string splitting) to operate over the
// full multi-leaf Configuration via the precomputed document.Hierarchy.
func (sc *StateChart) selectTransitions(event *Event) []*document.Transition {
	doc := sc.doc

	var atomics []document.StateID
	for _, s := range doc.AllStatesDocumentOrder() {
		if !sc.config.IsActive(s.ID) {
			continue
		}
		leaf := true
		for _, c := range s.Children {
			if sc.config.IsActive(c) {
				leaf = false
				break
			}
		}
		if leaf {
			atomics = append(atomics, s.ID)
		}
	}

	var selected []*document.Transition
	seen := map[document.TransitionID]bool{}
	for _, leaf := range atomics {
		chain := append(append([]document.StateID(nil), doc.Cache.AncestorPath[leaf]...), leaf)
		for i := len(chain) - 1; i >= 0; i-- {
			sid := chain[i]
			matched := false
			for _, t := range doc.TransitionsFrom(sid) {
				if !eventMatches(t, event) {
					continue
				}
				ok, err := sc.evaluator.EvaluateConditionChecked(t.Cond, sc.EvalContext())
				if err != nil {
					sc.RaiseInternal("error.execution", map[string]any{
						"type": "expression.execution", "source": string(t.Source), "cond": t.CondRaw, "reason": err.Error(),
					})
				}
				if !ok {
					continue
				}
				matched = true
				if !seen[t.ID] {
					seen[t.ID] = true
					selected = append(selected, t)
				}
				break
			}
			if matched {
				break
			}
		}
	}

	return sc.removeConflicting(selected)
}

func eventMatches(t *document.Transition, event *Event) bool {
	if event == nil {
		return t.IsEventless()
	}
	if t.IsEventless() {
		return false
	}
	for _, desc := range t.Events {
		if eventDescriptorMatches(desc, event.Name) {
			return true
		}
	}
	return false
}

// eventDescriptorMatches implements SCXML event-descriptor prefix matching:
// "error" matches "error", "error.send", etc; "*" and "error.*" match
// anything, or anything prefixed "error.", respectively.
func eventDescriptorMatches(desc, name string) bool {
	if desc == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(desc, ".*"); ok {
		return strings.HasPrefix(name, prefix+".")
	}
	if desc == name {
		return true
	}
	return strings.HasPrefix(name, desc+".")
}

// transitionDomain is the "exit set boundary" for t: the LCCA of its source
// and every target, except an internal-kind transition whose source is
// Compound and whose targets are all proper descendants of source, whose
// domain is the source itself (its region does not exit).
func transitionDomain(doc *document.Document, t *document.Transition) document.StateID {
	if t.IsTargetless() {
		return ""
	}
	if t.Kind == document.Internal {
		if src, ok := doc.FindState(t.Source); ok && src.Kind == document.Compound {
			allDescendants := true
			for _, tgt := range t.Targets {
				if !doc.Cache.IsDescendant(t.Source, tgt) {
					allDescendants = false
					break
				}
			}
			if allDescendants {
				return t.Source
			}
		}
	}

	lcca := doc.Cache.LCCAOf(t.Source, t.Targets[0])
	for _, tgt := range t.Targets[1:] {
		lcca = doc.Cache.LCCAOf(lcca, tgt)
	}
	return lcca
}

// computeExitSet returns the currently active proper descendants of domain
// (domain itself is excluded: an ordinary transition between two of its
// children leaves domain active throughout). See isSelfExitingDomain for
// the one case where domain must exit too.
func (sc *StateChart) computeExitSet(domain document.StateID) map[document.StateID]bool {
	out := map[document.StateID]bool{}
	if domain == "" {
		return out
	}
	for _, id := range sc.config.Snapshot() {
		if sc.doc.Cache.IsDescendant(domain, id) {
			out[id] = true
		}
	}
	return out
}

// isSelfExitingDomain reports whether t's own domain is its source state --
// true for an external transition whose target(s) are nested inside its
// own source, where the source must exit and re-enter rather than stay
// active throughout. A plain self-transition of a state with a compound
// parent does not reach this case: its domain is that parent, so the
// source exits as one of the parent's descendants. An internal
// transition with the same shape deliberately keeps its source active,
// which is exactly why transitionDomain special-cases TransitionKind there.
func isSelfExitingDomain(t *document.Transition, domain document.StateID) bool {
	return t.Kind == document.External && domain == t.Source
}

// fullExitSet is computeExitSet plus the domain-itself special case.
func (sc *StateChart) fullExitSet(t *document.Transition) map[document.StateID]bool {
	domain := transitionDomain(sc.doc, t)
	set := sc.computeExitSet(domain)
	if isSelfExitingDomain(t, domain) {
		set[domain] = true
	}
	return set
}

// removeConflicting applies SCXML's removeConflictingTransitions: later,
// more specific (descendant-source) transitions evict earlier ones whose
// exit set they overlap; two transitions whose exit sets overlap but
// neither is a descendant of the other preempt the later one.
func (sc *StateChart) removeConflicting(transitions []*document.Transition) []*document.Transition {
	exitSets := make(map[document.TransitionID]map[document.StateID]bool, len(transitions))
	for _, t := range transitions {
		exitSets[t.ID] = sc.fullExitSet(t)
	}

	var filtered []*document.Transition
	for _, t1 := range transitions {
		preempted := false
		var toRemove []document.TransitionID
		for _, t2 := range filtered {
			if !overlaps(exitSets[t1.ID], exitSets[t2.ID]) {
				continue
			}
			if sc.doc.Cache.IsDescendant(t2.Source, t1.Source) {
				toRemove = append(toRemove, t2.ID)
			} else {
				preempted = true
				break
			}
		}
		if preempted {
			continue
		}
		if len(toRemove) > 0 {
			filtered = removeByID(filtered, toRemove)
		}
		filtered = append(filtered, t1)
	}
	return filtered
}

func overlaps(a, b map[document.StateID]bool) bool {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for id := range small {
		if large[id] {
			return true
		}
	}
	return false
}

func removeByID(transitions []*document.Transition, ids []document.TransitionID) []*document.Transition {
	drop := map[document.TransitionID]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	out := transitions[:0:0]
	for _, t := range transitions {
		if !drop[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// computeEntrySet expands targets into the full set of states to enter:
// every ancestor strictly between domain and each target, every other
// region of any Parallel ancestor passed through, history substitution for
// a <history> target, and default-initial recursion down to atomic leaves.
//
// Generalized from the teacher's getEntryStates (LCCA-to-target string
// splitting, single path) to document.Hierarchy-backed traversal supporting
// parallel regions and history.
func (sc *StateChart) computeEntrySet(domain document.StateID, targets []document.StateID) []document.StateID {
	doc := sc.doc
	seen := map[document.StateID]bool{}
	var order []document.StateID
	add := func(id document.StateID) {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	var enterTarget func(target, domain document.StateID)
	var defaultExpand func(id document.StateID)

	enterTarget = func(target, domain document.StateID) {
		s, ok := doc.FindState(target)
		if !ok {
			return
		}

		isHistory := s.Kind == document.HistoryShallow || s.Kind == document.HistoryDeep

		// Walk ancestors of target from just past domain up to (and, for an
		// ordinary target, including) target itself. A history pseudo-state
		// is never itself entered, but its own parent still needs to be in
		// the entry set if it isn't already active -- so the walk stops one
		// short of target in that case rather than skipping entirely.
		path := doc.Cache.AncestorPath[target]
		fullPath := append(append([]document.StateID(nil), path...), target)

		startIdx := 0
		if domain != "" {
			for i, a := range fullPath {
				if a == domain {
					startIdx = i + 1
					break
				}
			}
		}

		limit := len(fullPath)
		if isHistory {
			limit--
		}

		for i := startIdx; i < limit; i++ {
			anc := fullPath[i]
			add(anc)
			ancState, ok := doc.FindState(anc)
			if ok && ancState.Kind == document.Parallel && i+1 < len(fullPath) {
				nextStep := fullPath[i+1]
				for _, sib := range ancState.Children {
					if sib != nextStep {
						defaultExpand(sib)
					}
				}
			}
		}

		if isHistory {
			if restored, ok := sc.history.Restore(target); ok && len(restored) > 0 {
				for _, r := range restored {
					enterTarget(r, s.Parent)
				}
				return
			}
			if s.InitialTransition != nil {
				for _, r := range s.InitialTransition.Targets {
					enterTarget(r, s.Parent)
				}
			}
			return
		}

		defaultExpand(target)
	}

	defaultExpand = func(id document.StateID) {
		s, ok := doc.FindState(id)
		if !ok {
			return
		}
		add(id)
		switch s.Kind {
		case document.Compound:
			if len(s.Initial) == 1 {
				enterTarget(s.Initial[0], id)
			} else if s.InitialTransition != nil {
				for _, r := range s.InitialTransition.Targets {
					enterTarget(r, id)
				}
			}
		case document.Parallel:
			for _, child := range s.Children {
				defaultExpand(child)
			}
		}
	}

	for _, t := range targets {
		enterTarget(t, domain)
	}

	return order
}

// sortByDocumentOrder sorts ids in place by their position in the
// document's state list.
func (sc *StateChart) sortByDocumentOrder(ids []document.StateID) {
	index := make(map[document.StateID]int, len(sc.doc.StatesOrder))
	for i, id := range sc.doc.StatesOrder {
		index[id] = i
	}
	sort.Slice(ids, func(i, j int) bool { return index[ids[i]] < index[ids[j]] })
}
