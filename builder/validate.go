package builder

import (
	"fmt"

	"github.com/riddler/statifier/document"
)

// validate runs the semantic checks a well-formed document must satisfy
// beyond mere XML validity: unique ids, resolvable transition targets, at
// most one initial-state spec per compound state, history placement, and
// basic reachability, mirroring the teacher's MachineBuilder.validate
// (resolvable transition targets, a required Initial on every compound
// state) generalized to the full SCXML structural rule set.
func (b *Builder) validate(doc *document.Document) error {
	var errs ValidationErrors

	seen := map[document.StateID]bool{}
	for _, id := range doc.StatesOrder {
		if seen[id] {
			errs.Add(&ValidationFailed{StateID: string(id), Message: "duplicate state id"})
		}
		seen[id] = true
	}

	for _, s := range doc.AllStatesDocumentOrder() {
		b.validateState(doc, s, &errs)
	}

	for _, t := range doc.Transitions {
		b.validateTransition(doc, t, &errs)
	}

	if errs.HasErrors() {
		return &errs
	}

	doc.Warnings = append(doc.Warnings, reachabilityWarnings(doc)...)
	return nil
}

// reachabilityWarnings performs a non-fatal forward-reachability analysis:
// starting from the document root, it marks a state reachable if it is a
// compound/parallel's default or <initial> child, or the target (or an
// ancestor of the target) of a transition whose own source is reachable,
// then returns a warning for every state the fixed point never reaches.
// This is advisory only -- an unreachable state is a document smell, not a
// structural error -- so it never contributes to errs above.
func reachabilityWarnings(doc *document.Document) []string {
	reachable := map[document.StateID]bool{doc.Root: true}

	for changed := true; changed; {
		changed = false

		for _, s := range doc.AllStatesDocumentOrder() {
			if !reachable[s.ID] {
				continue
			}
			switch s.Kind {
			case document.Compound:
				for _, init := range s.Initial {
					changed = markReachable(reachable, init) || changed
				}
				if s.InitialTransition != nil {
					for _, tgt := range s.InitialTransition.Targets {
						changed = markReachable(reachable, tgt) || changed
					}
				}
				if len(s.Initial) == 0 && s.InitialTransition == nil && len(s.Children) > 0 {
					changed = markReachable(reachable, s.Children[0]) || changed
				}
			case document.Parallel:
				for _, c := range s.Children {
					changed = markReachable(reachable, c) || changed
				}
			}
		}

		for _, t := range doc.Transitions {
			if !reachable[t.Source] {
				continue
			}
			for _, tgt := range t.Targets {
				changed = markReachableWithAncestors(doc, reachable, tgt) || changed
			}
		}
	}

	var warnings []string
	for _, s := range doc.AllStatesDocumentOrder() {
		if !reachable[s.ID] {
			warnings = append(warnings, fmt.Sprintf("state %q is unreachable", s.ID))
		}
	}
	return warnings
}

func markReachable(reachable map[document.StateID]bool, id document.StateID) bool {
	if id == "" || reachable[id] {
		return false
	}
	reachable[id] = true
	return true
}

// markReachableWithAncestors marks id and every ancestor up to the root
// reachable, since entering id also enters its whole ancestor chain.
func markReachableWithAncestors(doc *document.Document, reachable map[document.StateID]bool, id document.StateID) bool {
	changed := markReachable(reachable, id)
	for s, ok := doc.FindState(id); ok && s.Parent != ""; s, ok = doc.FindState(s.Parent) {
		changed = markReachable(reachable, s.Parent) || changed
	}
	return changed
}

func (b *Builder) validateState(doc *document.Document, s *document.State, errs *ValidationErrors) {
	switch s.Kind {
	case document.Compound:
		if len(s.Initial) == 0 && s.InitialTransition == nil && len(s.Children) > 0 {
			errs.Add(&ValidationFailed{StateID: string(s.ID), Message: "compound state must specify an initial child"})
		}
		if len(s.Initial) > 1 {
			errs.Add(&ValidationFailed{StateID: string(s.ID), Message: "compound state's initial attribute must name exactly one child"})
		}
		for _, init := range s.Initial {
			if !isChildOf(doc, s.ID, init) {
				errs.Add(&ValidationFailed{StateID: string(s.ID), Message: fmt.Sprintf("initial state %q is not a child", init)})
			}
		}
		if s.InitialTransition != nil {
			for _, tgt := range s.InitialTransition.Targets {
				if _, ok := doc.FindState(tgt); !ok {
					errs.Add(&ValidationFailed{StateID: string(s.ID), Message: fmt.Sprintf("<initial> target %q does not exist", tgt)})
				}
			}
		}
	case document.HistoryShallow, document.HistoryDeep:
		if s.Parent == "" {
			errs.Add(&ValidationFailed{StateID: string(s.ID), Message: "history pseudo-state must have a parent"})
		}
		if s.InitialTransition == nil || len(s.InitialTransition.Targets) == 0 {
			errs.Add(&ValidationFailed{StateID: string(s.ID), Message: "history pseudo-state must declare a default transition"})
		}
		if len(s.Children) > 0 {
			errs.Add(&ValidationFailed{StateID: string(s.ID), Message: "history pseudo-state cannot have children"})
		}
	case document.Parallel:
		if len(s.Children) < 2 {
			errs.Add(&ValidationFailed{StateID: string(s.ID), Message: "parallel state should declare at least two regions"})
		}
	}
}

func (b *Builder) validateTransition(doc *document.Document, t *document.Transition, errs *ValidationErrors) {
	for _, tgt := range t.Targets {
		if _, ok := doc.FindState(tgt); !ok {
			errs.Add(&ValidationFailed{StateID: string(t.Source), Message: fmt.Sprintf("transition targets unknown state %q", tgt)})
		}
	}
	if t.Kind == document.Internal && !isCompoundOrParallel(doc, t.Source) {
		errs.Add(&ValidationFailed{StateID: string(t.Source), Message: "internal transitions are only meaningful on compound or parallel states"})
	}
}

func isChildOf(doc *document.Document, parent, candidate document.StateID) bool {
	s, ok := doc.FindState(parent)
	if !ok {
		return false
	}
	for _, c := range s.Children {
		if c == candidate {
			return true
		}
	}
	return false
}

func isCompoundOrParallel(doc *document.Document, id document.StateID) bool {
	s, ok := doc.FindState(id)
	return ok && (s.Kind == document.Compound || s.Kind == document.Parallel)
}
