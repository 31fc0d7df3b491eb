// Package document holds the typed, immutable-after-validation representation
// of a parsed statechart: states, transitions, and datamodel declarations.
package document

import "fmt"

// StateID uniquely identifies a state within a Document.
type StateID string

// TransitionID is a document-order index into Document.Transitions.
type TransitionID int

// Kind classifies a State.
type Kind int

const (
	Atomic Kind = iota
	Compound
	Parallel
	Final
	HistoryShallow
	HistoryDeep
)

func (k Kind) String() string {
	switch k {
	case Atomic:
		return "atomic"
	case Compound:
		return "compound"
	case Parallel:
		return "parallel"
	case Final:
		return "final"
	case HistoryShallow:
		return "history(shallow)"
	case HistoryDeep:
		return "history(deep)"
	default:
		return "unknown"
	}
}

// TransitionKind distinguishes SCXML external vs internal transitions.
type TransitionKind int

const (
	External TransitionKind = iota
	Internal
)

// Location records the line/column a node was parsed from, for diagnostics.
type Location struct {
	Line   int
	Column int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// CompiledExpr is an opaque handle produced by an evaluator adapter's
// Compile operation. The document package never inspects it; only the
// evaluator adapter (package eval) and the action executor dereference it.
type CompiledExpr = any

// Action is a marker interface implemented by the executable-content node
// types defined in package actions (Log, Raise, Assign, If, Foreach, Send,
// Invoke). Keeping the marker here (rather than importing package actions)
// avoids a document <-> actions import cycle, since actions.Execute needs
// to walk a Document's State/Transition action lists.
type Action interface {
	ActionKind() string
}

// State is a node in the chart hierarchy.
type State struct {
	ID       StateID
	Kind     Kind
	Parent   StateID // "" for the root
	Depth    int
	Children []StateID // document order

	// Initial child selector. At most one of Initial (attribute form) or
	// InitialTransition (an explicit <initial> pseudo-state transition) is
	// set; the builder rejects both being present with conflicting targets.
	Initial           []StateID
	InitialTransition *Transition

	OnEntry []Action
	OnExit  []Action

	// DoneData holds the <donedata> payload builder for a Final state, run
	// when constructing the done.state.* event raised on entering it. Nil
	// for non-Final states and Final states without a <donedata> child.
	DoneData Action

	Location Location
}

// IsCompoundLike reports whether s requires exactly one active child
// (invariant 1): true for Compound, false otherwise (Parallel requires all
// children active; Atomic/Final/History have no children).
func (s *State) IsCompoundLike() bool {
	return s.Kind == Compound
}

// Transition is an outbound edge from Source.
type Transition struct {
	ID       TransitionID
	Source   StateID
	Events   []string // whitespace-separated event descriptor tokens; empty => eventless
	CondRaw  string
	Cond     CompiledExpr // nil if CondRaw == ""
	Targets  []StateID    // empty => targetless
	Actions  []Action
	DocOrder int
	Kind     TransitionKind
	Location Location
}

// IsEventless reports whether t has no event descriptor.
func (t *Transition) IsEventless() bool {
	return len(t.Events) == 0
}

// IsTargetless reports whether t has no targets.
func (t *Transition) IsTargetless() bool {
	return len(t.Targets) == 0
}

// DataElem is a <data> declaration: a named value computed once at
// datamodel initialization time, either from an inline expr or from a
// <data> element's text/child content.
type DataElem struct {
	ID       string
	Expr     string // inline "expr" attribute, if present
	Content  string // element body, trimmed, if present instead of Expr
	Location Location
}

// Document is the immutable, validated, optimized representation of a
// parsed chart.
type Document struct {
	DatamodelDialect string
	Version          string

	// Root is a synthetic compound state wrapping every top-level <state>/
	// <parallel>/<final>, so every real invariant (exactly one active child
	// of a compound state) applies uniformly down to the document root.
	Root StateID

	States      map[StateID]*State
	StatesOrder []StateID // document order, root first

	Transitions         map[TransitionID]*Transition
	TransitionsBySource map[StateID][]TransitionID // document order

	DataElems []*DataElem

	// Cache is populated by the builder's optimize step (component C).
	// Nil on a Document that has not yet been optimized.
	Cache *Hierarchy

	// Warnings accumulates non-fatal findings from the builder's validation
	// pass, e.g. reachability analysis flagging a state no transition or
	// initial selection can ever enter.
	Warnings []string
}

// FindState resolves a state by id.
func (d *Document) FindState(id StateID) (*State, bool) {
	s, ok := d.States[id]
	return s, ok
}

// TransitionsFrom returns id's outbound transitions in document order.
func (d *Document) TransitionsFrom(id StateID) []*Transition {
	ids := d.TransitionsBySource[id]
	out := make([]*Transition, 0, len(ids))
	for _, tid := range ids {
		out = append(out, d.Transitions[tid])
	}
	return out
}

// AllStatesDocumentOrder returns every state (including the synthetic root)
// in document order.
func (d *Document) AllStatesDocumentOrder() []*State {
	out := make([]*State, 0, len(d.StatesOrder))
	for _, id := range d.StatesOrder {
		out = append(out, d.States[id])
	}
	return out
}

// RootStates returns the top-level (real, non-synthetic) states: the
// children of the synthetic Root.
func (d *Document) RootStates() []*State {
	root, ok := d.States[d.Root]
	if !ok {
		return nil
	}
	out := make([]*State, 0, len(root.Children))
	for _, id := range root.Children {
		out = append(out, d.States[id])
	}
	return out
}
