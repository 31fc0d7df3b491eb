// Package engine implements the Configuration & History component and the
// Step Engine: the active-state set, history snapshots, and the
// microstep/macrostep algorithm that advances a statechart in response to
// events.
//
// Grounded on the teacher's internal/core/machine.go Machine (an RWMutex
// around a flat active-path slice plus stateCache/ancestorCache lookups),
// generalized from Machine's single-active-leaf model to a full active-set
// Configuration supporting parallel regions, and on interpreter.go's
// computeLCCA/getExitStates/getEntryStates (string-path arithmetic),
// generalized to use document.Hierarchy's precomputed ancestor/LCCA data
// instead of re-splitting paths per step.
package engine

import (
	"fmt"
	"sort"

	"github.com/riddler/statifier/document"
)

// Configuration is the full active-state set of a running statechart: not
// just the leaves but every active ancestor up to the document root,
// mirroring SCXML's "configuration" as the complete set of active states
// rather than just the leaf path the teacher's Machine.current tracked.
type Configuration struct {
	doc    *document.Document
	active map[document.StateID]struct{}
}

// NewConfiguration returns an empty Configuration over doc.
func NewConfiguration(doc *document.Document) *Configuration {
	return &Configuration{doc: doc, active: make(map[document.StateID]struct{})}
}

// IsActive reports whether id is in the configuration.
func (c *Configuration) IsActive(id document.StateID) bool {
	_, ok := c.active[id]
	return ok
}

// Add marks id active.
func (c *Configuration) Add(id document.StateID) {
	c.active[id] = struct{}{}
}

// Remove marks id inactive.
func (c *Configuration) Remove(id document.StateID) {
	delete(c.active, id)
}

// Size returns the number of active states.
func (c *Configuration) Size() int {
	return len(c.active)
}

// ActiveLeaves returns every active state with no active child, sorted by
// id for deterministic iteration (a Configuration is a set; callers that
// need document order should use Snapshot instead).
func (c *Configuration) ActiveLeaves() []document.StateID {
	var out []document.StateID
	for id := range c.active {
		s, ok := c.doc.FindState(id)
		if !ok {
			continue
		}
		leaf := true
		for _, child := range s.Children {
			if c.IsActive(child) {
				leaf = false
				break
			}
		}
		if leaf {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot returns every active state in document order, for diagnostics,
// logging metadata, and test assertions.
func (c *Configuration) Snapshot() []document.StateID {
	var out []document.StateID
	for _, s := range c.doc.AllStatesDocumentOrder() {
		if c.IsActive(s.ID) {
			out = append(out, s.ID)
		}
	}
	return out
}

// Validate checks the two structural invariants a settled configuration
// must satisfy: every active compound state has exactly one active child,
// and every active parallel state has every child active.
func (c *Configuration) Validate() []string {
	var problems []string
	for id := range c.active {
		s, ok := c.doc.FindState(id)
		if !ok {
			problems = append(problems, fmt.Sprintf("active state %q not found in document", id))
			continue
		}
		switch s.Kind {
		case document.Compound:
			activeChildren := 0
			for _, child := range s.Children {
				if c.IsActive(child) {
					activeChildren++
				}
			}
			if activeChildren != 1 && len(s.Children) > 0 {
				problems = append(problems, fmt.Sprintf("compound state %q has %d active children, want 1", id, activeChildren))
			}
		case document.Parallel:
			for _, child := range s.Children {
				if !c.IsActive(child) {
					problems = append(problems, fmt.Sprintf("parallel state %q region %q is not active", id, child))
				}
			}
		}
	}
	return problems
}
