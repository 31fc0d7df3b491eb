package document

import (
	"fmt"
	"time"
)

// Hierarchy is a precomputed index over a Document: ancestor paths,
// descendant sets, a pairwise least-common-compound-ancestor (LCCA)
// matrix, parallel-ancestor lists, and per-region descendant maps for
// every parallel state.
//
// Grounded on the teacher's internal/core/machine_helper.go precomputePaths
// (single traversal building an ancestor cache) and
// internal/core/interpreter.go's computeLCCA/getAncestors, generalized from
// on-demand string-path splitting to a precomputed O(n^2) matrix.
type Hierarchy struct {
	AncestorPath      map[StateID][]StateID            // root..parent, excluding self
	Descendants       map[StateID]map[StateID]struct{}  // transitive descendants, excluding self
	LCCA              map[lccaKey]StateID               // no common compound ancestor => document root
	ParallelAncestors map[StateID][]StateID             // parallel states on the path to root, outermost first
	ParallelRegions    map[StateID]map[StateID]map[StateID]struct{} // parallel -> region root -> descendants

	Stats Stats
}

// lccaKey is the canonical (min,max) key for the symmetric LCCA matrix.
type lccaKey struct{ a, b StateID }

func canonicalKey(a, b StateID) lccaKey {
	if a <= b {
		return lccaKey{a, b}
	}
	return lccaKey{b, a}
}

// Stats reports cache construction cost, exposed via a stats accessor so
// callers can observe build time without instrumenting their own caller.
type Stats struct {
	StateCount       int
	BuildDuration    time.Duration
	LCCAEntries      int
}

// BuildHierarchy computes the Hierarchy Cache for doc in a single DFS
// traversal from doc.Root, plus an O(n^2) pass over all state pairs to
// populate the LCCA matrix.
func BuildHierarchy(doc *Document) (*Hierarchy, error) {
	start := time.Now()

	h := &Hierarchy{
		AncestorPath:      make(map[StateID][]StateID),
		Descendants:       make(map[StateID]map[StateID]struct{}),
		LCCA:              make(map[lccaKey]StateID),
		ParallelAncestors: make(map[StateID][]StateID),
		ParallelRegions:   make(map[StateID]map[StateID]map[StateID]struct{}),
	}

	root, ok := doc.States[doc.Root]
	if !ok {
		return nil, fmt.Errorf("document: root state %q not found", doc.Root)
	}

	if err := walk(doc, root, nil, nil, h); err != nil {
		return nil, err
	}

	// Parallel region maps: for each parallel state, each direct child is a
	// region; its descendant set (including itself) is the region's scope.
	for id, s := range doc.States {
		if s.Kind != Parallel {
			continue
		}
		regions := make(map[StateID]map[StateID]struct{}, len(s.Children))
		for _, child := range s.Children {
			scope := map[StateID]struct{}{child: {}}
			for d := range h.Descendants[child] {
				scope[d] = struct{}{}
			}
			regions[child] = scope
		}
		h.ParallelRegions[id] = regions
	}

	// Pairwise LCCA over every pair of states (including self-pairs), keyed
	// canonically so the matrix is symmetric.
	ids := doc.StatesOrder
	for i := 0; i < len(ids); i++ {
		for j := i; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			h.LCCA[canonicalKey(a, b)] = computeLCCA(doc, h, a, b)
		}
	}

	h.Stats = Stats{
		StateCount:    len(doc.StatesOrder),
		BuildDuration: time.Since(start),
		LCCAEntries:   len(h.LCCA),
	}
	recordHierarchyBuild(h.Stats)

	return h, nil
}

func walk(doc *Document, s *State, ancestors []StateID, parallelAncestors []StateID, h *Hierarchy) error {
	h.AncestorPath[s.ID] = append([]StateID(nil), ancestors...)
	h.ParallelAncestors[s.ID] = append([]StateID(nil), parallelAncestors...)
	if _, ok := h.Descendants[s.ID]; !ok {
		h.Descendants[s.ID] = make(map[StateID]struct{})
	}

	childAncestors := append(append([]StateID(nil), ancestors...), s.ID)
	childParallelAncestors := parallelAncestors
	if s.Kind == Parallel {
		childParallelAncestors = append(append([]StateID(nil), parallelAncestors...), s.ID)
	}

	for _, cid := range s.Children {
		child, ok := doc.States[cid]
		if !ok {
			return fmt.Errorf("document: child %q of %q not found", cid, s.ID)
		}
		if err := walk(doc, child, childAncestors, childParallelAncestors, h); err != nil {
			return err
		}
		// propagate descendants upward
		h.Descendants[s.ID][cid] = struct{}{}
		for d := range h.Descendants[cid] {
			h.Descendants[s.ID][d] = struct{}{}
		}
	}

	// an <initial> pseudo-state's transition target(s) are not structural
	// children, so they are not folded into Descendants here.
	return nil
}

// computeLCCA returns the least common compound (non-parallel) ancestor of
// a and b. lcca(a,a) = parent(a) if a's parent is compound, else a itself.
func computeLCCA(doc *Document, h *Hierarchy, a, b StateID) StateID {
	if a == b {
		s := doc.States[a]
		if s.Parent != "" && doc.States[s.Parent].Kind == Compound {
			return s.Parent
		}
		return a
	}

	pathA := append(append([]StateID(nil), h.AncestorPath[a]...), a)
	pathB := append(append([]StateID(nil), h.AncestorPath[b]...), b)

	setB := make(map[StateID]struct{}, len(pathB))
	for _, id := range pathB {
		setB[id] = struct{}{}
	}

	// Walk a's ancestor chain from closest to farthest, picking the first
	// common ancestor that is compound (or the document root, which is
	// always compound by construction).
	for i := len(pathA) - 1; i >= 0; i-- {
		cand := pathA[i]
		if _, common := setB[cand]; !common {
			continue
		}
		s := doc.States[cand]
		if s.Kind == Compound || cand == doc.Root {
			return cand
		}
	}
	return doc.Root
}

// LCCAOf looks up a precomputed pair. Symmetric by construction.
func (h *Hierarchy) LCCAOf(a, b StateID) StateID {
	return h.LCCA[canonicalKey(a, b)]
}

// IsDescendant reports whether id is a (possibly indirect) descendant of
// ancestor.
func (h *Hierarchy) IsDescendant(ancestor, id StateID) bool {
	_, ok := h.Descendants[ancestor][id]
	return ok
}

// ValidateCache recomputes the hierarchy from scratch and reports any
// mismatch against h. Intended for tests and startup self-checks.
func ValidateCache(doc *Document, h *Hierarchy) []string {
	fresh, err := BuildHierarchy(doc)
	if err != nil {
		return []string{err.Error()}
	}

	var mismatches []string
	for id, path := range fresh.AncestorPath {
		if !equalIDs(path, h.AncestorPath[id]) {
			mismatches = append(mismatches, fmt.Sprintf("ancestor path mismatch for %q", id))
		}
	}
	for id, set := range fresh.Descendants {
		other := h.Descendants[id]
		if len(set) != len(other) {
			mismatches = append(mismatches, fmt.Sprintf("descendant set size mismatch for %q", id))
			continue
		}
		for d := range set {
			if _, ok := other[d]; !ok {
				mismatches = append(mismatches, fmt.Sprintf("descendant set missing %q under %q", d, id))
			}
		}
	}
	for k, v := range fresh.LCCA {
		if h.LCCA[k] != v {
			mismatches = append(mismatches, fmt.Sprintf("lcca mismatch for (%q,%q): got %q want %q", k.a, k.b, h.LCCA[k], v))
		}
	}
	return mismatches
}

func equalIDs(a, b []StateID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
