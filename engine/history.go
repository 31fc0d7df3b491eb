package engine

import (
	"sync"

	"github.com/riddler/statifier/document"
)

// HistoryTracker records, per history pseudo-state, the state set to
// restore when a transition targets it. Grounded on the teacher's
// internal/core/historymanager.go HistoryManager (separate shallow/deep
// maps under a single RWMutex), generalized from HistoryManager's
// one-string-per-region snapshot to a full StateID set per history node,
// since a parallel region's shallow/deep history must be able to restore
// more than one sibling state at once.
type HistoryTracker struct {
	mu       sync.RWMutex
	snapshot map[document.StateID][]document.StateID
}

// NewHistoryTracker returns an empty tracker.
func NewHistoryTracker() *HistoryTracker {
	return &HistoryTracker{snapshot: make(map[document.StateID][]document.StateID)}
}

// Record stores the restoration set for historyID: for HistoryShallow, the
// direct children of parent present in active; for HistoryDeep, every
// active descendant leaf of parent. active is the full configuration at
// the moment parent is exited.
func (h *HistoryTracker) Record(doc *document.Document, historyID, parent document.StateID, kind document.Kind, active *Configuration) {
	parentState, ok := doc.FindState(parent)
	if !ok {
		return
	}

	var set []document.StateID
	switch kind {
	case document.HistoryShallow:
		for _, child := range parentState.Children {
			if active.IsActive(child) {
				set = append(set, child)
			}
		}
	case document.HistoryDeep:
		for id := range doc.Cache.Descendants[parent] {
			if !active.IsActive(id) {
				continue
			}
			s, ok := doc.FindState(id)
			if !ok {
				continue
			}
			leaf := true
			for _, c := range s.Children {
				if active.IsActive(c) {
					leaf = false
					break
				}
			}
			if leaf {
				set = append(set, id)
			}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot[historyID] = set
}

// Restore returns the recorded restoration set for historyID, and whether
// one has ever been recorded (false means this history node has never
// been exited from, so its default InitialTransition applies instead).
func (h *HistoryTracker) Restore(historyID document.StateID) ([]document.StateID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set, ok := h.snapshot[historyID]
	return append([]document.StateID(nil), set...), ok
}

// Clear discards every recorded snapshot, for re-initializing a chart.
func (h *HistoryTracker) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = make(map[document.StateID][]document.StateID)
}
