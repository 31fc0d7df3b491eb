package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riddler/statifier/document"
)

// buildSample constructs: root(compound) -> parent(compound, initial=child1) -> child1, child2
func buildSample(t *testing.T) *document.Document {
	t.Helper()

	doc := &document.Document{
		Root:                "root",
		States:              map[document.StateID]*document.State{},
		Transitions:         map[document.TransitionID]*document.Transition{},
		TransitionsBySource: map[document.StateID][]document.TransitionID{},
	}

	mk := func(id document.StateID, kind document.Kind, parent document.StateID, depth int, children ...document.StateID) *document.State {
		return &document.State{ID: id, Kind: kind, Parent: parent, Depth: depth, Children: children}
	}

	doc.States["root"] = mk("root", document.Compound, "", 0, "parent")
	doc.States["root"].Initial = []document.StateID{"parent"}
	doc.States["parent"] = mk("parent", document.Compound, "root", 1, "child1", "child2")
	doc.States["parent"].Initial = []document.StateID{"child1"}
	doc.States["child1"] = mk("child1", document.Atomic, "parent", 2)
	doc.States["child2"] = mk("child2", document.Atomic, "parent", 2)

	doc.StatesOrder = []document.StateID{"root", "parent", "child1", "child2"}

	return doc
}

func TestFindStateAndAccessors(t *testing.T) {
	doc := buildSample(t)

	s, ok := doc.FindState("child1")
	require.True(t, ok)
	assert.Equal(t, document.Atomic, s.Kind)

	_, ok = doc.FindState("nope")
	assert.False(t, ok)

	roots := doc.RootStates()
	require.Len(t, roots, 1)
	assert.Equal(t, document.StateID("parent"), roots[0].ID)

	all := doc.AllStatesDocumentOrder()
	require.Len(t, all, 4)
	assert.Equal(t, document.StateID("root"), all[0].ID)
}

func TestTransitionsFromDocumentOrder(t *testing.T) {
	doc := buildSample(t)
	doc.Transitions[0] = &document.Transition{ID: 0, Source: "child1", Events: []string{"go"}, Targets: []document.StateID{"child2"}, DocOrder: 0}
	doc.Transitions[1] = &document.Transition{ID: 1, Source: "child1", Events: []string{"*"}, DocOrder: 1}
	doc.TransitionsBySource["child1"] = []document.TransitionID{0, 1}

	ts := doc.TransitionsFrom("child1")
	require.Len(t, ts, 2)
	assert.Equal(t, []string{"go"}, ts[0].Events)
	assert.True(t, ts[1].IsTargetless())
}

func TestDumpYAMLRendersStateTree(t *testing.T) {
	doc := buildSample(t)

	out, err := doc.DumpYAML()
	require.NoError(t, err)
	assert.Contains(t, out, "id: root")
	assert.Contains(t, out, "id: parent")
	assert.Contains(t, out, "id: child1")
	assert.Contains(t, out, "id: child2")
	assert.Contains(t, out, "kind: compound")
}
