package document

import "gopkg.in/yaml.v3"

// dumpState is the serializable shape DumpYAML emits for one state: just
// enough to eyeball a document's shape in a debug log or test failure
// message, not a format anything parses back.
type dumpState struct {
	ID       StateID     `yaml:"id"`
	Kind     string      `yaml:"kind"`
	Initial  []StateID   `yaml:"initial,omitempty"`
	Children []dumpState `yaml:"children,omitempty"`
}

// DumpYAML renders the document's state tree (rooted at the synthetic
// Root) as YAML, for debug logging and test-failure output. Grounded on
// the teacher's own dependency on gopkg.in/yaml.v3 for its
// MachineSnapshot/MachineConfig debug serialization.
func (d *Document) DumpYAML() (string, error) {
	root, ok := d.States[d.Root]
	if !ok {
		return "", nil
	}
	out, err := yaml.Marshal(d.dumpSubtree(root))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (d *Document) dumpSubtree(s *State) dumpState {
	out := dumpState{ID: s.ID, Kind: s.Kind.String(), Initial: s.Initial}
	for _, id := range s.Children {
		if child, ok := d.States[id]; ok {
			out.Children = append(out.Children, d.dumpSubtree(child))
		}
	}
	return out
}
