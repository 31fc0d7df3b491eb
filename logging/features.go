package logging

import (
	"sync"

	"gopkg.in/yaml.v3"
)

// SupportLevel reports how completely a build supports an optional SCXML
// dialect feature (an alternate datamodel language, a vendor invoke type,
// and similar points of variation the specification leaves open).
type SupportLevel int

const (
	Unsupported SupportLevel = iota
	Partial
	Supported
)

func (s SupportLevel) String() string {
	switch s {
	case Unsupported:
		return "unsupported"
	case Partial:
		return "partial"
	case Supported:
		return "supported"
	default:
		return "unknown"
	}
}

// FeatureRegistry records support level per named feature, populated by
// the builder as it encounters optional constructs (parallel regions,
// shallow and deep history, <script>, <invoke>) while walking a document.
// It is a record for inspection and dumping; the engine and runtime do not
// read it.
type FeatureRegistry struct {
	mu      sync.Mutex
	entries map[string]SupportLevel
}

// NewFeatureRegistry constructs an empty registry.
func NewFeatureRegistry() *FeatureRegistry {
	return &FeatureRegistry{entries: make(map[string]SupportLevel)}
}

// Mark records level for name, raising (never lowering) an existing
// entry's level, since a feature exercised successfully once by one part
// of a document should not be downgraded by an unrelated part.
func (r *FeatureRegistry) Mark(name string, level SupportLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[name]; !ok || level > cur {
		r.entries[name] = level
	}
}

// Get returns name's recorded support level, Unsupported if never marked.
func (r *FeatureRegistry) Get(name string) SupportLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[name]
}

// Snapshot returns a copy of every recorded entry.
func (r *FeatureRegistry) Snapshot() map[string]SupportLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]SupportLevel, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// DumpYAML renders the registry's current snapshot as YAML, for debug
// logging alongside Document.DumpYAML.
func (r *FeatureRegistry) DumpYAML() (string, error) {
	snapshot := r.Snapshot()
	out := make(map[string]string, len(snapshot))
	for k, v := range snapshot {
		out[k] = v.String()
	}
	b, err := yaml.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
