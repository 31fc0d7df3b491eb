package builder

import (
	"fmt"

	"github.com/riddler/statifier/document"
)

// optimize is the builder's final step: check that every <data> expr
// compiles and build the Hierarchy Cache. Transition conds and action
// expressions were already compiled during assembly; <data> exprs are
// compiled again when a StateChart initializes its datamodel. Grounded on the teacher's
// internal/core/machine_helper.go precomputePaths, which the same
// "compute once at construction, read many times during stepping" split
// is modeled on.
func (b *Builder) optimize(doc *document.Document) error {
	for _, d := range doc.DataElems {
		if d.Expr == "" {
			continue
		}
		if _, err := b.evaluator.Compile(d.Expr); err != nil {
			return &ValidationFailed{Message: fmt.Sprintf("compiling data %q expr: %v", d.ID, err)}
		}
	}

	h, err := document.BuildHierarchy(doc)
	if err != nil {
		return fmt.Errorf("builder: building hierarchy cache: %w", err)
	}
	doc.Cache = h

	return nil
}
