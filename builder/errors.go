package builder

import "fmt"

// MalformedSource is returned when the underlying xmlsource stream cannot
// be assembled into a well-formed element tree (unbalanced tags, an
// attribute that cannot be parsed, an unexpected root element).
type MalformedSource struct {
	Line    int
	Column  int
	Message string
}

func (e *MalformedSource) Error() string {
	return fmt.Sprintf("malformed source at %d:%d: %s", e.Line, e.Column, e.Message)
}

// ValidationFailed is returned when an otherwise well-formed document
// violates a semantic rule: a duplicate id, an unresolved transition
// target, an inconsistent <initial>, a misplaced history pseudo-state.
type ValidationFailed struct {
	StateID string
	Message string
}

func (e *ValidationFailed) Error() string {
	if e.StateID == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed for state %q: %s", e.StateID, e.Message)
}

// AttributeConflict is returned when two mutually exclusive attributes (or
// an attribute and a child element encoding the same concept) are both
// present on the same node and disagree, e.g. a state whose `initial`
// attribute names other targets than its child <initial> element's
// transition.
type AttributeConflict struct {
	StateID string
	A, B    string
}

func (e *AttributeConflict) Error() string {
	return fmt.Sprintf("state %q: %q and %q are mutually exclusive", e.StateID, e.A, e.B)
}

// ValidationErrors aggregates every ValidationFailed/AttributeConflict
// collected during a single validation pass, so the builder can report
// every problem instead of bailing at the first one.
type ValidationErrors struct {
	Errors []error
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors, first: %s", len(e.Errors), e.Errors[0].Error())
}

func (e *ValidationErrors) Add(err error) {
	e.Errors = append(e.Errors, err)
}

func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}
