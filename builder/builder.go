// Package builder assembles an xmlsource token stream into a validated,
// optimized document.Document: the Builder/Validator component.
//
// Grounded on the teacher's builder.go/MachineBuilder (fluent assembly of
// a state tree from string names, deferred ID resolution, a single
// validate() pass before Build() returns), generalized from the teacher's
// hand-authored fluent API to driving the same assembly from a real SCXML
// element stream, and on internal/core/options.go's functional-options
// pattern for configuring the assembler itself.
package builder

import (
	"fmt"
	"io"
	"strings"

	"github.com/riddler/statifier/document"
	"github.com/riddler/statifier/eval"
	"github.com/riddler/statifier/logging"
	"github.com/riddler/statifier/xmlsource"
)

// Option configures a Builder.
type Option func(*Builder)

// WithEvaluator overrides the evaluator adapter used to compile cond/expr
// attributes. Defaults to eval.NewAdapter().
func WithEvaluator(a *eval.Adapter) Option {
	return func(b *Builder) { b.evaluator = a }
}

// WithFeatureRegistry overrides the feature-support registry the builder
// marks as it meets optional constructs, so callers can inspect it after
// Build. The builder only writes to the registry; it never reads it.
func WithFeatureRegistry(r *logging.FeatureRegistry) Option {
	return func(b *Builder) { b.features = r }
}

// WithStrictIDs rejects a document containing any state lacking an `id`
// attribute instead of synthesizing one. Off by default, matching the
// teacher's auto-ID-assignment posture in MachineBuilder.assignID.
func WithStrictIDs(strict bool) Option {
	return func(b *Builder) { b.strictIDs = strict }
}

// Builder turns an xmlsource token stream into a validated, optimized
// document.Document.
type Builder struct {
	evaluator *eval.Adapter
	features  *logging.FeatureRegistry
	strictIDs bool

	anonCounter int
}

// New constructs a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		evaluator: eval.NewAdapter(),
		features:  logging.NewFeatureRegistry(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build parses r as an SCXML document, validates it, and runs the
// optimize step (hierarchy cache construction plus expression
// pre-compilation), returning a Document ready for the Step Engine.
func (b *Builder) Build(r io.Reader) (*document.Document, error) {
	src, err := xmlsource.NewSource(r)
	if err != nil {
		return nil, err
	}
	tokens, err := xmlsource.ReadAll(src)
	if err != nil {
		return nil, &MalformedSource{Message: err.Error()}
	}

	root, err := assembleTree(tokens)
	if err != nil {
		return nil, err
	}
	if root.Name != "scxml" {
		return nil, &MalformedSource{Line: root.Line, Column: root.Col, Message: fmt.Sprintf("expected root element <scxml>, got <%s>", root.Name)}
	}

	doc, errs := b.fromElement(root)
	if errs.HasErrors() {
		return nil, errs
	}

	if err := b.validate(doc); err != nil {
		return nil, err
	}

	if err := b.optimize(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// element is an in-memory tree node assembled from the flat xmlsource
// token stream, mirroring a SAX event-stack parser's working structure:
// a stack of partially-built elements, popped on each EndElement.
type element struct {
	Name     string
	Attrs    []xmlsource.Attr
	Children []*element
	Text     string
	Line     int
	Col      int
}

func (e *element) attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e *element) childrenNamed(name string) []*element {
	var out []*element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (e *element) firstChildNamed(name string) (*element, bool) {
	for _, c := range e.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// assembleTree consumes the token stream with an explicit stack, the
// classic SAX-to-tree assembly shape: push on StartElement, append text on
// Characters, pop-and-attach on EndElement.
func assembleTree(tokens []xmlsource.Token) (*element, error) {
	var stack []*element
	var root *element

	for _, tok := range tokens {
		switch tok.Kind {
		case xmlsource.StartElement:
			el := &element{Name: tok.Name, Attrs: tok.Attrs, Line: tok.Line, Col: tok.Column}
			stack = append(stack, el)
		case xmlsource.Characters:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			top.Text += tok.Text
		case xmlsource.EndElement:
			if len(stack) == 0 {
				return nil, &MalformedSource{Line: tok.Line, Column: tok.Column, Message: fmt.Sprintf("unmatched closing tag </%s>", tok.Name)}
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				root = top
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, top)
			}
		}
	}
	if len(stack) != 0 {
		return nil, &MalformedSource{Message: "unclosed element(s) at end of document"}
	}
	if root == nil {
		return nil, &MalformedSource{Message: "empty document"}
	}
	return root, nil
}

// synthID returns a stable, collision-resistant synthetic id for an
// element lacking an explicit `id` attribute.
func (b *Builder) synthID(prefix string) string {
	b.anonCounter++
	return fmt.Sprintf("__%s_%d", prefix, b.anonCounter)
}

// trimText mirrors SCXML's whitespace handling for inline script/content
// text: leading/trailing whitespace is insignificant.
func trimText(s string) string {
	return strings.TrimSpace(s)
}
