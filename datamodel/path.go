package datamodel

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a parsed location path: either a mapping key
// (`.foo`) or a list index (`[3]`).
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// ParsePath parses a dotted/bracketed location expression such as
// `user.addresses[0].city` into a Segment slice. The leading segment never
// carries a dot; `foo[0]` and `foo.bar` are both accepted forms.
func ParsePath(expr string) ([]Segment, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("datamodel: empty location expression")
	}

	var segments []Segment
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			segments = append(segments, Segment{Key: cur.String()})
			cur.Reset()
		}
	}

	i := 0
	for i < len(expr) {
		c := expr[i]
		switch c {
		case '.':
			flush()
			i++
		case '[':
			flush()
			end := strings.IndexByte(expr[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("datamodel: unterminated '[' in location %q", expr)
			}
			raw := expr[i+1 : i+end]
			idx, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("datamodel: non-numeric index %q in location %q", raw, expr)
			}
			segments = append(segments, Segment{Index: idx, IsIndex: true})
			i += end + 1
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()

	if len(segments) == 0 {
		return nil, fmt.Errorf("datamodel: location %q resolved to no segments", expr)
	}
	return segments, nil
}

// String renders path back to its dotted/bracketed form, mainly for error
// messages and logging metadata.
func String(path []Segment) string {
	var b strings.Builder
	for i, seg := range path {
		if seg.IsIndex {
			fmt.Fprintf(&b, "[%d]", seg.Index)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Key)
	}
	return b.String()
}
