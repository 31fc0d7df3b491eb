package xmlsource_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riddler/statifier/xmlsource"
)

const sample = `<scxml initial="a">
  <state id="a">
    <transition event="go" target="b"/>
  </state>
  <state id="b"/>
</scxml>`

func TestReadAllProducesBalancedTokens(t *testing.T) {
	src, err := xmlsource.NewSource(strings.NewReader(sample))
	require.NoError(t, err)

	tokens, err := xmlsource.ReadAll(src)
	require.NoError(t, err)
	require.NotEmpty(t, tokens)

	depth := 0
	for _, tok := range tokens {
		switch tok.Kind {
		case xmlsource.StartElement:
			depth++
		case xmlsource.EndElement:
			depth--
		}
	}
	assert.Equal(t, 0, depth)
}

func TestAttrLookup(t *testing.T) {
	src, err := xmlsource.NewSource(strings.NewReader(sample))
	require.NoError(t, err)

	tokens, err := xmlsource.ReadAll(src)
	require.NoError(t, err)

	var root xmlsource.Token
	for _, tok := range tokens {
		if tok.Kind == xmlsource.StartElement && tok.Name == "scxml" {
			root = tok
			break
		}
	}
	v, ok := root.Attr("initial")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = root.Attr("nope")
	assert.False(t, ok)
}

func TestLineTracking(t *testing.T) {
	src, err := xmlsource.NewSource(strings.NewReader(sample))
	require.NoError(t, err)

	tokens, err := xmlsource.ReadAll(src)
	require.NoError(t, err)

	var transition xmlsource.Token
	for _, tok := range tokens {
		if tok.Kind == xmlsource.StartElement && tok.Name == "transition" {
			transition = tok
			break
		}
	}
	assert.Equal(t, 3, transition.Line)
}

func TestSelfClosingElementBalances(t *testing.T) {
	src, err := xmlsource.NewSource(strings.NewReader(`<a><b/><c></c></a>`))
	require.NoError(t, err)

	tokens, err := xmlsource.ReadAll(src)
	require.NoError(t, err)

	var names []string
	for _, tok := range tokens {
		if tok.Kind == xmlsource.StartElement {
			names = append(names, tok.Name)
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
