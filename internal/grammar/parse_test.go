package grammar

import (
	"testing"

	"github.com/dekarrin/gramask/internal/merrors"
	"github.com/stretchr/testify/assert"
)

func Test_Parse_simpleLiteralRule(t *testing.T) {
	assert := assert.New(t)

	g, err := Parse(`root ::= "hello"`)
	if !assert.NoError(err) {
		return
	}

	assert.Equal("root", g.Root())
	rule := g.Rule("root")
	if !assert.NotNil(rule) {
		return
	}
	if !assert.Len(rule.Alternatives, 1) {
		return
	}
	if !assert.Len(rule.Alternatives[0].Elements, 1) {
		return
	}
	lit, ok := rule.Alternatives[0].Elements[0].(Literal)
	if !assert.True(ok) {
		return
	}
	assert.Equal("hello", string(lit.Bytes))
}

func Test_Parse_quantifier(t *testing.T) {
	assert := assert.New(t)

	g, err := Parse(`root ::= [a-z]{2,3}`)
	if !assert.NoError(err) {
		return
	}

	seq := g.Rule("root").Alternatives[0]
	if !assert.Len(seq.Elements, 1) {
		return
	}
	q, ok := seq.Elements[0].(Quantified)
	if !assert.True(ok) {
		return
	}
	assert.Equal(2, q.Lo)
	assert.Equal(3, q.Hi)

	cc, ok := q.Elem.(CharClass)
	if !assert.True(ok) {
		return
	}
	if !assert.Len(cc.Ranges, 1) {
		return
	}
	assert.Equal(RuneRange{Lower: 'a', Upper: 'z'}, cc.Ranges[0])
}

func Test_Parse_lookahead(t *testing.T) {
	assert := assert.New(t)

	g, err := Parse(`root ::= "a" (= "b") "ab"`)
	if !assert.NoError(err) {
		return
	}

	seq := g.Rule("root").Alternatives[0]
	assert.True(seq.HasLookahead)
	if !assert.Len(seq.Lookahead, 1) {
		return
	}
	lit, ok := seq.Lookahead[0].(Literal)
	if !assert.True(ok) {
		return
	}
	assert.Equal("b", string(lit.Bytes))
}

func Test_Parse_duplicateLookaheadIsError(t *testing.T) {
	assert := assert.New(t)

	_, err := Parse(`root ::= "a" (= "b") (= "c")`)
	assert.Error(err)
}

func Test_Parse_invalidCharClassRange(t *testing.T) {
	assert := assert.New(t)

	_, err := Parse(`root ::= [Z-A]`)
	if !assert.Error(err) {
		return
	}
	pe, ok := err.(*merrors.ParseError)
	if !assert.True(ok) {
		return
	}
	assert.Equal(1, pe.Line)
}

func Test_Parse_duplicateRuleIsError(t *testing.T) {
	assert := assert.New(t)

	_, err := Parse("root ::= \"a\"\nroot ::= \"b\"")
	if !assert.Error(err) {
		return
	}
	pe, ok := err.(*merrors.ParseError)
	if !assert.True(ok) {
		return
	}
	assert.Equal(2, pe.Line)
}

func Test_Parse_undefinedRuleIsError(t *testing.T) {
	assert := assert.New(t)

	_, err := Parse(`root ::= other`)
	assert.Error(err)
}

func Test_Parse_groupAlternationAndQuantifier(t *testing.T) {
	assert := assert.New(t)

	g, err := Parse(`root ::= ("a" | "b")+`)
	if !assert.NoError(err) {
		return
	}

	seq := g.Rule("root").Alternatives[0]
	if !assert.Len(seq.Elements, 1) {
		return
	}
	q, ok := seq.Elements[0].(Quantified)
	if !assert.True(ok) {
		return
	}
	assert.Equal(1, q.Lo)
	assert.Equal(Unbounded, q.Hi)

	ref, ok := q.Elem.(RuleRef)
	if !assert.True(ok) {
		return
	}
	assert.True(isSynthetic(ref.Name))

	groupRule := g.Rule(ref.Name)
	if !assert.NotNil(groupRule) {
		return
	}
	assert.Len(groupRule.Alternatives, 2)
}

func Test_Parse_roundTripNormalization(t *testing.T) {
	assert := assert.New(t)

	testCases := []string{
		`root ::= "hello" " " "world"`,
		`root ::= [a-z]{2,3}`,
		`root ::= "a" (= "b") "ab"`,
		`root ::= ("a" | "b")+ "c"?`,
		`root ::= item*
item ::= [0-9]`,
	}

	for _, src := range testCases {
		t.Run(src, func(t *testing.T) {
			g1, err := Parse(src)
			if !assert.NoError(err) {
				return
			}
			printed1 := Print(g1)

			g2, err := Parse(printed1)
			if !assert.NoError(err) {
				return
			}
			printed2 := Print(g2)

			assert.Equal(printed1, printed2)

			g3, err := Parse(printed2)
			if !assert.NoError(err) {
				return
			}
			assert.Equal(Print(g2), Print(g3))
		})
	}
}
