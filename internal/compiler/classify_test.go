package compiler

import (
	"testing"

	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/stretchr/testify/assert"
)

func Test_tokenClassifier_literal(t *testing.T) {
	tests := []struct {
		name string
		tok  string
		want Verdict
	}{
		{"empty token is a strict prefix", "", Accept},
		{"strict prefix", "fo", Accept},
		{"exact match completes the element", "foo", Uncertain},
		{"overrun belongs to whatever is next", "foobar", Uncertain},
		{"diverges immediately", "bar", Reject},
		{"diverges partway through", "fx", Reject},
	}

	lit := grammar.Literal{Bytes: []byte("foo")}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newTokenClassifier(lit).classify([]byte(tt.tok)))
		})
	}
}

func Test_tokenClassifier_charClass(t *testing.T) {
	cc := grammar.CharClass{Ranges: []grammar.RuneRange{{Lower: 'a', Upper: 'z'}}}

	tests := []struct {
		name string
		tok  string
		want Verdict
	}{
		{"empty token", "", Accept},
		{"single matching rune completes the class", "m", Uncertain},
		{"non-matching rune rejects", "M", Reject},
		{"overrun after a matching rune", "mx", Uncertain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newTokenClassifier(cc).classify([]byte(tt.tok)))
		})
	}
}

func Test_tokenClassifier_charClassMultibyte(t *testing.T) {
	assert := assert.New(t)

	cc := grammar.CharClass{Ranges: []grammar.RuneRange{{Lower: 0x100, Upper: 0x17F}}}

	cls := newTokenClassifier(cc)

	full := string(rune(0x120))
	// a strict prefix of a 2-byte rune's encoding is still Accept: more
	// bytes could complete it without ever having diverged.
	assert.Equal(Accept, cls.classify([]byte(full[:1])))
	assert.Equal(Uncertain, cls.classify([]byte(full)))
}

func Test_tokenClassifier_charClassNegated(t *testing.T) {
	assert := assert.New(t)

	cc := grammar.CharClass{Ranges: []grammar.RuneRange{{Lower: 'a', Upper: 'z'}}, Negated: true}

	cls := newTokenClassifier(cc)

	assert.Equal(Uncertain, cls.classify([]byte("M")))
	assert.Equal(Reject, cls.classify([]byte("m")))
}

func Test_tokenClassifier_nonTerminalsNeverDescendIntoRules(t *testing.T) {
	assert := assert.New(t)

	ref := grammar.RuleRef{Name: "whatever"}
	quant := grammar.Quantified{Elem: grammar.Literal{Bytes: []byte("x")}, Lo: 0, Hi: grammar.Unbounded}
	empty := grammar.Empty{}

	for _, elem := range []grammar.Element{ref, quant, empty} {
		cls := newTokenClassifier(elem)
		assert.Equal(Accept, cls.classify(nil))
		assert.Equal(Uncertain, cls.classify([]byte("a")))
	}
}
