package compiler

import (
	"testing"

	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAbGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	g, err := grammar.Parse(`root ::= "ab"`)
	require.NoError(t, err)
	return g
}

func buildSmallVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.New(4, []vocab.Token{
		{ID: 0, Decoded: []byte("a"), Kind: vocab.Regular},
		{ID: 1, Decoded: []byte("ab"), Kind: vocab.Regular},
		{ID: 2, Decoded: []byte("b"), Kind: vocab.Regular},
		{ID: 3, Decoded: []byte{}, Kind: vocab.Stop},
	}, vocab.ByteLevel, false)
	require.NoError(t, err)
	return v
}

func Test_Compile_partitionsRootPosition(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	g := buildAbGrammar(t)
	v := buildSmallVocab(t)

	cg, err := Compile(g, v, WithWorkers(2))
	require.NoError(err)

	pos := Position{Rule: "root", Alt: 0, Elem: 0}
	mask := cg.Mask(pos)
	require.NotNil(mask)

	// "a" is a strict prefix of the literal "ab": always accept.
	assert.True(mask.Accept.Get(0, 0))
	// "ab" completes the literal exactly: uncertain, resolved at runtime.
	assert.Contains(mask.Uncertain, 1)
	// "b" diverges immediately: rejected, present in neither set.
	assert.False(mask.Accept.Get(0, 2))
	assert.NotContains(mask.Uncertain, 2)
	// the empty stop token is a strict (trivial) prefix: always accept.
	assert.True(mask.Accept.Get(0, 3))
}

func Test_Compile_fingerprintStableAcrossRecompiles(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	g := buildAbGrammar(t)
	v := buildSmallVocab(t)

	first, err := Compile(g, v)
	require.NoError(err)
	second, err := Compile(g, v)
	require.NoError(err)

	assert.Equal(first.Fingerprint, second.Fingerprint)
}

func Test_Compile_invalidGrammarFails(t *testing.T) {
	require := require.New(t)

	v := buildSmallVocab(t)
	badGrammar, err := grammar.Parse(`root ::= missing`)
	require.NoError(err)

	_, err = Compile(badGrammar, v)
	require.Error(err)
}
