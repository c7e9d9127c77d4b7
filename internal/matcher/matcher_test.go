package matcher

import (
	"testing"

	"github.com/dekarrin/gramask/internal/bitmask"
	"github.com/dekarrin/gramask/internal/compiler"
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, src string, v *vocab.Vocabulary) *compiler.CompiledGrammar {
	t.Helper()
	g, err := grammar.Parse(src)
	require.NoError(t, err)
	cg, err := compiler.Compile(g, v)
	require.NoError(t, err)
	return cg
}

func tokenVocab(t *testing.T, toks ...string) *vocab.Vocabulary {
	t.Helper()
	tokens := make([]vocab.Token, 0, len(toks)+1)
	for i, s := range toks {
		tokens = append(tokens, vocab.Token{ID: i, Decoded: []byte(s), Kind: vocab.Regular})
	}
	stopID := len(toks)
	tokens = append(tokens, vocab.Token{ID: stopID, Decoded: []byte{}, Kind: vocab.Stop})
	v, err := vocab.New(stopID+1, tokens, vocab.ByteLevel, false)
	require.NoError(t, err)
	return v
}

// S1: a plain literal sequence accepts exactly its bytes and nothing else.
func TestMatcher_literalSequence(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "a", "ab", "b", "c")
	cg := mustCompile(t, `root ::= "ab"`, v)

	m, err := New(cg)
	require.NoError(err)

	ok, err := m.AcceptString([]byte("a"))
	require.NoError(err)
	assert.True(ok)
	assert.False(m.accepting)

	ok, err = m.AcceptString([]byte("b"))
	require.NoError(err)
	assert.True(ok)
	assert.True(m.accepting)

	ok, err = m.AcceptString([]byte("c"))
	require.NoError(err)
	assert.False(ok, "no further bytes are admissible once the literal is complete")
}

func TestMatcher_literalRejectsDivergentByte(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "a", "b")
	cg := mustCompile(t, `root ::= "ab"`, v)

	m, err := New(cg)
	require.NoError(err)

	ok, err := m.AcceptString([]byte("x"))
	require.NoError(err)
	assert.False(ok)
}

// S2: a bounded quantifier enforces both its lower and upper bounds.
func TestMatcher_quantifierBounds(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "a")
	cg := mustCompile(t, `root ::= [a-z]{2,3}`, v)

	m, err := New(cg, WithTerminateWithoutStopToken(true))
	require.NoError(err)

	ok, err := m.AcceptString([]byte("a"))
	require.NoError(err)
	require.True(ok)
	assert.False(m.accepting, "one rep does not yet satisfy Lo=2")
	assert.False(m.IsTerminated())

	ok, err = m.AcceptString([]byte("a"))
	require.NoError(err)
	require.True(ok)
	assert.True(m.accepting, "two reps satisfies Lo=2")
	assert.False(m.IsTerminated(), "accepting does not terminate while a third rep is still possible")

	ok, err = m.AcceptString([]byte("a"))
	require.NoError(err)
	require.True(ok)
	assert.True(m.accepting)
	assert.True(m.IsTerminated(), "Hi=3 reached: no further repetition possible")

	ok, err = m.AcceptString([]byte("a"))
	require.NoError(err)
	assert.False(ok, "matcher is terminated, nothing more can be accepted")
}

func TestMatcher_quantifierRejectsBelowLo(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "a")
	cg := mustCompile(t, `root ::= [a-z]{2,3}`, v)

	m, err := New(cg)
	require.NoError(err)

	ok, err := m.AcceptString([]byte("a"))
	require.NoError(err)
	require.True(ok)

	ok, err = m.acceptStop()
	require.NoError(err)
	assert.False(ok, "stop is inadmissible before Lo reps have matched")
}

// A RuleRef composes with a quantifier the same way a terminal does.
func TestMatcher_ruleRefInsideSequence(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "x", "y")
	cg := mustCompile(t, "root ::= pair\npair ::= \"x\" \"y\"", v)

	m, err := New(cg)
	require.NoError(err)

	ok, err := m.AcceptString([]byte("x"))
	require.NoError(err)
	assert.True(ok)
	assert.False(m.accepting)

	ok, err = m.AcceptString([]byte("y"))
	require.NoError(err)
	assert.True(ok)
	assert.True(m.accepting)
}

// A rule with two alternatives keeps both frontier branches alive until a
// byte disambiguates them.
func TestMatcher_alternationNarrows(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "a", "b", "c")
	cg := mustCompile(t, "root ::= \"a\" | \"b\"", v)

	m, err := New(cg)
	require.NoError(err)

	ok, err := m.AcceptString([]byte("c"))
	require.NoError(err)
	assert.False(ok)

	ok, err = m.AcceptString([]byte("a"))
	require.NoError(err)
	assert.True(ok)
	assert.True(m.accepting)
}

// A trailing lookahead assertion must hold against the bytes that follow it
// within the same accept_string call.
func TestMatcher_lookaheadWithinSameCall(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "ax", "ay")
	cg := mustCompile(t, `root ::= "a" (= "x")`, v)

	m, err := New(cg)
	require.NoError(err)

	ok, err := m.AcceptString([]byte("ax"))
	require.NoError(err)
	assert.True(ok, "lookahead is satisfied by the 'x' following 'a' in the same call")

	m2, err := New(cg)
	require.NoError(err)
	ok, err = m2.AcceptString([]byte("ay"))
	require.NoError(err)
	assert.False(ok, "lookahead requires 'x' but the call supplies 'y'")
}

// A lookahead assertion that can't be disproved within the current call's
// remaining bytes is optimistically treated as satisfied.
func TestMatcher_lookaheadOptimisticAtBufferEnd(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "a")
	cg := mustCompile(t, `root ::= "a" (= "x")`, v)

	m, err := New(cg)
	require.NoError(err)

	ok, err := m.AcceptString([]byte("a"))
	require.NoError(err)
	assert.True(ok, "nothing in this call's bytes disproves the lookahead yet")
}

// Rollback restores the exact frontier from before the rolled-back calls.
func TestMatcher_rollbackRestoresPriorState(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "a", "b")
	cg := mustCompile(t, `root ::= "a" "b"`, v)

	m, err := New(cg)
	require.NoError(err)

	ok, err := m.AcceptString([]byte("a"))
	require.NoError(err)
	require.True(ok)

	ok, err = m.AcceptString([]byte("b"))
	require.NoError(err)
	require.True(ok)
	assert.True(m.accepting)

	require.NoError(m.Rollback(1))
	assert.False(m.accepting, "rollback by one call undoes the 'b' accept")

	ok, err = m.AcceptString([]byte("b"))
	require.NoError(err)
	assert.True(ok, "the matcher is back to the state right after 'a', so 'b' is admissible again")
}

func TestMatcher_rollbackRejectsExcessiveCount(t *testing.T) {
	require := require.New(t)

	v := tokenVocab(t, "a")
	cg := mustCompile(t, `root ::= "a"`, v)

	m, err := New(cg)
	require.NoError(err)

	err = m.Rollback(1)
	require.Error(err, "no history yet to roll back")
}

// FillNextTokenBitmask agrees with canAccept for every regular token, and
// masks stop tokens out until the matcher is in an accepting state.
func TestMatcher_fillNextTokenBitmask(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "a", "ab", "b", "c")
	cg := mustCompile(t, `root ::= "ab"`, v)

	m, err := New(cg)
	require.NoError(err)

	buf, err := bitmask.Allocate(1, v.Size())
	require.NoError(err)

	_, err = m.FillNextTokenBitmask(buf, 0)
	require.NoError(err)

	assert.True(buf.Get(0, 0), "'a' is a strict prefix")
	assert.True(buf.Get(0, 1), "'ab' completes the literal exactly")
	assert.False(buf.Get(0, 2), "'b' diverges immediately")
	assert.False(buf.Get(0, 3), "stop token inadmissible before the literal is complete")

	ok, err := m.AcceptString([]byte("ab"))
	require.NoError(err)
	require.True(ok)

	_, err = m.FillNextTokenBitmask(buf, 0)
	require.NoError(err)
	assert.True(buf.Get(0, 3), "stop token becomes admissible once accepting")
}

func TestMatcher_fillNextTokenBitmaskRejectsRowOutOfRange(t *testing.T) {
	require := require.New(t)

	v := tokenVocab(t, "a")
	cg := mustCompile(t, `root ::= "a"`, v)

	m, err := New(cg)
	require.NoError(err)

	buf, err := bitmask.Allocate(1, v.Size())
	require.NoError(err)

	_, err = m.FillNextTokenBitmask(buf, 5)
	require.Error(err)
}

// FindJumpForwardString returns the longest deterministic run of bytes from
// the current state, stopping as soon as more than one next byte is live.
func TestMatcher_findJumpForwardString(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "x")
	cg := mustCompile(t, "root ::= \"abc\" (\"d\" | \"e\")", v)

	m, err := New(cg)
	require.NoError(err)

	jump, ok := m.FindJumpForwardString()
	require.True(ok)
	assert.Equal([]byte("abc"), jump, "the branch between 'd' and 'e' is where determinism ends")
}

func TestMatcher_findJumpForwardStringEmptyWhenAmbiguousImmediately(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "x")
	cg := mustCompile(t, "root ::= \"a\" | \"b\"", v)

	m, err := New(cg)
	require.NoError(err)

	_, ok := m.FindJumpForwardString()
	assert.False(ok)
}

// Accepting a stop token terminates the matcher; accepting a stop token
// before the grammar is in an accepting state is refused.
func TestMatcher_acceptStopToken(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "a")
	stopID := 1
	cg := mustCompile(t, `root ::= "a"`, v)

	m, err := New(cg)
	require.NoError(err)

	ok, err := m.AcceptToken(stopID)
	require.NoError(err)
	assert.False(ok, "not yet accepting, stop is refused")

	ok, err = m.AcceptToken(0)
	require.NoError(err)
	require.True(ok)

	ok, err = m.AcceptToken(stopID)
	require.NoError(err)
	assert.True(ok)
	assert.True(m.IsTerminated())
}

func TestMatcher_resetRestoresRootState(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	v := tokenVocab(t, "a")
	cg := mustCompile(t, `root ::= "a"`, v)

	m, err := New(cg)
	require.NoError(err)

	ok, err := m.AcceptString([]byte("a"))
	require.NoError(err)
	require.True(ok)
	assert.True(m.accepting)

	require.NoError(m.Reset())
	assert.False(m.accepting)
	assert.Empty(m.history)
}
