package automaton

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildAB builds an NFA accepting the literal string "ab" via Thompson-style
// chained states, a single branch of the shape the compiler determinizes
// per Literal/CharClass grammar element.
func buildAB() NFA[int] {
	nfa := NFA[int]{Start: "0"}
	nfa.AddState("0", false)
	nfa.AddState("1", false)
	nfa.AddState("2", true)
	nfa.AddTransition("0", "a", "1")
	nfa.AddTransition("1", "b", "2")
	return nfa
}

func Test_NFA_EpsilonClosure_noEpsilons(t *testing.T) {
	assert := assert.New(t)

	nfa := buildAB()
	closure := nfa.EpsilonClosure("0")

	assert.True(closure.Has("0"))
	assert.Equal(1, closure.Len())
}

func Test_NFA_ToDFA_acceptsExactLiteral(t *testing.T) {
	assert := assert.New(t)

	nfa := buildAB()
	dfa := nfa.ToDFA()

	cur := dfa.Start
	for _, sym := range []string{"a", "b"} {
		next, ok := dfa.Next(cur, sym)
		if !assert.True(ok, "missing transition on %q from %q", sym, cur) {
			return
		}
		cur = next
	}

	assert.True(dfa.IsAccepting(cur))
}

func Test_NFA_ToDFA_rejectsWrongByte(t *testing.T) {
	assert := assert.New(t)

	nfa := buildAB()
	dfa := nfa.ToDFA()

	_, ok := dfa.Next(dfa.Start, "x")
	assert.False(ok)
}

// Test_NFA_ToDFA_epsilonFanOut mirrors the compiler's construction: a
// shared start state with an epsilon edge into each candidate branch, each
// branch state carrying its candidate's index as the value.
func Test_NFA_ToDFA_epsilonFanOut(t *testing.T) {
	assert := assert.New(t)

	// branch 0 accepts "a", branch 1 accepts "ab"
	nfa := NFA[int]{Start: "start"}
	nfa.AddState("start", false)
	nfa.AddState("c0_0", false)
	nfa.AddState("c0_1", true)
	nfa.AddState("c1_0", false)
	nfa.AddState("c1_1", false)
	nfa.AddState("c1_2", true)
	for _, st := range []string{"c0_0", "c0_1"} {
		nfa.SetValue(st, 0)
	}
	for _, st := range []string{"c1_0", "c1_1", "c1_2"} {
		nfa.SetValue(st, 1)
	}
	nfa.AddTransition("start", Epsilon, "c0_0")
	nfa.AddTransition("start", Epsilon, "c1_0")
	nfa.AddTransition("c0_0", "a", "c0_1")
	nfa.AddTransition("c1_0", "a", "c1_1")
	nfa.AddTransition("c1_1", "b", "c1_2")

	closure := nfa.EpsilonClosure("start")
	assert.True(closure.Has("c0_0"))
	assert.True(closure.Has("c1_0"))

	dfa := nfa.ToDFA()

	// after "a" the merged state is accepting (branch 0 done) and still
	// carries both branches' values
	afterA, ok := dfa.Next(dfa.Start, "a")
	if !assert.True(ok) {
		return
	}
	assert.True(dfa.IsAccepting(afterA))
	merged := dfa.GetValue(afterA)
	assert.True(merged.Has("c0_1"))
	assert.True(merged.Has("c1_1"))

	// and "b" can still complete branch 1
	afterB, ok := dfa.Next(afterA, "b")
	if !assert.True(ok) {
		return
	}
	assert.True(dfa.IsAccepting(afterB))
}

func Test_NFA_MOVE_unionsNondeterministicBranches(t *testing.T) {
	assert := assert.New(t)

	nfa := NFA[int]{Start: "0"}
	nfa.AddState("0", false)
	nfa.AddState("1", true)
	nfa.AddState("2", true)
	nfa.AddTransition("0", "a", "1")
	nfa.AddTransition("0", "a", "2")

	closure := nfa.EpsilonClosure("0")
	moved := nfa.MOVE(closure, "a")

	assert.True(moved.Has("1"))
	assert.True(moved.Has("2"))
}
