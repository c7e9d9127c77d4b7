package compiler

import (
	"fmt"

	"github.com/dekarrin/gramask/internal/automaton"
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/util"
)

// Verdict is the result of checking a single candidate token's bytes against
// a single grammar element at a single position, independent of everything
// else on the matcher's stack.
type Verdict int

const (
	// Reject means the token's bytes diverge from the element somewhere
	// within the token's own length; no stack state could make it valid.
	Reject Verdict = iota

	// Accept means the token's bytes are a strict, not-yet-complete
	// prefix of something the element can match, and nothing past the
	// token's own bytes is needed to know that — every continuation the
	// caller could later feed is still viable.
	Accept

	// Uncertain means classifying this token requires information this
	// element alone doesn't carry, either because the token completes
	// the element exactly (so whether the containing rule/sequence also
	// terminates depends on the caller's stack) or because it overruns
	// the element into bytes that belong to whatever comes next.
	Uncertain
)

// tokenClassifier is the per-position classification engine. For Literal
// and CharClass elements it holds the byte-level DFA determinized from the
// element's candidate byte sequences; classifyPosition builds it once per
// position and walks it once per token. The other element kinds (RuleRef,
// Quantified, Empty) carry no local byte form to compile — see Position's
// doc comment for why any non-empty token is Uncertain there and the
// runtime stack (not the compiler) resolves it.
type tokenClassifier struct {
	dfa    automaton.DFA[util.SVSet[int]]
	hasDFA bool
}

func newTokenClassifier(elem grammar.Element) tokenClassifier {
	switch e := elem.(type) {
	case grammar.Literal:
		return tokenClassifier{dfa: sequencesToDFA(literalSequence(e)), hasDFA: true}
	case grammar.CharClass:
		return tokenClassifier{dfa: sequencesToDFA(charClassSequences(e)), hasDFA: true}
	default:
		return tokenClassifier{}
	}
}

// classify checks one token's decoded bytes against the element this
// classifier was built for.
func (tc tokenClassifier) classify(tok []byte) Verdict {
	if !tc.hasDFA {
		if len(tok) == 0 {
			return Accept
		}
		return Uncertain
	}
	return walkDFA(tc.dfa, tok)
}

// walkDFA drives tok through dfa one byte at a time. Reaching an accepting
// state with token bytes still unconsumed means some candidate sequence
// completed mid-token (the remainder overruns into whatever follows the
// element); ending exactly on an accepting state means the token completes
// the element. Both need the runtime stack to resolve. Ending alive on a
// non-accepting state is a strict prefix, and a missing transition is a
// divergence no stack state can repair.
func walkDFA(dfa automaton.DFA[util.SVSet[int]], tok []byte) Verdict {
	state := dfa.Start
	for i := 0; i < len(tok); i++ {
		if dfa.IsAccepting(state) {
			return Uncertain
		}
		next, ok := dfa.Next(state, byteSym(tok[i]))
		if !ok {
			return Reject
		}
		state = next
	}
	if dfa.IsAccepting(state) {
		return Uncertain
	}
	return Accept
}

// byteSym is the transition label for one raw byte. string([]byte{b})
// rather than string(rune(b)), so bytes >= 0x80 stay single-byte labels.
func byteSym(b byte) string {
	return string([]byte{b})
}

// sequencesToDFA builds a Thompson-style NFA covering every candidate
// ByteSequence — an epsilon fan-out from a shared start state into one
// chained branch per candidate, each chain state carrying its candidate's
// index — and determinizes it by subset construction.
func sequencesToDFA(seqs []automaton.ByteSequence) automaton.DFA[util.SVSet[int]] {
	nfa := automaton.NFA[int]{Start: "start"}
	nfa.AddState("start", false)

	for i, seq := range seqs {
		prev := fmt.Sprintf("c%d_0", i)
		nfa.AddState(prev, len(seq) == 0)
		nfa.SetValue(prev, i)
		nfa.AddTransition("start", automaton.Epsilon, prev)

		for j, r := range seq {
			next := fmt.Sprintf("c%d_%d", i, j+1)
			nfa.AddState(next, j == len(seq)-1)
			nfa.SetValue(next, i)
			for b := int(r.Lo); b <= int(r.Hi); b++ {
				nfa.AddTransition(prev, byteSym(byte(b)), next)
			}
			prev = next
		}
	}

	return nfa.ToDFA()
}

// literalSequence converts a Literal's fixed bytes into the one-candidate
// form sequencesToDFA expects.
func literalSequence(lit grammar.Literal) []automaton.ByteSequence {
	seq := make(automaton.ByteSequence, len(lit.Bytes))
	for i, b := range lit.Bytes {
		seq[i] = automaton.ByteRange{Lo: b, Hi: b}
	}
	return []automaton.ByteSequence{seq}
}

// charClassSequences expands a CharClass's rune ranges into the byte
// sequences covering its codepoints, respecting negation.
func charClassSequences(cc grammar.CharClass) []automaton.ByteSequence {
	ranges := make([][2]rune, len(cc.Ranges))
	for i, r := range cc.Ranges {
		ranges[i] = [2]rune{r.Lower, r.Upper}
	}
	return automaton.RangesToByteSequences(ranges, cc.Negated)
}
