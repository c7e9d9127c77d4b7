// Package automaton provides a grammar-agnostic NFA/DFA pair used by the
// compiler to classify, byte-by-byte, whether a grammar position always
// accepts, always rejects, or requires runtime simulation for a given
// vocabulary token.
//
// Unlike a parser generator's item automaton, transitions here are labeled
// with single input bytes (or the empty string for an epsilon move), which
// keeps subset construction independent of any particular grammar's symbol
// set.
package automaton

// Epsilon is the empty-string transition label.
const Epsilon = ""

// FATransition is a single transition edge: on receiving Input, move to Next.
type FATransition struct {
	Input string
	Next  string
}

// NFAState is one state of an NFA[E], carrying an arbitrary value of type E
// (the compiler attaches the candidate byte-sequence index here).
type NFAState[E any] struct {
	name        string
	value       E
	transitions map[string][]FATransition
	accepting   bool
}

// DFAState is one state of a DFA[E].
type DFAState[E any] struct {
	name        string
	value       E
	transitions map[string]FATransition
	accepting   bool
}

