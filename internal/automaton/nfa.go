package automaton

import (
	"fmt"

	"github.com/dekarrin/gramask/internal/util"
)

// NFA is a non-deterministic finite automaton over a byte alphabet (plus
// epsilon moves), carrying an arbitrary value of type E at each state.
type NFA[E any] struct {
	states map[string]NFAState[E]
	Start  string
}

// AddState adds a new state with the given name. A no-op if the state
// already exists.
func (nfa *NFA[E]) AddState(name string, accepting bool) {
	if _, ok := nfa.states[name]; ok {
		return
	}
	if nfa.states == nil {
		nfa.states = map[string]NFAState[E]{}
	}
	nfa.states[name] = NFAState[E]{
		name:        name,
		transitions: make(map[string][]FATransition),
		accepting:   accepting,
	}
}

func (nfa *NFA[E]) SetValue(state string, v E) {
	s, ok := nfa.states[state]
	if !ok {
		panic(fmt.Sprintf("setting value on non-existing state: %q", state))
	}
	s.value = v
	nfa.states[state] = s
}

func (nfa NFA[E]) GetValue(state string) E {
	s, ok := nfa.states[state]
	if !ok {
		panic(fmt.Sprintf("getting value on non-existing state: %q", state))
	}
	return s.value
}

// AddTransition adds a transition from fromState to toState on input. input
// should be a single byte represented as a 1-length string, or Epsilon.
func (nfa *NFA[E]) AddTransition(fromState, input, toState string) {
	from, ok := nfa.states[fromState]
	if !ok {
		panic(fmt.Sprintf("add transition from non-existent state %q", fromState))
	}
	if _, ok := nfa.states[toState]; !ok {
		panic(fmt.Sprintf("add transition to non-existent state %q", toState))
	}

	from.transitions[input] = append(from.transitions[input], FATransition{Input: input, Next: toState})
	nfa.states[fromState] = from
}

// InputSymbols returns the set of all non-epsilon symbols used in some
// transition of the NFA.
func (nfa NFA[E]) InputSymbols() util.StringSet {
	symbols := util.NewStringSet()
	for sName := range nfa.states {
		for a := range nfa.states[sName].transitions {
			if a != Epsilon {
				symbols.Add(a)
			}
		}
	}
	return symbols
}

// MOVE returns the set of states reachable with one transition from some
// state in X on input a.
func (nfa NFA[E]) MOVE(X util.ISet[string], a string) util.StringSet {
	moves := util.NewStringSet()
	for _, s := range X.Elements() {
		st, ok := nfa.states[s]
		if !ok {
			continue
		}
		for _, t := range st.transitions[a] {
			moves.Add(t.Next)
		}
	}
	return moves
}

// EpsilonClosure gives the set of states reachable from s using zero or more
// epsilon moves.
func (nfa NFA[E]) EpsilonClosure(s string) util.StringSet {
	start, ok := nfa.states[s]
	if !ok {
		return nil
	}

	closure := util.NewStringSet()
	pending := util.Stack[NFAState[E]]{}
	pending.Push(start)

	for pending.Len() > 0 {
		cur := pending.Pop()
		if closure.Has(cur.name) {
			continue
		}
		closure.Add(cur.name)

		for _, move := range cur.transitions[Epsilon] {
			next, ok := nfa.states[move.Next]
			if !ok {
				panic(fmt.Sprintf("points to invalid state: %q", move.Next))
			}
			pending.Push(next)
		}
	}

	return closure
}

// EpsilonClosureOfSet gives the set of states reachable from some state in X
// using zero or more epsilon moves.
func (nfa NFA[E]) EpsilonClosureOfSet(X util.ISet[string]) util.StringSet {
	all := util.NewStringSet()
	for _, s := range X.Elements() {
		all.AddAll(nfa.EpsilonClosure(s))
	}
	return all
}

// ToDFA performs subset construction (purple dragon book algorithm 3.20),
// producing a deterministic automaton accepting the same strings. Each
// resulting DFA state carries, as its value, the set of NFA state values
// that were merged into it, keyed by NFA state name.
func (nfa NFA[E]) ToDFA() DFA[util.SVSet[E]] {
	inputSymbols := nfa.InputSymbols()

	dStart := nfa.EpsilonClosure(nfa.Start)

	marked := util.NewStringSet()
	dStates := map[string]util.StringSet{}
	dStates[dStart.StringOrdered()] = dStart

	dfa := DFA[util.SVSet[E]]{states: map[string]DFAState[util.SVSet[E]]{}}

	for {
		dStateNames := util.StringSetOf(util.OrderedKeys(dStates))
		unmarked := dStateNames.Difference(marked)
		if unmarked.Empty() {
			break
		}

		for _, tName := range unmarked.Elements() {
			t := dStates[tName]
			marked.Add(tName)

			values := util.NewSVSet[E]()
			for nfaStateName := range t {
				values.Set(nfaStateName, nfa.GetValue(nfaStateName))
			}

			newState := DFAState[util.SVSet[E]]{
				name:        tName,
				value:       values,
				transitions: map[string]FATransition{},
				accepting: t.Any(func(v string) bool {
					return nfa.states[v].accepting
				}),
			}

			for a := range inputSymbols {
				u := nfa.EpsilonClosureOfSet(nfa.MOVE(t, a))
				if u.Empty() {
					continue
				}

				if !dStateNames.Has(u.StringOrdered()) {
					dStateNames.Add(u.StringOrdered())
					dStates[u.StringOrdered()] = u
				}

				newState.transitions[a] = FATransition{Input: a, Next: u.StringOrdered()}
			}

			dfa.states[tName] = newState
			if dfa.Start == "" {
				dfa.Start = tName
			}
		}
	}

	return dfa
}
