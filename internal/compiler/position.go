package compiler

import (
	"fmt"

	"github.com/dekarrin/gramask/internal/grammar"
)

// Position identifies a point in the grammar expansion: rule Rule,
// alternative Alt, element Elem within that alternative's sequence.
//
// The full spec model identifies a position by a (rule, element index,
// quantifier counter) triple; this compiler tracks only (rule, alt, element
// index) and leaves quantifier-count bookkeeping to the matcher's runtime
// stack. See DESIGN.md for why that's sound: every position reachable
// through a Quantified element is always classified Uncertain here, so the
// quantifier counter never needs to participate in cache-key identity.
type Position struct {
	Rule string
	Alt  int
	Elem int
}

func (p Position) String() string {
	return fmt.Sprintf("%s#%d#%d", p.Rule, p.Alt, p.Elem)
}

// Element returns the grammar element at p, or nil if p is out of range.
func (p Position) Element(g *grammar.Grammar) grammar.Element {
	rule := g.Rule(p.Rule)
	if rule == nil || p.Alt < 0 || p.Alt >= len(rule.Alternatives) {
		return nil
	}
	seq := rule.Alternatives[p.Alt]
	if p.Elem < 0 || p.Elem >= len(seq.Elements) {
		return nil
	}
	return seq.Elements[p.Elem]
}

// Sequence returns the Sequence that p belongs to.
func (p Position) Sequence(g *grammar.Grammar) grammar.Sequence {
	return g.Rule(p.Rule).Alternatives[p.Alt]
}

// IsLastInSequence reports whether p is the final element of its sequence —
// the point at which, after matching, the sequence's lookahead (if any)
// applies and the containing rule may become satisfied.
func (p Position) IsLastInSequence(g *grammar.Grammar) bool {
	return p.Elem == len(p.Sequence(g).Elements)-1
}

// ListPositions enumerates every (rule, alt, element) position in g, in a
// deterministic order (rule declaration order, then alternative order, then
// element order).
func ListPositions(g *grammar.Grammar) []Position {
	var positions []Position
	for _, ruleName := range g.RuleNames() {
		rule := g.Rule(ruleName)
		for altIdx, seq := range rule.Alternatives {
			for elemIdx := range seq.Elements {
				positions = append(positions, Position{Rule: ruleName, Alt: altIdx, Elem: elemIdx})
			}
		}
	}
	return positions
}
