package grammar

import (
	"fmt"
	"strings"
)

// syntheticRulePrefix marks rules the parser generates internally to give a
// name to a parenthesized group (so multi-element groups and alternations
// can be quantified or referenced like any other rule). Print inlines these
// back into their parenthesized form rather than emitting them as separate
// named rules, so that printing and re-parsing is idempotent.
const syntheticRulePrefix = "$group"

func isSynthetic(name string) bool {
	return strings.HasPrefix(name, syntheticRulePrefix)
}

// Print renders g back into EBNF-like source text. For any grammar G
// accepted by Parse, Parse(Print(G)) produces a Grammar equal in meaning to
// G, and Print is idempotent under a further parse+print round trip.
func Print(g *Grammar) string {
	var sb strings.Builder

	names := g.RuleNames()
	first := true
	for _, name := range names {
		if isSynthetic(name) {
			continue
		}
		if !first {
			sb.WriteString("\n")
		}
		first = false

		rule := g.Rule(name)
		sb.WriteString(name)
		sb.WriteString(" ::= ")
		sb.WriteString(printAlternatives(g, rule.Alternatives))
		sb.WriteString("\n")
	}

	return sb.String()
}

func printAlternatives(g *Grammar, alts []Sequence) string {
	parts := make([]string, len(alts))
	for i := range alts {
		parts[i] = printSequence(g, alts[i])
	}
	return strings.Join(parts, " | ")
}

func printSequence(g *Grammar, seq Sequence) string {
	parts := make([]string, len(seq.Elements))
	for i := range seq.Elements {
		parts[i] = printElement(g, seq.Elements[i])
	}
	out := strings.Join(parts, " ")

	if seq.HasLookahead {
		lookParts := make([]string, len(seq.Lookahead))
		for i := range seq.Lookahead {
			lookParts[i] = printElement(g, seq.Lookahead[i])
		}
		la := "(= " + strings.Join(lookParts, " ") + ")"
		if out == "" {
			out = la
		} else {
			out = out + " " + la
		}
	}

	return out
}

func printElement(g *Grammar, el Element) string {
	switch e := el.(type) {
	case Literal:
		return printLiteralBytes(e.Bytes)
	case CharClass:
		return printCharClass(e)
	case RuleRef:
		if isSynthetic(e.Name) {
			rule := g.Rule(e.Name)
			return "(" + printAlternatives(g, rule.Alternatives) + ")"
		}
		return e.Name
	case Quantified:
		return printElement(g, e.Elem) + printQuantifierSuffix(e.Lo, e.Hi)
	case Empty:
		return "epsilon"
	default:
		return fmt.Sprintf("<unknown element %T>", el)
	}
}

func printCharClass(cc CharClass) string {
	var sb strings.Builder
	sb.WriteByte('[')
	if cc.Negated {
		sb.WriteByte('^')
	}
	for _, r := range cc.Ranges {
		sb.WriteString(escapeRuneForClass(r.Lower))
		if r.Lower != r.Upper {
			sb.WriteByte('-')
			sb.WriteString(escapeRuneForClass(r.Upper))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

func printQuantifierSuffix(lo, hi int) string {
	switch {
	case lo == 0 && hi == Unbounded:
		return "*"
	case lo == 1 && hi == Unbounded:
		return "+"
	case lo == 0 && hi == 1:
		return "?"
	case hi == Unbounded:
		return fmt.Sprintf("{%d,}", lo)
	case lo == hi:
		return fmt.Sprintf("{%d}", lo)
	default:
		return fmt.Sprintf("{%d,%d}", lo, hi)
	}
}
