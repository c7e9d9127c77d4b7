package grammar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dekarrin/gramask/internal/merrors"
)

// Parse parses EBNF-like grammar source text into a Grammar, as described
// in the package doc. On any malformed input it returns a *merrors.ParseError
// carrying the 1-indexed line and column of the problem; no partial grammar
// is returned on error.
func Parse(src string) (*Grammar, error) {
	p := &parser{src: src, line: 1, col: 1, g: New()}
	p.g = &Grammar{rules: map[string]*Rule{}}

	p.skipSpace()
	for !p.atEOF() {
		if err := p.parseRuleDef(); err != nil {
			return nil, err
		}
		p.skipSpace()
	}

	if p.g.root == "" {
		return nil, merrors.NewParseError(p.line, p.col, "grammar has no rules; missing root")
	}

	if err := p.g.Validate(); err != nil {
		return nil, merrors.NewParseError(p.line, p.col, "%s", err.Error())
	}

	return p.g, nil
}

// MustParse is like Parse but panics on error; intended for tests and
// built-in grammar construction where the source is known-good.
func MustParse(src string) *Grammar {
	g, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return g
}

type parserState struct {
	i    int
	line int
	col  int
}

type parser struct {
	src string
	i   int

	line int
	col  int

	g         *Grammar
	syntheticN int
}

func (p *parser) save() parserState {
	return parserState{i: p.i, line: p.line, col: p.col}
}

func (p *parser) restore(s parserState) {
	p.i, p.line, p.col = s.i, s.line, s.col
}

func (p *parser) atEOF() bool {
	return p.i >= len(p.src)
}

func (p *parser) peekByte() byte {
	if p.atEOF() {
		return 0
	}
	return p.src[p.i]
}

func (p *parser) peekAt(offset int) byte {
	if p.i+offset >= len(p.src) {
		return 0
	}
	return p.src[p.i+offset]
}

func (p *parser) advance() byte {
	c := p.src[p.i]
	p.i++
	if c == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return c
}

func (p *parser) skipSpace() {
	for !p.atEOF() {
		c := p.peekByte()
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			p.advance()
			continue
		}
		if c == '#' {
			for !p.atEOF() && p.peekByte() != '\n' {
				p.advance()
			}
			continue
		}
		break
	}
}

func (p *parser) errf(format string, a ...interface{}) error {
	return merrors.NewParseError(p.line, p.col, format, a...)
}

// consumeLiteralToken consumes exact if it matches at the current position
// (after skipping leading space), returning whether it matched. On no match
// the parser position is left unchanged.
func (p *parser) consumeLiteralToken(exact string) bool {
	save := p.save()
	p.skipSpace()
	if p.i+len(exact) > len(p.src) || p.src[p.i:p.i+len(exact)] != exact {
		p.restore(save)
		return false
	}
	for range exact {
		p.advance()
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '-'
}

// tryParseIdent consumes an identifier at the current position (after
// skipping leading space), or leaves the position unchanged and returns ok
// == false.
func (p *parser) tryParseIdent() (name string, ok bool) {
	save := p.save()
	p.skipSpace()
	if p.atEOF() || !isIdentStart(p.peekByte()) {
		p.restore(save)
		return "", false
	}
	start := p.i
	for !p.atEOF() && isIdentCont(p.peekByte()) {
		p.advance()
	}
	return p.src[start:p.i], true
}

// peekIsRuleDefStart reports whether, starting from the current position
// (after skipping space), there is an identifier immediately followed by
// "::=" — the signal that the current sequence/body has ended and a new
// rule definition begins.
func (p *parser) peekIsRuleDefStart() bool {
	save := p.save()
	defer p.restore(save)

	if _, ok := p.tryParseIdent(); !ok {
		return false
	}
	return p.consumeLiteralToken("::=")
}

func (p *parser) parseRuleDef() error {
	p.skipSpace()
	nameLine, nameCol := p.line, p.col
	name, ok := p.tryParseIdent()
	if !ok {
		return p.errf("expected rule name")
	}
	if !p.consumeLiteralToken("::=") {
		return p.errf("expected '::='")
	}
	if p.g.HasRule(name) {
		return merrors.NewParseError(nameLine, nameCol, "rule %q defined multiple times", name)
	}

	rule, err := p.g.AddRule(name)
	if err != nil {
		return p.errf("%s", err.Error())
	}

	body, err := p.parseBody()
	if err != nil {
		return err
	}
	rule.Alternatives = body

	return nil
}

// parseBody parses a disjunction of sequences, stopping at a rule-def
// boundary or EOF.
func (p *parser) parseBody() ([]Sequence, error) {
	var alts []Sequence

	for {
		seq, err := p.parseSequence()
		if err != nil {
			return nil, err
		}
		alts = append(alts, seq)

		if p.consumeLiteralToken("|") {
			continue
		}
		break
	}

	return alts, nil
}

// parseSequence parses zero or more elements followed by an optional
// trailing lookahead assertion. It stops at '|', ')', a new rule-def
// boundary, or EOF.
func (p *parser) parseSequence() (Sequence, error) {
	var seq Sequence

	for {
		p.skipSpace()
		if p.atEOF() {
			break
		}
		if p.peekByte() == '|' || p.peekByte() == ')' {
			break
		}
		if p.peekIsRuleDefStart() {
			break
		}
		if p.peekByte() == '(' && p.peekAt(1) == '=' {
			if err := p.parseLookahead(&seq); err != nil {
				return seq, err
			}
			continue
		}

		el, ok, err := p.parseElement()
		if err != nil {
			return seq, err
		}
		if !ok {
			break
		}
		seq.Elements = append(seq.Elements, el)
	}

	return seq, nil
}

func (p *parser) parseLookahead(seq *Sequence) error {
	line, col := p.line, p.col
	if seq.HasLookahead {
		return merrors.NewParseError(line, col, "unexpected lookahead: sequence already has one")
	}

	p.advance() // '('
	p.advance() // '='

	var elems []Element
	for {
		p.skipSpace()
		if p.atEOF() {
			return p.errf("unterminated lookahead assertion, expected ')'")
		}
		if p.peekByte() == ')' {
			p.advance()
			break
		}
		el, ok, err := p.parseElement()
		if err != nil {
			return err
		}
		if !ok {
			return p.errf("unterminated lookahead assertion, expected ')'")
		}
		elems = append(elems, el)
	}

	seq.HasLookahead = true
	seq.Lookahead = elems
	return nil
}

// parseElement parses one quantifiable element plus any quantifier suffix.
// ok is false (with no error) when the current position does not start an
// element at all.
func (p *parser) parseElement() (Element, bool, error) {
	p.skipSpace()
	if p.atEOF() {
		return nil, false, nil
	}

	var base Element
	var err error

	switch c := p.peekByte(); {
	case c == '"':
		base, err = p.parseLiteral()
	case c == '[':
		base, err = p.parseCharClass()
	case c == '(':
		base, err = p.parseGroup()
	case isIdentStart(c):
		name, _ := p.tryParseIdent()
		if name == "epsilon" {
			base = Empty{}
		} else {
			base = RuleRef{Name: name}
		}
	default:
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return p.parseQuantifierSuffix(base)
}

func (p *parser) parseLiteral() (Element, error) {
	startLine, startCol := p.line, p.col
	p.advance() // opening quote

	var sb strings.Builder
	for {
		if p.atEOF() {
			return nil, merrors.NewParseError(startLine, startCol, "unterminated literal")
		}
		c := p.peekByte()
		if c == '"' {
			p.advance()
			break
		}
		if c == '\n' {
			return nil, merrors.NewParseError(startLine, startCol, "unterminated literal")
		}
		if c == '\\' {
			r, n, err := decodeEscape(p.src[p.i:])
			if err != nil {
				return nil, p.errf("invalid escape: %s", err.Error())
			}
			for k := 0; k < n; k++ {
				p.advance()
			}
			sb.WriteRune(r)
			continue
		}
		sb.WriteByte(c)
		p.advance()
	}

	return Literal{Bytes: []byte(sb.String())}, nil
}

func (p *parser) parseCharClass() (Element, error) {
	startLine, startCol := p.line, p.col
	p.advance() // '['

	cc := CharClass{}
	if !p.atEOF() && p.peekByte() == '^' {
		p.advance()
		cc.Negated = true
	}

	sawAny := false
	for {
		if p.atEOF() {
			return nil, merrors.NewParseError(startLine, startCol, "unterminated character class")
		}
		if p.peekByte() == ']' {
			p.advance()
			break
		}

		lo, err := p.readClassRune()
		if err != nil {
			return nil, err
		}
		hi := lo

		if !p.atEOF() && p.peekByte() == '-' && p.peekAt(1) != ']' {
			p.advance() // '-'
			hi, err = p.readClassRune()
			if err != nil {
				return nil, err
			}
		}

		if lo > hi {
			return nil, merrors.NewParseError(startLine, startCol, "lower bound is larger than upper bound")
		}

		cc.Ranges = append(cc.Ranges, RuneRange{Lower: lo, Upper: hi})
		sawAny = true
	}

	if !sawAny {
		return nil, merrors.NewParseError(startLine, startCol, "empty character class")
	}

	return cc, nil
}

func (p *parser) readClassRune() (rune, error) {
	if p.peekByte() == '\\' {
		r, n, err := decodeEscape(p.src[p.i:])
		if err != nil {
			return 0, p.errf("invalid escape: %s", err.Error())
		}
		for k := 0; k < n; k++ {
			p.advance()
		}
		return r, nil
	}
	if p.peekByte() == '\n' {
		return 0, p.errf("character class contains a newline")
	}

	// decode one UTF-8 rune from src[i:]
	r, size := decodeRuneAt(p.src, p.i)
	for k := 0; k < size; k++ {
		p.advance()
	}
	return r, nil
}

func (p *parser) parseGroup() (Element, error) {
	p.advance() // '('

	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if p.atEOF() || p.peekByte() != ')' {
		return nil, p.errf("expected ')' to close group")
	}
	p.advance()

	if len(body) == 1 && !body[0].HasLookahead && len(body[0].Elements) == 1 {
		// no need for a synthetic rule when there's nothing to disjoin and
		// nothing to sequence; `(X)` used only for quantifier grouping
		// around a single element collapses to that element directly.
		return body[0].Elements[0], nil
	}

	name := p.newSyntheticRuleName()
	rule, addErr := p.g.AddRule(name)
	if addErr != nil {
		return nil, p.errf("%s", addErr.Error())
	}
	rule.Alternatives = body

	return RuleRef{Name: name}, nil
}

func (p *parser) newSyntheticRuleName() string {
	p.syntheticN++
	return fmt.Sprintf("$group%d", p.syntheticN)
}

func (p *parser) parseQuantifierSuffix(base Element) (Element, bool, error) {
	p.skipSpace()
	if p.atEOF() {
		return base, true, nil
	}

	switch p.peekByte() {
	case '*':
		p.advance()
		return Quantified{Elem: base, Lo: 0, Hi: Unbounded}, true, nil
	case '+':
		p.advance()
		return Quantified{Elem: base, Lo: 1, Hi: Unbounded}, true, nil
	case '?':
		p.advance()
		return Quantified{Elem: base, Lo: 0, Hi: 1}, true, nil
	case '{':
		return p.parseBoundedQuantifier(base)
	}

	return base, true, nil
}

func (p *parser) parseBoundedQuantifier(base Element) (Element, bool, error) {
	line, col := p.line, p.col
	p.advance() // '{'

	lo, err := p.parseQuantInt()
	if err != nil {
		return nil, false, err
	}

	hi := lo
	if p.consumeLiteralToken(",") {
		p.skipSpace()
		if !p.atEOF() && p.peekByte() == '}' {
			hi = Unbounded
		} else {
			hi, err = p.parseQuantInt()
			if err != nil {
				return nil, false, err
			}
		}
	}

	p.skipSpace()
	if p.atEOF() || p.peekByte() != '}' {
		return nil, false, p.errf("expected '}' to close quantifier")
	}
	p.advance()

	if hi != Unbounded && lo > hi {
		return nil, false, merrors.NewParseError(line, col, "invalid quantifier range: lower bound is larger than upper bound")
	}

	return Quantified{Elem: base, Lo: lo, Hi: hi}, true, nil
}

func (p *parser) parseQuantInt() (int, error) {
	p.skipSpace()
	start := p.i
	for !p.atEOF() && p.peekByte() >= '0' && p.peekByte() <= '9' {
		p.advance()
	}
	if p.i == start {
		return 0, p.errf("invalid quantifier range: expected a number")
	}
	n, err := strconv.Atoi(p.src[start:p.i])
	if err != nil {
		return 0, p.errf("invalid quantifier range: %s", err.Error())
	}
	return n, nil
}

// decodeRuneAt decodes one UTF-8 rune starting at byte offset i in s,
// returning the rune and its encoded size in bytes.
func decodeRuneAt(s string, i int) (rune, int) {
	for _, r := range s[i:] {
		size := len(string(r))
		return r, size
	}
	return 0, 0
}
