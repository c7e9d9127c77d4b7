package grammar

// JSON returns the built-in grammar for standard JSON documents. It exists
// for callers that want a ready-made grammar without writing EBNF source by
// hand; the returned Grammar is freshly parsed (and therefore independently
// mutable) on every call.
//
// This mirrors a legacy construction entry point that predates the
// compiler's Compile(Grammar, Vocabulary) signature; new code should prefer
// parsing grammar source directly and calling the compiler, and should treat
// JSON as a convenience constant rather than reach for it reflexively.
func JSON() *Grammar {
	return MustParse(jsonGrammarSource)
}

const jsonGrammarSource = `
root ::= object

object ::= "{" ws "}" | "{" ws member (ws "," ws member)* ws "}"
member ::= string ws ":" ws value

array ::= "[" ws "]" | "[" ws value (ws "," ws value)* ws "]"

value ::= object | array | string | number | "true" | "false" | "null"

string ::= "\"" strchar* "\""
strchar ::= [^"\\] | "\\" escchar
escchar ::= "\"" | "\\" | "/" | "b" | "f" | "n" | "r" | "t" | "u" hex hex hex hex
hex ::= [0-9a-fA-F]

number ::= "-"? intpart fracpart? exppart?
intpart ::= "0" | [1-9] [0-9]*
fracpart ::= "." [0-9]+
exppart ::= [eE] [+-]? [0-9]+

ws ::= [ \t\n\r]*
`
