package compiler

import (
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/vocab"
)

// CompileBuiltinJSON compiles the built-in JSON grammar (grammar.JSON)
// against v.
//
// Deprecated: this is legacy sugar kept for callers of the old
// builtin-grammar entry point. New code should call Compile with
// grammar.JSON() (or its own parsed grammar) directly, typically through
// internal/cache.
func CompileBuiltinJSON(v *vocab.Vocabulary, opts ...Option) (*CompiledGrammar, error) {
	return Compile(grammar.JSON(), v, opts...)
}
