// Package vocab normalizes an external tokenizer's vocabulary into the
// decoded-byte-sequence-plus-metadata form the compiler and matcher consume:
// each token's exact decoded bytes, its kind (regular/stop/special), and the
// two decoding conventions (token_postproc_method, prepend_space_in_encode)
// that affect byte-form normalization upstream of this package.
package vocab

import (
	"sort"

	"github.com/dekarrin/gramask/internal/merrors"
)

// Kind classifies a vocabulary token.
type Kind int

const (
	// Regular tokens may be matched against the grammar.
	Regular Kind = iota
	// Stop tokens terminate generation when accepted.
	Stop
	// Special tokens are never proposable; they are masked out
	// unconditionally.
	Special
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular"
	case Stop:
		return "stop"
	case Special:
		return "special"
	default:
		return "unknown"
	}
}

// PostprocMethod names the tokenizer's byte-reconstruction convention.
type PostprocMethod int

const (
	ByteFallback PostprocMethod = iota
	ByteLevel
)

// Token is one vocabulary entry.
type Token struct {
	ID      int
	Decoded []byte
	Kind    Kind
}

// Vocabulary is a finite ordered sequence of tokens indexed 0..Size-1.
// Vocabulary IDs may be sparse: any id in range with no supplied Token is
// treated as Special.
type Vocabulary struct {
	size            int
	tokens          map[int]Token
	postproc        PostprocMethod
	prependSpace    bool
	cachedStopIDs   []int
	cachedRegularID []int
}

// New validates and constructs a Vocabulary. It returns a *merrors.VocabError
// if any token id falls outside [0, size), or if two tokens share an id.
func New(size int, tokens []Token, postproc PostprocMethod, prependSpace bool) (*Vocabulary, error) {
	if size < 0 {
		return nil, merrors.NewVocabError("vocab_size must be non-negative, got %d", size)
	}

	v := &Vocabulary{
		size:         size,
		tokens:       make(map[int]Token, len(tokens)),
		postproc:     postproc,
		prependSpace: prependSpace,
	}

	for _, t := range tokens {
		if t.ID < 0 || t.ID >= size {
			return nil, merrors.NewVocabError("token id %d out of range [0, %d)", t.ID, size)
		}
		if _, dup := v.tokens[t.ID]; dup {
			return nil, merrors.NewVocabError("duplicate token id %d", t.ID)
		}
		v.tokens[t.ID] = t
	}

	return v, nil
}

// Size returns vocab_size.
func (v *Vocabulary) Size() int { return v.size }

// PostprocMethod returns the tokenizer's byte-reconstruction convention.
func (v *Vocabulary) PostprocMethod() PostprocMethod { return v.postproc }

// PrependSpaceInEncode returns the space-prepending convention flag.
func (v *Vocabulary) PrependSpaceInEncode() bool { return v.prependSpace }

// Token returns the token for id and whether it was explicitly present
// (as opposed to being treated as an implicit special token by virtue of
// being missing from a sparse vocabulary).
func (v *Vocabulary) Token(id int) (Token, bool) {
	t, ok := v.tokens[id]
	return t, ok
}

// Kind returns the effective kind of id: Special for any id outside
// [0, Size) or missing from a sparse vocabulary.
func (v *Vocabulary) Kind(id int) Kind {
	if id < 0 || id >= v.size {
		return Special
	}
	t, ok := v.tokens[id]
	if !ok {
		return Special
	}
	return t.Kind
}

// StopIDs returns, in ascending order, the ids of every stop token.
func (v *Vocabulary) StopIDs() []int {
	if v.cachedStopIDs != nil {
		return v.cachedStopIDs
	}
	v.cachedStopIDs = v.idsOfKind(Stop)
	return v.cachedStopIDs
}

// RegularIDs returns, in ascending order, the ids of every regular token.
func (v *Vocabulary) RegularIDs() []int {
	if v.cachedRegularID != nil {
		return v.cachedRegularID
	}
	v.cachedRegularID = v.idsOfKind(Regular)
	return v.cachedRegularID
}

func (v *Vocabulary) idsOfKind(k Kind) []int {
	var ids []int
	for id, t := range v.tokens {
		if t.Kind == k {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}
