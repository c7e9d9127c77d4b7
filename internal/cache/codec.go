package cache

import (
	"fmt"

	"github.com/dekarrin/gramask/internal/bitmask"
	"github.com/dekarrin/gramask/internal/compiler"
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/vocab"
	"github.com/dekarrin/rezi"
)

// The blob layout is REZI-encoded and versioned. It is an internal storage
// format for the persistence tier only, not an interchange format; the
// version is bumped whenever the layout changes and old blobs are simply
// treated as misses by callers that see a version error.
const blobVersion = 1

// Encode serializes cg into a self-contained binary blob: normalized grammar
// source, the full vocabulary, the fingerprint, and every position mask.
func Encode(cg *compiler.CompiledGrammar) ([]byte, error) {
	var data []byte

	data = append(data, rezi.EncInt(blobVersion)...)
	data = append(data, rezi.EncString(grammar.Print(cg.Grammar))...)

	v := cg.Vocab
	data = append(data, rezi.EncInt(v.Size())...)
	data = append(data, rezi.EncInt(int(v.PostprocMethod()))...)
	data = append(data, rezi.EncBool(v.PrependSpaceInEncode())...)

	var toks []vocab.Token
	for id := 0; id < v.Size(); id++ {
		if tok, ok := v.Token(id); ok {
			toks = append(toks, tok)
		}
	}
	data = append(data, rezi.EncInt(len(toks))...)
	for _, tok := range toks {
		data = append(data, rezi.EncInt(tok.ID)...)
		data = append(data, rezi.EncString(string(tok.Decoded))...)
		data = append(data, rezi.EncInt(int(tok.Kind))...)
	}

	data = append(data, rezi.EncString(string(cg.Fingerprint[:]))...)

	positions := cg.Positions()
	data = append(data, rezi.EncInt(len(positions))...)
	for _, p := range positions {
		mask := cg.Mask(p)
		data = append(data, rezi.EncString(p.Rule)...)
		data = append(data, rezi.EncInt(p.Alt)...)
		data = append(data, rezi.EncInt(p.Elem)...)

		words := mask.Accept.Row(0)
		data = append(data, rezi.EncInt(len(words))...)
		for _, w := range words {
			data = append(data, rezi.EncInt(int(w))...)
		}

		data = append(data, rezi.EncInt(len(mask.Uncertain))...)
		for _, id := range mask.Uncertain {
			data = append(data, rezi.EncInt(id)...)
		}
	}

	return data, nil
}

// Decode reconstructs a CompiledGrammar from a blob produced by Encode.
func Decode(data []byte) (*compiler.CompiledGrammar, error) {
	d := decoder{data: data}

	ver := d.int("version")
	if d.err == nil && ver != blobVersion {
		return nil, fmt.Errorf("unsupported compiled-grammar blob version %d", ver)
	}

	src := d.string("grammar source")

	size := d.int("vocab size")
	postproc := d.int("postproc method")
	prependSpace := d.bool("prepend space flag")

	ntoks := d.int("token count")
	var toks []vocab.Token
	for i := 0; i < ntoks && d.err == nil; i++ {
		id := d.int("token id")
		decoded := d.string("token bytes")
		kind := d.int("token kind")
		toks = append(toks, vocab.Token{ID: id, Decoded: []byte(decoded), Kind: vocab.Kind(kind)})
	}

	fpStr := d.string("fingerprint")
	var fp [16]byte
	if d.err == nil {
		if len(fpStr) != len(fp) {
			return nil, fmt.Errorf("fingerprint is %d bytes, expected %d", len(fpStr), len(fp))
		}
		copy(fp[:], fpStr)
	}

	nmasks := d.int("mask count")
	type rawMask struct {
		pos       compiler.Position
		words     []int32
		uncertain []int
	}
	var raws []rawMask
	for i := 0; i < nmasks && d.err == nil; i++ {
		var rm rawMask
		rm.pos.Rule = d.string("position rule")
		rm.pos.Alt = d.int("position alt")
		rm.pos.Elem = d.int("position elem")

		nwords := d.int("word count")
		for w := 0; w < nwords && d.err == nil; w++ {
			rm.words = append(rm.words, int32(d.int("mask word")))
		}

		nunc := d.int("uncertain count")
		for u := 0; u < nunc && d.err == nil; u++ {
			rm.uncertain = append(rm.uncertain, d.int("uncertain id"))
		}

		raws = append(raws, rm)
	}

	if d.err != nil {
		return nil, d.err
	}

	g, err := grammar.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("stored grammar source is invalid: %w", err)
	}
	v, err := vocab.New(size, toks, vocab.PostprocMethod(postproc), prependSpace)
	if err != nil {
		return nil, fmt.Errorf("stored vocabulary is invalid: %w", err)
	}

	masks := make(map[compiler.Position]*compiler.PositionMask, len(raws))
	for _, rm := range raws {
		accept, err := bitmask.Allocate(1, size)
		if err != nil {
			return nil, err
		}
		row := accept.Row(0)
		if len(rm.words) != len(row) {
			return nil, fmt.Errorf("mask for %s has %d words, expected %d", rm.pos, len(rm.words), len(row))
		}
		copy(row, rm.words)
		masks[rm.pos] = &compiler.PositionMask{Accept: accept, Uncertain: rm.uncertain}
	}

	return compiler.FromParts(g, v, fp, masks), nil
}

// decoder walks a REZI blob front to back, capturing the first failure so
// call sites stay linear instead of threading (value, n, err) triples
// through every field.
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) int(what string) int {
	if d.err != nil {
		return 0
	}
	v, n, err := rezi.DecInt(d.data[d.off:])
	if err != nil {
		d.err = fmt.Errorf("decode %s: %w", what, err)
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) string(what string) string {
	if d.err != nil {
		return ""
	}
	v, n, err := rezi.DecString(d.data[d.off:])
	if err != nil {
		d.err = fmt.Errorf("decode %s: %w", what, err)
		return ""
	}
	d.off += n
	return v
}

func (d *decoder) bool(what string) bool {
	if d.err != nil {
		return false
	}
	v, n, err := rezi.DecBool(d.data[d.off:])
	if err != nil {
		d.err = fmt.Errorf("decode %s: %w", what, err)
		return false
	}
	d.off += n
	return v
}
