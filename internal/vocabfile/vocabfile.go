// Package vocabfile loads tokenizer vocabularies from GVF (Gramask
// Vocabulary File) format, a TOML-based format that carries every decoded
// token byte form along with the metadata the compiler and matcher need:
// vocabulary size, token kinds, the byte-reconstruction convention, and the
// space-prepending flag.
package vocabfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dekarrin/gramask/internal/vocab"
)

// CurrentFormat is the format value expected in the top-level table of every
// GVF file.
const CurrentFormat = "gvf 1.0"

// FileInfo contains the header information all GVF files must contain.
type FileInfo struct {
	Format string `toml:"format"`
	Type   string `toml:"type"`
}

// topLevelVocabData is the top-level structure containing all keys in a
// complete GVF 'VOCAB' type file.
type topLevelVocabData struct {
	Format       string          `toml:"format"`
	Type         string          `toml:"type"`
	Size         int             `toml:"size"`
	Postproc     string          `toml:"postproc"`
	PrependSpace bool            `toml:"prepend_space"`
	Tokens       []marshaledToken `toml:"token"`
}

// marshaledToken is one [[token]] table. Exactly one of Text and Bytes
// should be set; Bytes exists for decoded forms that are not valid UTF-8
// and so cannot be written as a TOML string.
type marshaledToken struct {
	ID    int    `toml:"id"`
	Text  string `toml:"text"`
	Bytes []int  `toml:"bytes"`
	Kind  string `toml:"kind"`
}

func (mt marshaledToken) toToken() (vocab.Token, error) {
	tok := vocab.Token{ID: mt.ID}

	if mt.Text != "" && len(mt.Bytes) > 0 {
		return tok, fmt.Errorf("token %d: 'text' and 'bytes' are mutually exclusive", mt.ID)
	}
	if len(mt.Bytes) > 0 {
		tok.Decoded = make([]byte, len(mt.Bytes))
		for i, b := range mt.Bytes {
			if b < 0 || b > 255 {
				return tok, fmt.Errorf("token %d: byte value %d out of range", mt.ID, b)
			}
			tok.Decoded[i] = byte(b)
		}
	} else {
		tok.Decoded = []byte(mt.Text)
	}

	kind, err := parseKind(mt.Kind)
	if err != nil {
		return tok, fmt.Errorf("token %d: %w", mt.ID, err)
	}
	tok.Kind = kind

	return tok, nil
}

func parseKind(s string) (vocab.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "regular":
		return vocab.Regular, nil
	case "stop":
		return vocab.Stop, nil
	case "special":
		return vocab.Special, nil
	default:
		return vocab.Regular, fmt.Errorf("kind must be one of 'regular', 'stop', or 'special': %q", s)
	}
}

func parsePostproc(s string) (vocab.PostprocMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "byte_fallback":
		return vocab.ByteFallback, nil
	case "byte_level":
		return vocab.ByteLevel, nil
	default:
		return vocab.ByteFallback, fmt.Errorf("postproc must be 'byte_fallback' or 'byte_level': %q", s)
	}
}

// LoadFile loads a vocabulary from the GVF file at path.
func LoadFile(path string) (*vocab.Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Parse parses the bytes of a GVF file into a Vocabulary.
func Parse(data []byte) (*vocab.Vocabulary, error) {
	var tlv topLevelVocabData
	if err := toml.Unmarshal(data, &tlv); err != nil {
		return nil, fmt.Errorf("TOML syntax error: %w", err)
	}

	if !strings.EqualFold(tlv.Format, CurrentFormat) {
		return nil, fmt.Errorf("unsupported format %q, expected %q", tlv.Format, CurrentFormat)
	}
	if !strings.EqualFold(tlv.Type, "VOCAB") {
		return nil, fmt.Errorf("file type %q is not 'VOCAB'", tlv.Type)
	}

	postproc, err := parsePostproc(tlv.Postproc)
	if err != nil {
		return nil, err
	}

	toks := make([]vocab.Token, len(tlv.Tokens))
	for i, mt := range tlv.Tokens {
		toks[i], err = mt.toToken()
		if err != nil {
			return nil, err
		}
	}

	return vocab.New(tlv.Size, toks, postproc, tlv.PrependSpace)
}
