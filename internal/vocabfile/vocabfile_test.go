package vocabfile

import (
	"testing"

	"github.com/dekarrin/gramask/internal/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Parse_fullFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data := []byte(`
format = "gvf 1.0"
type = "VOCAB"
size = 4
postproc = "byte_level"
prepend_space = true

[[token]]
id = 0
text = "hello"
kind = "regular"

[[token]]
id = 1
bytes = [0xE2, 0x82]
kind = "regular"

[[token]]
id = 2
text = "</s>"
kind = "stop"

[[token]]
id = 3
text = "<pad>"
kind = "special"
`)

	v, err := Parse(data)
	require.NoError(err)

	assert.Equal(4, v.Size())
	assert.Equal(vocab.ByteLevel, v.PostprocMethod())
	assert.True(v.PrependSpaceInEncode())

	tok, ok := v.Token(0)
	require.True(ok)
	assert.Equal([]byte("hello"), tok.Decoded)
	assert.Equal(vocab.Regular, tok.Kind)

	// raw bytes form carries non-UTF-8 decoded forms unchanged
	tok, ok = v.Token(1)
	require.True(ok)
	assert.Equal([]byte{0xE2, 0x82}, tok.Decoded)

	assert.Equal(vocab.Stop, v.Kind(2))
	assert.Equal(vocab.Special, v.Kind(3))
}

func Test_Parse_defaultsAndMissingIDs(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// no postproc, no kind on the token, and id 1 never supplied
	data := []byte(`
format = "gvf 1.0"
type = "VOCAB"
size = 2

[[token]]
id = 0
text = "a"
`)

	v, err := Parse(data)
	require.NoError(err)

	assert.Equal(vocab.ByteFallback, v.PostprocMethod())
	assert.False(v.PrependSpaceInEncode())
	assert.Equal(vocab.Regular, v.Kind(0))

	// ids in range with no supplied token are treated as special
	assert.Equal(vocab.Special, v.Kind(1))
}

func Test_Parse_errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{
			name:  "bad format",
			input: "format = \"gvf 9.9\"\ntype = \"VOCAB\"\nsize = 1\n",
		},
		{
			name:  "wrong type",
			input: "format = \"gvf 1.0\"\ntype = \"GRAMMAR\"\nsize = 1\n",
		},
		{
			name:  "bad kind",
			input: "format = \"gvf 1.0\"\ntype = \"VOCAB\"\nsize = 1\n\n[[token]]\nid = 0\ntext = \"a\"\nkind = \"sometimes\"\n",
		},
		{
			name:  "text and bytes both set",
			input: "format = \"gvf 1.0\"\ntype = \"VOCAB\"\nsize = 1\n\n[[token]]\nid = 0\ntext = \"a\"\nbytes = [97]\n",
		},
		{
			name:  "byte out of range",
			input: "format = \"gvf 1.0\"\ntype = \"VOCAB\"\nsize = 1\n\n[[token]]\nid = 0\nbytes = [300]\n",
		},
		{
			name:  "id out of vocabulary range",
			input: "format = \"gvf 1.0\"\ntype = \"VOCAB\"\nsize = 1\n\n[[token]]\nid = 4\ntext = \"a\"\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			assert.Error(t, err)
		})
	}
}
