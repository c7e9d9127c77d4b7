package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_New_rejectsOutOfRangeID(t *testing.T) {
	assert := assert.New(t)

	_, err := New(4, []Token{{ID: 10, Decoded: []byte("x"), Kind: Regular}}, ByteLevel, false)
	assert.Error(err)
}

func Test_New_rejectsDuplicateID(t *testing.T) {
	assert := assert.New(t)

	tokens := []Token{
		{ID: 0, Decoded: []byte("a"), Kind: Regular},
		{ID: 0, Decoded: []byte("b"), Kind: Regular},
	}
	_, err := New(4, tokens, ByteLevel, false)
	assert.Error(err)
}

func Test_Kind_missingIDIsSpecial(t *testing.T) {
	assert := assert.New(t)

	v, err := New(4, []Token{{ID: 0, Decoded: []byte("a"), Kind: Regular}}, ByteLevel, false)
	if !assert.NoError(err) {
		return
	}

	assert.Equal(Regular, v.Kind(0))
	assert.Equal(Special, v.Kind(1))
	assert.Equal(Special, v.Kind(-1))
	assert.Equal(Special, v.Kind(99))
}

func Test_StopAndRegularIDs(t *testing.T) {
	assert := assert.New(t)

	tokens := []Token{
		{ID: 0, Decoded: []byte("a"), Kind: Regular},
		{ID: 1, Decoded: []byte("</s>"), Kind: Stop},
		{ID: 2, Decoded: []byte("b"), Kind: Regular},
		{ID: 3, Decoded: nil, Kind: Special},
	}
	v, err := New(4, tokens, ByteLevel, false)
	if !assert.NoError(err) {
		return
	}

	assert.Equal([]int{1}, v.StopIDs())
	assert.Equal([]int{0, 2}, v.RegularIDs())
}

func Test_Fingerprint_stableAcrossInsertionOrder(t *testing.T) {
	assert := assert.New(t)

	tokensA := []Token{
		{ID: 0, Decoded: []byte("a"), Kind: Regular},
		{ID: 1, Decoded: []byte("b"), Kind: Regular},
	}
	tokensB := []Token{
		{ID: 1, Decoded: []byte("b"), Kind: Regular},
		{ID: 0, Decoded: []byte("a"), Kind: Regular},
	}

	v1, err := New(2, tokensA, ByteLevel, false)
	if !assert.NoError(err) {
		return
	}
	v2, err := New(2, tokensB, ByteLevel, false)
	if !assert.NoError(err) {
		return
	}

	assert.Equal(v1.Fingerprint(), v2.Fingerprint())
}

func Test_Fingerprint_differsOnContent(t *testing.T) {
	assert := assert.New(t)

	v1, err := New(2, []Token{{ID: 0, Decoded: []byte("a"), Kind: Regular}}, ByteLevel, false)
	if !assert.NoError(err) {
		return
	}
	v2, err := New(2, []Token{{ID: 0, Decoded: []byte("b"), Kind: Regular}}, ByteLevel, false)
	if !assert.NoError(err) {
		return
	}

	assert.NotEqual(v1.Fingerprint(), v2.Fingerprint())
}
