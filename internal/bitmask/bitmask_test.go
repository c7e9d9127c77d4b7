package bitmask

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Allocate_startsAllOnes(t *testing.T) {
	assert := assert.New(t)

	b, err := Allocate(2, 40)
	if !assert.NoError(err) {
		return
	}

	assert.Equal(2, b.Words) // ceil(40/32) == 2
	for row := 0; row < 2; row++ {
		for id := 0; id < 40; id++ {
			assert.True(b.Get(row, id), "row %d id %d", row, id)
		}
	}
}

func Test_SetAndGet_roundTrip(t *testing.T) {
	assert := assert.New(t)

	b, err := Allocate(1, 70)
	if !assert.NoError(err) {
		return
	}

	b.Set(0, 5, false)
	b.Set(0, 64, false)
	b.Set(0, 69, false)

	assert.False(b.Get(0, 5))
	assert.False(b.Get(0, 64))
	assert.False(b.Get(0, 69))
	assert.True(b.Get(0, 0))
	assert.True(b.Get(0, 63))
}

func Test_IsAllOnes_respectsTrailingPartialWord(t *testing.T) {
	assert := assert.New(t)

	b, err := Allocate(1, 35)
	if !assert.NoError(err) {
		return
	}

	assert.True(b.IsAllOnes(0))

	b.Set(0, 34, false)
	assert.False(b.IsAllOnes(0))
}

func Test_ToBool_FromBool_roundTrip(t *testing.T) {
	assert := assert.New(t)

	b, err := Allocate(1, 10)
	if !assert.NoError(err) {
		return
	}
	b.Set(0, 3, false)
	b.Set(0, 7, false)

	bits := b.ToBool(0)
	if !assert.Len(bits, 10) {
		return
	}

	packed := FromBool(bits)
	assert.Equal(b.Row(0), packed.Row(0))
}

func Test_ApplyInplace_masksRejectedTokens(t *testing.T) {
	assert := assert.New(t)

	b, err := Allocate(1, 4)
	if !assert.NoError(err) {
		return
	}
	b.Set(0, 2, false)

	logits := [][]float32{{1, 2, 3, 4}}
	if !assert.NoError(ApplyInplace(logits, b)) {
		return
	}

	assert.Equal(float32(1), logits[0][0])
	assert.Equal(float32(2), logits[0][1])
	assert.True(math.IsInf(float64(logits[0][2]), -1))
	assert.Equal(float32(4), logits[0][3])
}

func Test_ApplyInplace_rejectsWrongShape(t *testing.T) {
	assert := assert.New(t)

	b, err := Allocate(2, 4)
	if !assert.NoError(err) {
		return
	}

	err = ApplyInplace([][]float32{{1, 2, 3, 4}}, b)
	assert.Error(err)
}
