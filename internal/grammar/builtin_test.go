package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_JSON_parsesAndValidates(t *testing.T) {
	assert := assert.New(t)

	g := JSON()
	assert.NoError(g.Validate())
	assert.Equal("root", g.Root())
	assert.True(g.HasRule("object"))
	assert.True(g.HasRule("value"))
}

func Test_JSON_printRoundTrips(t *testing.T) {
	assert := assert.New(t)

	g := JSON()
	printed := Print(g)

	g2, err := Parse(printed)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(printed, Print(g2))
}
