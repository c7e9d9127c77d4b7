package grammar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_FormatParseError_includesLineAndCaret(t *testing.T) {
	assert := assert.New(t)

	src := `root ::= [Z-A]`
	_, err := Parse(src)
	if !assert.Error(err) {
		return
	}

	formatted := FormatParseError(src, err)
	assert.True(strings.Contains(formatted, "line 1"))
	assert.True(strings.Contains(formatted, "^"))
	assert.True(strings.Contains(formatted, src))
}
