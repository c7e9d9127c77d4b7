package grammar

import (
	"fmt"
	"strings"

	"github.com/dekarrin/gramask/internal/merrors"
	"github.com/dekarrin/rosed"
)

const diagnosticWidth = 100

// FormatParseError renders a *merrors.ParseError as a human-readable,
// multi-line diagnostic: the error message, the offending source line, and
// a caret pointing at the column. Intended for CLI/log consumption, not for
// anything the parser itself relies on.
func FormatParseError(src string, err error) string {
	pe, ok := err.(*merrors.ParseError)
	if !ok {
		return err.Error()
	}

	lines := strings.Split(src, "\n")
	var offending string
	if pe.Line >= 1 && pe.Line <= len(lines) {
		offending = lines[pe.Line-1]
	}

	caretCol := pe.Col - 1
	if caretCol < 0 {
		caretCol = 0
	}
	caret := strings.Repeat(" ", caretCol) + "^"

	header := rosed.Edit(fmt.Sprintf("line %d, col %d: %s", pe.Line, pe.Col, pe.Msg)).
		Wrap(diagnosticWidth).
		String()

	return fmt.Sprintf("%s\n%s\n%s", header, offending, caret)
}
