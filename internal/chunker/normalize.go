package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize strips comments and collapses all whitespace runs to a single
// space, so that reformatting or re-commenting code never changes its
// normalized form. It understands //, #, and /* */ comments and leaves
// comment markers inside string literals alone.
func Normalize(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	const (
		stateCode = iota
		stateLineComment
		stateBlockComment
		stateString
	)
	state := stateCode
	var quote byte

	for i := 0; i < len(content); i++ {
		c := content[i]
		switch state {
		case stateCode:
			switch {
			case c == '/' && i+1 < len(content) && content[i+1] == '/':
				state = stateLineComment
				i++
			case c == '/' && i+1 < len(content) && content[i+1] == '*':
				state = stateBlockComment
				i++
			case c == '#':
				state = stateLineComment
			case c == '"' || c == '\'' || c == '`':
				state = stateString
				quote = c
				b.WriteByte(c)
			default:
				b.WriteByte(c)
			}
		case stateLineComment:
			if c == '\n' {
				state = stateCode
				b.WriteByte(c) // keep the line break as whitespace
			}
		case stateBlockComment:
			if c == '*' && i+1 < len(content) && content[i+1] == '/' {
				state = stateCode
				i++
				b.WriteByte(' ')
			}
		case stateString:
			b.WriteByte(c)
			if c == '\\' && quote != '`' && i+1 < len(content) {
				b.WriteByte(content[i+1])
				i++
			} else if c == quote {
				state = stateCode
			}
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizedHash returns the content fingerprint used for exact-duplicate
// checks: SHA-256 over the normalized content. This is the single canonical
// definition everywhere exact comparison happens.
func NormalizedHash(content string) string {
	sum := sha256.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(sum[:])
}
