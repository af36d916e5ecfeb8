package services

import "strings"

// SplitStatements splits a multi-statement SQL text into individual
// statements, treating semicolons as delimiters only outside quoted string
// literals. Single and double quotes are honored; a quote preceded by an
// unescaped backslash does not toggle string state. A trailing segment with no
// terminator is still emitted when non-empty.
//
// This is deliberately lightweight: no comment or dollar-quoting awareness.
func SplitStatements(text string) []string {
	var statements []string
	var current strings.Builder

	inString := false
	var quote byte

	for i := 0; i < len(text); i++ {
		ch := text[i]

		switch {
		case inString:
			current.WriteByte(ch)
			if ch == quote && !isEscaped(text, i) {
				inString = false
			}
		case ch == '\'' || ch == '"':
			current.WriteByte(ch)
			inString = true
			quote = ch
		case ch == ';':
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// isEscaped reports whether the byte at position i is preceded by an odd run
// of backslashes.
func isEscaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}
