package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "semicolon inside string literal does not split",
			input: "INSERT INTO t VALUES ('a;b'); SELECT 1;",
			want:  []string{"INSERT INTO t VALUES ('a;b')", "SELECT 1"},
		},
		{
			name:  "no trailing terminator still yields one statement",
			input: "SELECT 1",
			want:  []string{"SELECT 1"},
		},
		{
			name:  "empty input yields zero statements",
			input: "",
			want:  nil,
		},
		{
			name:  "whitespace only yields zero statements",
			input: "   \n\t  ",
			want:  nil,
		},
		{
			name:  "double quoted semicolon preserved",
			input: `SELECT ";" FROM t; SELECT 2`,
			want:  []string{`SELECT ";" FROM t`, "SELECT 2"},
		},
		{
			name:  "escaped quote does not end the string",
			input: `INSERT INTO t VALUES ('it\'s; fine'); SELECT 3;`,
			want:  []string{`INSERT INTO t VALUES ('it\'s; fine')`, "SELECT 3"},
		},
		{
			name:  "double backslash before quote ends the string",
			input: `SELECT 'a\\'; SELECT 4`,
			want:  []string{`SELECT 'a\\'`, "SELECT 4"},
		},
		{
			name:  "consecutive semicolons drop empty segments",
			input: "SELECT 1;;;SELECT 2;",
			want:  []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:  "statements trimmed of surrounding whitespace",
			input: "  SELECT 1 ;\n  SELECT 2 ;\n",
			want:  []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:  "unterminated string keeps the rest as one statement",
			input: "SELECT 'unclosed; SELECT 2",
			want:  []string{"SELECT 'unclosed; SELECT 2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.input))
		})
	}
}
