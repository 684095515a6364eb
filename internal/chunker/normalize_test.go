package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "collapses whitespace",
			input:    "func  a() {\n\treturn\t1\n}",
			expected: "func a() { return 1 }",
		},
		{
			name:     "strips line comments",
			input:    "x := 1 // the answer\ny := 2",
			expected: "x := 1 y := 2",
		},
		{
			name:     "strips block comments",
			input:    "x := 1 /* mid\nline */ + 2",
			expected: "x := 1 + 2",
		},
		{
			name:     "strips hash comments",
			input:    "x = 1 # python style\ny = 2",
			expected: "x = 1 y = 2",
		},
		{
			name:     "keeps comment markers inside strings",
			input:    `url := "http://example.com" // real comment`,
			expected: `url := "http://example.com"`,
		},
		{
			name:     "keeps hash inside string",
			input:    `color = "#ff0000"`,
			expected: `color = "#ff0000"`,
		},
		{
			name:     "handles escaped quotes",
			input:    `s := "say \"hi\"" // done`,
			expected: `s := "say \"hi\""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizedHashIgnoresFormatting(t *testing.T) {
	a := `// sum of two numbers
function sum(a, b) {
  const total = a + b;
  return total;
}`
	b := `function sum(a, b)
{
	const total = a + b; /* total */
	return total;
}`
	assert.Equal(t, NormalizedHash(a), NormalizedHash(b))
}

func TestNormalizedHashChangesWithContent(t *testing.T) {
	a := "function sum(a, b) { return a + b; }"
	b := "function sum(x, y) { return x + y; }"
	assert.NotEqual(t, NormalizedHash(a), NormalizedHash(b))
}
