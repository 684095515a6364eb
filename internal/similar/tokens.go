package similar

import "strings"

// structuralKeywords are the control-flow and declaration keywords counted
// as structural tokens, across the supported languages.
var structuralKeywords = map[string]bool{
	"if": true, "else": true, "elif": true, "for": true, "while": true,
	"switch": true, "case": true, "default": true, "return": true,
	"break": true, "continue": true, "do": true, "goto": true,
	"func": true, "function": true, "def": true, "lambda": true,
	"class": true, "struct": true, "interface": true, "type": true,
	"var": true, "let": true, "const": true, "import": true,
	"try": true, "catch": true, "except": true, "finally": true,
	"throw": true, "raise": true, "defer": true, "go": true,
	"select": true, "range": true, "async": true, "await": true,
	"yield": true, "new": true, "static": true, "export": true,
}

// structuralPunct is the punctuation of syntactic significance.
const structuralPunct = "{}()[];:,.=<>!&|+-*/%"

// StructuralTokens extracts the multiset of structural tokens from chunk
// content: keywords plus significant punctuation, with counts. Identifiers
// and literals are deliberately excluded so renamed-but-equivalent code still
// overlaps.
func StructuralTokens(content string) map[string]int {
	tokens := make(map[string]int)
	var word strings.Builder

	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		word.Reset()
		if structuralKeywords[w] {
			tokens[w]++
		}
	}

	for _, r := range content {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			word.WriteRune(r)
		case strings.ContainsRune(structuralPunct, r):
			flush()
			tokens[string(r)]++
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// TokenOverlap computes the multiset Jaccard ratio of structural tokens
// shared by two chunks to the union of tokens from both.
func TokenOverlap(a, b string) float64 {
	ta := StructuralTokens(a)
	tb := StructuralTokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}

	intersection, union := 0, 0
	for tok, ca := range ta {
		cb := tb[tok]
		if cb < ca {
			intersection += cb
			union += ca
		} else {
			intersection += ca
			union += cb
		}
	}
	for tok, cb := range tb {
		if _, seen := ta[tok]; !seen {
			union += cb
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
