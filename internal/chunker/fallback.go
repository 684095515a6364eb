package chunker

// braceBlocks scans lines for top-level brace-delimited blocks and returns
// them as block boundaries. It is the language-agnostic fallback for code the
// parser did not capture (large conditional bodies, unsupported syntax).
// Braces inside string literals and line comments are ignored; anything
// subtler than that is out of reach for a fallback scanner.
func braceBlocks(lines []string) []Boundary {
	var bounds []Boundary
	depth := 0
	blockStart := 0

	for i, line := range lines {
		opens, closes := countBraces(line)
		for ; opens > 0; opens-- {
			if depth == 0 {
				blockStart = i + 1 // 1-indexed
			}
			depth++
		}
		for ; closes > 0; closes-- {
			if depth == 0 {
				continue // unbalanced; skip stray closers
			}
			depth--
			if depth == 0 {
				bounds = append(bounds, Boundary{
					Kind:      KindBlock,
					StartLine: blockStart,
					EndLine:   i + 1,
				})
			}
		}
	}
	return bounds
}

// countBraces returns the number of { and } on a line, skipping string
// literals and the remainder of the line after // or #.
func countBraces(line string) (opens, closes int) {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '#':
			return opens, closes
		case '/':
			if i+1 < len(line) && line[i+1] == '/' {
				return opens, closes
			}
		case '{':
			opens++
		case '}':
			closes++
		}
	}
	return opens, closes
}
