package gateway

import "strings"

// Normalize prepares SQL text for pattern checks. Block comments, line
// comments and the contents of quoted string literals are removed so that
// keywords hidden inside them cannot produce false positives or negatives.
// The quotes themselves are kept; the original text is what gets executed.
func Normalize(sqlText string) string {
	var b strings.Builder
	b.Grow(len(sqlText))

	runes := []rune(sqlText)
	n := len(runes)

	for i := 0; i < n; i++ {
		c := runes[i]

		switch c {
		case '/':
			if i+1 < n && runes[i+1] == '*' {
				i = skipBlockComment(runes, i+2)
				b.WriteRune(' ')
				continue
			}
		case '-':
			if i+1 < n && runes[i+1] == '-' {
				i = skipLineComment(runes, i+2)
				b.WriteRune(' ')
				continue
			}
		case '#':
			i = skipLineComment(runes, i+1)
			b.WriteRune(' ')
			continue
		case '\'', '"':
			b.WriteRune(c)
			i = skipLiteral(runes, i+1, c)
			b.WriteRune(c)
			continue
		}

		b.WriteRune(c)
	}

	return b.String()
}

// skipBlockComment returns the index of the last rune of a block comment.
func skipBlockComment(runes []rune, i int) int {
	for ; i < len(runes); i++ {
		if runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/' {
			return i + 1
		}
	}
	return len(runes) - 1
}

// skipLineComment returns the index just before the terminating newline so
// the newline itself survives normalization.
func skipLineComment(runes []rune, i int) int {
	for ; i < len(runes); i++ {
		if runes[i] == '\n' {
			return i - 1
		}
	}
	return len(runes) - 1
}

// skipLiteral consumes a quoted literal body, honoring backslash escapes and
// quote doubling ('' inside a single-quoted literal), and returns the index
// of the closing quote.
func skipLiteral(runes []rune, i int, quote rune) int {
	for ; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			i++
		case quote:
			if i+1 < len(runes) && runes[i+1] == quote {
				i++
				continue
			}
			return i
		}
	}
	return len(runes) - 1
}
