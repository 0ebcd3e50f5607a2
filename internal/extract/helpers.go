package extract

import (
	"strings"
	"unicode"
)

// lines splits text preserving 1-based line numbering.
func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

// balancedDelimiters reports whether braces, brackets, and parentheses
// balance across the file, skipping string literals and line comments. It is
// the cheap syntax sanity check shared by the curly-brace extractors.
func balancedDelimiters(text, lineComment string) bool {
	depth := map[byte]int{'{': 0, '(': 0, '[': 0}
	var inString byte
	for _, line := range splitLines(text) {
		inString = 0
		for i := 0; i < len(line); i++ {
			ch := line[i]
			if inString != 0 {
				if ch == '\\' {
					i++
				} else if ch == inString {
					inString = 0
				}
				continue
			}
			switch ch {
			case '"', '\'', '`':
				inString = ch
			case '{':
				depth['{']++
			case '}':
				depth['{']--
			case '(':
				depth['(']++
			case ')':
				depth['(']--
			case '[':
				depth['[']++
			case ']':
				depth['[']--
			default:
				if lineComment != "" && strings.HasPrefix(line[i:], lineComment) {
					i = len(line)
				}
			}
			if depth['{'] < 0 || depth['('] < 0 || depth['['] < 0 {
				return false
			}
		}
	}
	return depth['{'] == 0 && depth['('] == 0 && depth['['] == 0
}

// exportedName reports Go-style export (leading upper-case rune).
func exportedName(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

// publicPyName reports Python-convention visibility (no leading underscore).
func publicPyName(name string) bool {
	return !strings.HasPrefix(name, "_")
}

// normalizeVerb upper-cases an HTTP verb token.
func normalizeVerb(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
