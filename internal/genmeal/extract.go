package genmeal

// ExtractJSON returns the first syntactically balanced JSON object or
// array found inside free text. The scan tracks brace/bracket depth and
// is string- and escape-aware, so delimiters inside quoted values do not
// affect the depth. Candidate openings that never balance (e.g. a stray
// "{" in prose) are skipped and the scan resumes at the next opening.
func ExtractJSON(text string) (string, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' && text[start] != '[' {
			continue
		}
		if segment, ok := scanBalanced(text, start); ok {
			return segment, true
		}
	}
	return "", false
}

func scanBalanced(text string, start int) (string, bool) {
	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
