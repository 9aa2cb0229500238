package validate

import "strings"

// lexIssue is a structural problem found by the lexical scan.
type lexIssue struct {
	line    int
	message string
}

// scanSource performs a lexical pass over python source: bracket balance,
// string termination, and block keywords missing their colon. It also
// returns the source with strings and comments blanked out so later
// pattern checks do not match inside literals.
func scanSource(code string) (stripped string, issues []lexIssue) {
	var out strings.Builder
	out.Grow(len(code))

	type bracket struct {
		ch   byte
		line int
	}
	var stack []bracket
	line := 1

	inString := false
	var quote byte
	triple := false
	stringLine := 0

	i := 0
	for i < len(code) {
		ch := code[i]

		if inString {
			if ch == '\n' {
				line++
				if !triple {
					issues = append(issues, lexIssue{line: stringLine, message: "unterminated string literal"})
					inString = false
					out.WriteByte('\n')
					i++
					continue
				}
				out.WriteByte('\n')
				i++
				continue
			}
			if ch == '\\' && i+1 < len(code) {
				// A backslash-newline continuation still ends a
				// physical line.
				if code[i+1] == '\n' {
					line++
					out.WriteString(" \n")
				} else {
					out.WriteString("  ")
				}
				i += 2
				continue
			}
			if ch == quote {
				if triple {
					if i+2 < len(code) && code[i+1] == quote && code[i+2] == quote {
						inString = false
						out.WriteString("   ")
						i += 3
						continue
					}
				} else {
					inString = false
					out.WriteByte(' ')
					i++
					continue
				}
			}
			out.WriteByte(' ')
			i++
			continue
		}

		switch ch {
		case '#':
			for i < len(code) && code[i] != '\n' {
				out.WriteByte(' ')
				i++
			}
			continue
		case '\'', '"':
			inString = true
			quote = ch
			stringLine = line
			if i+2 < len(code) && code[i+1] == ch && code[i+2] == ch {
				triple = true
				out.WriteString("   ")
				i += 3
			} else {
				triple = false
				out.WriteByte(' ')
				i++
			}
			continue
		case '(', '[', '{':
			stack = append(stack, bracket{ch: ch, line: line})
		case ')', ']', '}':
			if len(stack) == 0 {
				issues = append(issues, lexIssue{line: line, message: "unmatched closing bracket"})
			} else {
				open := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if !bracketsMatch(open.ch, ch) {
					issues = append(issues, lexIssue{line: open.line, message: "mismatched brackets"})
				}
			}
		case '\n':
			line++
		}
		out.WriteByte(ch)
		i++
	}

	if inString {
		issues = append(issues, lexIssue{line: stringLine, message: "unterminated string literal"})
	}
	for _, open := range stack {
		issues = append(issues, lexIssue{line: open.line, message: "unclosed bracket"})
	}

	stripped = out.String()
	issues = append(issues, scanBlockColons(stripped)...)
	return stripped, issues
}

func bracketsMatch(open, close byte) bool {
	switch open {
	case '(':
		return close == ')'
	case '[':
		return close == ']'
	case '{':
		return close == '}'
	}
	return false
}

// Block-introducing keywords that require a trailing colon when they
// start a statement.
var blockKeywords = []string{"if", "elif", "else", "for", "while", "try", "except", "finally", "def", "class", "with"}

func scanBlockColons(stripped string) []lexIssue {
	var issues []lexIssue
	// Join physical lines into logical statements: continuation inside
	// brackets or after a trailing backslash.
	depth := 0
	startLine := 0
	var logical strings.Builder
	flush := func() {
		defer logical.Reset()
		stmt := strings.TrimSpace(logical.String())
		if stmt == "" {
			return
		}
		word := stmt
		if i := strings.IndexFunc(stmt, func(r rune) bool {
			return !('a' <= r && r <= 'z')
		}); i >= 0 {
			word = stmt[:i]
		}
		if !isBlockKeyword(word) {
			return
		}
		if !strings.HasSuffix(stmt, ":") {
			issues = append(issues, lexIssue{line: startLine, message: "'" + word + "' statement is missing a colon"})
		}
	}
	for n, raw := range strings.Split(stripped, "\n") {
		if logical.Len() == 0 {
			startLine = n + 1
		}
		trimmed := strings.TrimRight(raw, " \t")
		continued := strings.HasSuffix(trimmed, "\\")
		logical.WriteString(strings.TrimSuffix(trimmed, "\\"))
		for i := 0; i < len(trimmed); i++ {
			switch trimmed[i] {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				if depth > 0 {
					depth--
				}
			}
		}
		if depth > 0 || continued {
			logical.WriteByte(' ')
			continue
		}
		flush()
	}
	flush()
	return issues
}

func isBlockKeyword(word string) bool {
	for _, kw := range blockKeywords {
		if word == kw {
			return true
		}
	}
	return false
}
