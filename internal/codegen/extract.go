package codegen

import (
	"errors"
	"strings"
)

// ErrNoCodeBlock is returned when no python code block can be recovered
// from a model response.
var ErrNoCodeBlock = errors.New("response contains no code block")

// ExtractCodeBlock pulls the first fenced code block out of a model
// response. A ```python fence is preferred; a bare ``` fence is
// accepted. Surrounding prose is discarded.
func ExtractCodeBlock(text string) (string, error) {
	for _, marker := range []string{"```python", "```py", "```"} {
		start := strings.Index(text, marker)
		if start < 0 {
			continue
		}
		rest := text[start+len(marker):]
		// Drop the remainder of the fence line. Info strings such as
		// ```python title=demo are not code; a bare fence with trailing
		// text is not a fence at all.
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			if marker == "```" && strings.TrimSpace(rest[:i]) != "" {
				continue
			}
			rest = rest[i+1:]
		} else if marker == "```" {
			continue
		}
		end := strings.Index(rest, "```")
		if end < 0 {
			end = len(rest)
		}
		code := strings.Trim(rest[:end], "\n")
		if strings.TrimSpace(code) == "" {
			continue
		}
		return code, nil
	}
	return "", ErrNoCodeBlock
}
