package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports that no extraction strategy produced valid JSON.
type ParseError struct {
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("json extraction failed: %s", e.Snippet)
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON decodes model output that may be wrapped in markdown fences,
// leading prose, or trailing commentary. Strategies in order: direct decode,
// fenced code block, slice from first { to last }, slice from first [ to
// last ]. Failing all of them returns a *ParseError. Callers must keep a
// safe fallback value rather than letting extraction failure abort an
// iteration.
func ExtractJSON(text string, v any) error {
	trimmed := strings.TrimSpace(text)

	if json.Unmarshal([]byte(trimmed), v) == nil {
		return nil
	}

	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		if json.Unmarshal([]byte(strings.TrimSpace(m[1])), v) == nil {
			return nil
		}
	}

	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start != -1 && end > start {
		if json.Unmarshal([]byte(trimmed[start:end+1]), v) == nil {
			return nil
		}
	}

	if start, end := strings.Index(trimmed, "["), strings.LastIndex(trimmed, "]"); start != -1 && end > start {
		if json.Unmarshal([]byte(trimmed[start:end+1]), v) == nil {
			return nil
		}
	}

	snippet := trimmed
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return &ParseError{Snippet: snippet}
}
