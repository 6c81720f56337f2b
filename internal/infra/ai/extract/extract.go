// Package extract recovers the structured JSON payload a model embedded in
// free-form output: surrounding prose, fenced code blocks, or bare JSON.
package extract

import (
	"encoding/json"
	"strings"
)

// JSON returns the first JSON value found in content, checked in order:
// a ```json fenced block, any fenced block, the whole trimmed text, the
// first balanced {...} or [...] span, then line-by-line. Returns nil when
// content carries no parseable JSON; malformed input never produces an error.
func JSON(content string) json.RawMessage {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil
	}

	if inner, ok := fencedBlock(text, "```json"); ok {
		if raw := validJSON(inner); raw != nil {
			return raw
		}
	}
	if inner, ok := fencedBlock(text, "```"); ok {
		if raw := validJSON(inner); raw != nil {
			return raw
		}
	}
	if raw := validJSON(text); raw != nil {
		return raw
	}
	if span := balancedSpan(text); span != "" {
		if raw := validJSON(span); raw != nil {
			return raw
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if raw := validJSON(strings.TrimSpace(line)); raw != nil {
			return raw
		}
	}
	return nil
}

// Value parses the embedded JSON into a generic value. Returns nil when
// nothing could be extracted.
func Value(content string) any {
	raw := JSON(content)
	if raw == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// Into extracts the embedded JSON and unmarshals it into dst. Reports false
// when no JSON was found or it does not fit dst.
func Into(content string, dst any) bool {
	raw := JSON(content)
	if raw == nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func validJSON(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}

// fencedBlock returns the inner text of the first code fence opened by
// marker. The opening marker may be followed by a newline; the block closes
// at the next triple backtick.
func fencedBlock(text, marker string) (string, bool) {
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	inner := text[start+len(marker):]
	end := strings.Index(inner, "```")
	if end < 0 {
		return "", false
	}
	return inner[:end], true
}

// balancedSpan finds the first balanced {...} or [...] span via bracket
// matching, skipping over string literals and escapes. Returns "" when no
// balanced span exists.
func balancedSpan(text string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			start = i
			open = text[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
