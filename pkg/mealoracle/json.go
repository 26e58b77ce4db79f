package mealoracle

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// reasoningPattern matches a leading <think>...</think> block emitted by reasoning models.
var reasoningPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

var errNoJSONObject = errors.New("no JSON object in response")

// extractObject returns the first balanced JSON object in a chat reply. Replies may wrap
// the object in markdown fences or prose.
func extractObject(reply string) (string, error) {
	reply = reasoningPattern.ReplaceAllString(reply, "")

	for start := strings.IndexByte(reply, '{'); start >= 0; {
		if obj, ok := balancedObject(reply[start:]); ok && json.Valid([]byte(obj)) {
			return obj, nil
		}
		next := strings.IndexByte(reply[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	if trimmed := strings.TrimSpace(reply); json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	return "", errNoJSONObject
}

// balancedObject scans s, which starts with '{', up to the matching '}' while
// ignoring braces inside string literals.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
