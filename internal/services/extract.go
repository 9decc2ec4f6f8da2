package services

import (
	"errors"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object found in completion")

// ExtractJSONObject pulls the first JSON object out of free-form completion
// text. The body of a markdown fence is preferred when it holds a balanced
// object; otherwise the whole text is scanned, matching the first '{' to its
// closing '}' by nesting depth. Braces inside string literals (including
// escaped quotes) are not counted. Anything after the closing brace is
// returned as trailing so callers can log it.
func ExtractJSONObject(text string) (object string, trailing string, err error) {
	text = strings.TrimSpace(text)
	if body, ok := fencedBody(text); ok {
		if object, trailing, err = scanObject(body); err == nil {
			return object, trailing, nil
		}
	}
	return scanObject(text)
}

func scanObject(body string) (string, string, error) {
	start := strings.IndexByte(body, '{')
	if start < 0 {
		return "", "", errNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(body); i++ {
		c := body[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return body[start : i+1], strings.TrimSpace(body[i+1:]), nil
			}
		}
	}
	return "", "", errors.New("unbalanced braces in completion")
}

// fencedBody returns the contents of the first ```json (or bare ```) fence.
func fencedBody(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}

	rest := text[open+3:]
	// drop the info string (e.g. "json") up to the end of the line
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		if info := strings.TrimSpace(rest[:nl]); !strings.ContainsAny(info, "{}") {
			rest = rest[nl+1:]
		}
	} else {
		rest = strings.TrimPrefix(rest, "json")
	}

	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}
