// Package extract locates and parses a single JSON value embedded in
// arbitrary LLM output: fenced code blocks, surrounding commentary, or the
// bare value itself.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NotFoundError reports why no usable JSON value was found. It is a sentinel
// result, not a fault: callers fall back, they never re-panic.
type NotFoundError struct {
	Reason string
}

func (e *NotFoundError) Error() string {
	return "no JSON value found: " + e.Reason
}

// Value extracts the first well-formed JSON object or non-empty array from
// text. Fenced segments are tried first, then a bracket-depth scan from the
// first '{' or '[', then the whole trimmed text.
func Value(text string) (any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &NotFoundError{Reason: "empty input"}
	}

	for _, seg := range fencedSegments(trimmed) {
		if v, err := parseShaped(seg); err == nil {
			return v, nil
		}
	}

	var firstErr *NotFoundError
	if candidate, pos := scanBalanced(trimmed); candidate != "" {
		v, err := parseShaped(candidate)
		if err == nil {
			return v, nil
		}
		firstErr = err
		if firstErr.Reason == "malformed JSON" {
			firstErr = &NotFoundError{Reason: fmt.Sprintf("parse error at position %d", pos)}
		}
	}

	if v, err := parseShaped(trimmed); err == nil {
		return v, nil
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, &NotFoundError{Reason: "no object or array in input"}
}

// Object is Value restricted to a JSON object.
func Object(text string) (map[string]any, error) {
	v, err := Value(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &NotFoundError{Reason: "valid JSON but not an object"}
	}
	return obj, nil
}

// parseShaped parses s and accepts only an object or a non-empty array.
func parseShaped(s string) (any, *NotFoundError) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, &NotFoundError{Reason: "malformed JSON"}
	}
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case []any:
		if len(t) == 0 {
			return nil, &NotFoundError{Reason: "valid JSON but empty array"}
		}
		return t, nil
	default:
		return nil, &NotFoundError{Reason: "valid JSON but not an object or array"}
	}
}

// fencedSegments returns the bodies of ``` fenced blocks, with a leading
// language tag line stripped.
func fencedSegments(text string) []string {
	var segs []string
	rest := text
	for {
		start := strings.Index(rest, "```")
		if start < 0 {
			break
		}
		rest = rest[start+3:]
		end := strings.Index(rest, "```")
		if end < 0 {
			break
		}
		body := rest[:end]
		rest = rest[end+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			tag := strings.TrimSpace(body[:nl])
			if tag != "" && !strings.ContainsAny(tag, "{[") {
				body = body[nl+1:]
			}
		}
		body = strings.TrimSpace(body)
		if body != "" {
			segs = append(segs, body)
		}
	}
	return segs
}

// scanBalanced finds the first '{' or '[' and walks forward tracking nesting
// depth (string-literal aware) until it closes. Returns the candidate
// substring and the position scanning started at, or "" when no opener
// exists or the value never closes.
func scanBalanced(text string) (string, int) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", 0
	}
	open := text[start]
	var closer byte = '}'
	if open == '[' {
		closer = ']'
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
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1], start
			}
		}
	}
	return "", start
}
