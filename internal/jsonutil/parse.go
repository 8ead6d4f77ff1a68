// Package jsonutil parses JSON out of model responses, which are often
// wrapped in markdown fences or surrounded by prose.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a response contains no JSON object or array.
var ErrNoJSON = errors.New("no JSON content found")

// Extract returns the outermost JSON object or array in text. A leading
// ```json fence is ignored; whichever of { or [ appears first decides the
// closing delimiter, which is matched from the end.
func Extract(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closing := "}"
	if text[start] == '[' {
		closing = "]"
	}
	end := strings.LastIndex(text, closing)
	if end < start {
		return "", fmt.Errorf("no closing %s found", closing)
	}
	return text[start : end+1], nil
}

// ParseJSON extracts JSON from raw model output and unmarshals it into T.
func ParseJSON[T any](raw string) (T, error) {
	var result T
	jsonStr, err := Extract(raw)
	if err != nil {
		return result, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		preview := jsonStr
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return result, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}
