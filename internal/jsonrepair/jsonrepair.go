// Package jsonrepair decodes JSON objects out of model completions that
// may wrap the payload in reasoning tags, markdown fences, or surrounding
// prose. Each repair step is applied in order and the first successful
// decode wins.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// StripThink removes a leading <think>...</think> reasoning block, keeping
// only the text after the closing tag. Text without the tag passes through
// unchanged.
func StripThink(raw string) string {
	const closing = "</think>"
	if !strings.Contains(raw, "<think>") {
		return raw
	}
	idx := strings.LastIndex(raw, closing)
	if idx < 0 {
		return raw
	}
	return raw[idx+len(closing):]
}

// StripFences removes a surrounding markdown code fence, with or without a
// language marker.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractObject returns the first {...} span in the text, or "" when none
// exists. The match is greedy, so prose before and after a complete object
// is discarded while nested objects survive.
func ExtractObject(raw string) string {
	return objectPattern.FindString(raw)
}

// DecodeObject parses a JSON object from a model completion, tolerating
// reasoning tags, code fences, and surrounding prose. It returns an error
// only when no object can be recovered at all.
func DecodeObject(raw string, v any) error {
	cleaned := StripFences(StripThink(raw))
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}
	if span := ExtractObject(cleaned); span != "" {
		if err := json.Unmarshal([]byte(span), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no JSON object found in %d bytes of output", len(raw))
}

// DecodeStringListMap decodes a completion shaped as {"topic": ["fact",
// ...]}. Scalar string values are promoted to single-element lists so a
// model answering {"name": "Alice"} still yields usable facts. Entries of
// any other shape are skipped.
func DecodeStringListMap(raw string) (map[string][]string, error) {
	var loose map[string]json.RawMessage
	if err := DecodeObject(raw, &loose); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(loose))
	for topic, val := range loose {
		var list []string
		if err := json.Unmarshal(val, &list); err == nil {
			out[topic] = list
			continue
		}
		var single string
		if err := json.Unmarshal(val, &single); err == nil {
			out[topic] = []string{single}
		}
	}
	return out, nil
}
