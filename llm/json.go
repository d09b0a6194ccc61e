package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?\\s*```")

// ExtractJSON pulls a JSON object out of model response text.
//
// Attempts, in order:
//  1. parse the whole text
//  2. parse the contents of a markdown code fence (marker "json" or none)
//  3. parse the substring from the first '{' to the last '}'
//
// Returns a ResponseError carrying a truncated prefix of the raw text when
// every attempt fails. A direct parse always wins over fence extraction, so
// ExtractJSON(marshal(m)) round-trips for any JSON object m.
func ExtractJSON(text string) (map[string]any, error) {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return nil, newResponseError("empty model response", "")
	}

	if obj, ok := tryParse(stripped); ok {
		return obj, nil
	}

	if m := fenceRE.FindStringSubmatch(text); m != nil {
		if obj, ok := tryParse(strings.TrimSpace(m[1])); ok {
			return obj, nil
		}
	}

	first := strings.Index(stripped, "{")
	last := strings.LastIndex(stripped, "}")
	if first != -1 && last > first {
		if obj, ok := tryParse(stripped[first : last+1]); ok {
			return obj, nil
		}
	}

	return nil, newResponseError("failed to extract JSON from model response", text)
}

func tryParse(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
