package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractBraced returns the substring from the first "{" to the last "}".
// ok is false when no such span exists.
func ExtractBraced(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// DecodeJSONObject decodes raw as a JSON object, first as-is and then from
// its braced span. It reports which attempt succeeded: "full" or "braced".
func DecodeJSONObject(raw string, target any) (string, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return "", fmt.Errorf("empty model output")
	}

	fullErr := json.Unmarshal([]byte(clean), target)
	if fullErr == nil {
		return "full", nil
	}

	braced, ok := ExtractBraced(clean)
	if !ok {
		return "", fmt.Errorf("failed to parse model output: %w", fullErr)
	}
	if err := json.Unmarshal([]byte(braced), target); err != nil {
		return "", fmt.Errorf("failed to parse braced model output: %w", err)
	}
	return "braced", nil
}
