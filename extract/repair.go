package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRe         = regexp.MustCompile("(?i)^```(?:json)?\\s*|\\s*```$")
	ctrlRe          = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[\]\}])`)
)

var smartQuotes = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"«", `"`, "»", `"`,
)

// SanitizeJSONText applies best-effort cleanups for the ways models mangle
// JSON: markdown code fences, smart quotes, control characters, trailing
// commas.
func SanitizeJSONText(text string) string {
	t := strings.TrimSpace(text)
	t = fenceRe.ReplaceAllString(t, "")
	t = smartQuotes.Replace(t)
	t = ctrlRe.ReplaceAllString(t, "")
	t = trailingCommaRe.ReplaceAllString(t, "$1")
	return strings.TrimSpace(t)
}

// ParseJSONRobust parses model output into v with escalating fallbacks:
// strict parse, sanitize, then slice from the first '{' to the last '}'
// (models wrap JSON in prose or truncate trailing garbage).
func ParseJSONRobust(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	cleaned := SanitizeJSONText(text)
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		sliced := cleaned[start : end+1]
		if err := json.Unmarshal([]byte(sliced), v); err == nil {
			return nil
		}
		// Trailing commas may only surface after slicing.
		sliced = trailingCommaRe.ReplaceAllString(sliced, "$1")
		if err := json.Unmarshal([]byte(sliced), v); err == nil {
			return nil
		}
	}

	preview := text
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return fmt.Errorf("extract: unparseable JSON after all fallback strategies: %q", preview)
}
