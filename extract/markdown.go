package extract

import (
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
)

var promptPolicy = buildPromptPolicy()

// buildPromptPolicy keeps the structure the extraction model needs (links,
// headings, lists) and strips everything else.
func buildPromptPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("href").OnElements("a")
	return p
}

// promptText converts a reduced HTML fragment into the markdown the
// extraction prompt consumes. Markdown is a fraction of the HTML's size, so
// the char cap usually only bites on pathological pages. Reports whether
// truncation happened.
func promptText(src string, maxChars int) (string, bool, error) {
	clean := promptPolicy.Sanitize(src)
	md, err := htmltomarkdown.ConvertString(clean)
	if err != nil {
		return "", false, fmt.Errorf("extract: markdown conversion: %w", err)
	}
	if maxChars > 0 && len(md) > maxChars {
		return md[:maxChars], true, nil
	}
	return md, false, nil
}
