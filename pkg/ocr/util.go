package ocr

import (
	"strings"

	"spendocr/pkg/parsers"
)

// snippet returns a shortened version of text for logging.
func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// joinNonEmpty joins line texts with newlines, skipping blank ones.
func joinNonEmpty(lines []parsers.Line) string {
	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.Text) != "" {
			texts = append(texts, l.Text)
		}
	}
	return strings.Join(texts, "\n")
}
