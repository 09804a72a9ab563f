package ocr

import "spendocr/pkg/parsers"

// Debug describes how a payload was produced.
type Debug struct {
	Engine      string              `json:"engine"`
	Variant     string              `json:"variant,omitempty"`
	Variants    []VariantDiagnostic `json:"variants,omitempty"`
	ClovaErrors []string            `json:"clova_errors,omitempty"`
	InferResult []string            `json:"infer_result,omitempty"`
}

// Payload is what the service returns and stores for one document.
type Payload struct {
	RawText string          `json:"raw_text"`
	Lines   []parsers.Line  `json:"lines"`
	Parsed  parsers.Expense `json:"parsed"`
	Debug   *Debug          `json:"debug,omitempty"`
}

// Assemble normalizes line texts, joins them into the raw text and runs the
// registry. Lines is never nil.
func Assemble(reg *parsers.Registry, lines []parsers.Line, debug *Debug) Payload {
	normalized := make([]parsers.Line, 0, len(lines))
	for _, l := range lines {
		l.Text = parsers.Normalize(l.Text)
		normalized = append(normalized, l)
	}
	raw := joinNonEmpty(normalized)
	return Payload{
		RawText: raw,
		Lines:   normalized,
		Parsed:  reg.Parse(normalized, raw),
		Debug:   debug,
	}
}
