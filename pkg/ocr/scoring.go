package ocr

import (
	"math"
	"strings"
	"unicode/utf8"

	"spendocr/pkg/parsers"
)

const (
	charBonusCap    = 240
	charBonusWeight = 0.5
	lineBonusCap    = 20
	lineBonusWeight = 0.3
)

// VariantDiagnostic records how one variant fared.
type VariantDiagnostic struct {
	Variant           string  `json:"variant"`
	Score             float64 `json:"score"`
	Lines             int     `json:"lines"`
	AverageConfidence float64 `json:"average_confidence"`
	Error             string  `json:"error,omitempty"`
}

// Score rates a recognition result: mean line confidence plus bonuses for
// recognized characters (capped at 240) and non-empty lines (capped at 20).
// A result without confidences scores zero.
func Score(lines []parsers.Line) float64 {
	avg, ok := averageConfidence(lines)
	if !ok {
		return 0
	}
	chars, nonEmpty := 0, 0
	for _, l := range lines {
		chars += utf8.RuneCountInString(l.Text)
		if strings.TrimSpace(l.Text) != "" {
			nonEmpty++
		}
	}
	charBonus := float64(min(chars, charBonusCap)) / charBonusCap * charBonusWeight
	lineBonus := float64(min(nonEmpty, lineBonusCap)) / lineBonusCap * lineBonusWeight
	return avg + charBonus + lineBonus
}

func averageConfidence(lines []parsers.Line) (float64, bool) {
	var sum float64
	n := 0
	for _, l := range lines {
		if l.Confidence == nil {
			continue
		}
		sum += *l.Confidence
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// selectBest scores every attempt and returns the index of the winner, or -1
// when no attempt produced lines. Only a strictly higher score replaces the
// current best, so ties keep the earlier variant.
func selectBest(attempts []attempt) (int, []VariantDiagnostic) {
	diags := make([]VariantDiagnostic, 0, len(attempts))
	best, bestScore := -1, math.Inf(-1)
	for i, a := range attempts {
		if a.err != nil {
			diags = append(diags, VariantDiagnostic{Variant: a.variant, Error: a.err.Error()})
			continue
		}
		score := Score(a.lines)
		avg, _ := averageConfidence(a.lines)
		diags = append(diags, VariantDiagnostic{
			Variant:           a.variant,
			Score:             score,
			Lines:             len(a.lines),
			AverageConfidence: avg,
		})
		if score > bestScore && len(a.lines) > 0 {
			best, bestScore = i, score
		}
	}
	return best, diags
}
