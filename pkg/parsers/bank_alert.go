package parsers

import (
	"regexp"
	"strings"
)

const balanceKeyword = "잔액"

var (
	bankAlertKeywords = []string{"입금", "출금", "잔액", "계좌", "WON"}
	transferMarkers   = []string{"[출금]", "[입금]"}

	merchantNoiseRE = regexp.MustCompile(`\d|[*·.,]`)
	bracketMarkerRE = regexp.MustCompile(`\[(?:출금|입금)\]`)
)

// BankAlertParser reads Korean bank push-notification screenshots.
type BankAlertParser struct{}

func (BankAlertParser) Name() string { return "bank_alert" }

func (BankAlertParser) Supports(_ []Line, rawText string) bool {
	return containsAny(strings.ReplaceAll(rawText, "\n", " "), bankAlertKeywords...)
}

func (p BankAlertParser) Parse(lines []Line, _ string) Expense {
	out := Expense{Source: p.Name()}
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}

	merchantDecided := false
	for i, text := range texts {
		if out.Amount == nil {
			out.Amount = intPtr(ExtractAmount(text))
		}
		if out.Account == nil {
			out.Account = strPtr(ExtractAccount(text))
		}
		if out.Timestamp == nil {
			out.Timestamp = strPtr(ExtractDatetime(text))
		}
		// the balance figure is printed on the row below its label
		if out.Balance == nil && strings.Contains(text, balanceKeyword) && i+1 < len(texts) {
			out.Balance = intPtr(ExtractAmount(texts[i+1]))
		}
		if !merchantDecided && containsAny(text, transferMarkers...) && i+1 < len(texts) {
			if m := cleanMerchant(texts[i+1]); m != "" {
				out.Merchant = &m
				merchantDecided = true
			}
		}
	}

	combined := strings.Join(texts, " ")
	if out.Timestamp == nil {
		out.Timestamp = strPtr(ExtractDatetime(combined))
	}
	if out.Balance == nil {
		if idx := strings.LastIndex(combined, balanceKeyword); idx >= 0 {
			out.Balance = intPtr(ExtractAmount(combined[idx+len(balanceKeyword):]))
		}
	}
	if out.Merchant == nil {
		out.Merchant = fallbackMerchant(texts)
	}
	return out
}

// cleanMerchant strips digits, masking and punctuation symbols and the
// currency unit from a merchant candidate.
func cleanMerchant(text string) string {
	text = merchantNoiseRE.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, currencyUnit, "")
	return collapseSpaces(text)
}

// fallbackMerchant picks the first Hangul line that is not an amount line.
func fallbackMerchant(texts []string) *string {
	for _, text := range texts {
		if !hasHangul(text) {
			continue
		}
		if _, ok := ExtractAmount(text); ok {
			continue
		}
		cleaned := collapseSpaces(merchantNoiseRE.ReplaceAllString(bracketMarkerRE.ReplaceAllString(text, " "), ""))
		if cleaned != "" {
			return &cleaned
		}
	}
	return nil
}
