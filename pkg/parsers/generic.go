package parsers

import "strings"

// GenericParser pulls one of each field out of the whole text. It is the
// fallback of last resort.
type GenericParser struct{}

func (GenericParser) Name() string { return "basic" }

func (GenericParser) Supports([]Line, string) bool { return true }

func (p GenericParser) Parse(lines []Line, rawText string) Expense {
	combined := strings.ReplaceAll(rawText, "\n", " ")

	amount, amountOK := ExtractAmount(combined)
	account, accountOK := ExtractAccount(combined)
	ts, tsOK := ExtractDatetime(combined)

	// Lines carrying a price are item rows, not the store name.
	candidates := make([]Line, 0, len(lines))
	for _, l := range lines {
		if _, ok := ExtractAmount(l.Text); !ok {
			candidates = append(candidates, l)
		}
	}
	merchant, merchantOK := LongestHangulLine(candidates)
	if !merchantOK {
		merchant, merchantOK = LongestHangulLine(lines)
	}

	return Expense{
		Source:    p.Name(),
		Merchant:  strPtr(merchant, merchantOK),
		Amount:    intPtr(amount, amountOK),
		Account:   strPtr(account, accountOK),
		Timestamp: strPtr(ts, tsOK),
	}
}
