package parsers

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const headerScanRows = 10

var (
	merchantCues       = []string{"매장", "카페", "커피", "점"}
	itemHeaderKeywords = []string{"상품", "품명", "내역"}
	terminatorKeywords = []string{"합계", "부가세", "총", "세액", "거래", "할인", "금액", "부가"}
	columnLabels       = map[string]bool{"상품명": true, "단가": true, "수량": true, "금액": true}

	// single-syllable labels only count as stopwords when they are the whole name
	labelStopwords  = map[string]bool{"액": true, "금": true, "합": true, "세": true}
	phraseStopwords = []string{"합계", "금액", "할인내역", "부가세"}

	hangulRunRE = regexp.MustCompile(`[가-힣]{2,}`)
)

type column int

const (
	colNone column = iota
	colUnit
	colQuantity
	colTotal
)

type anchor struct {
	col column
	x   float64
}

// ReceiptParser reconstructs item tables from retail receipts using the
// position of each fragment.
type ReceiptParser struct {
	opts Options
}

// NewReceiptParser returns a parser using opts; zero thresholds take defaults.
func NewReceiptParser(opts Options) ReceiptParser {
	def := DefaultOptions()
	if opts.RowMergePx <= 0 {
		opts.RowMergePx = def.RowMergePx
	}
	if opts.ColumnMatchPx <= 0 {
		opts.ColumnMatchPx = def.ColumnMatchPx
	}
	return ReceiptParser{opts: opts}
}

func (ReceiptParser) Name() string { return "receipt" }

func (ReceiptParser) Supports(_ []Line, rawText string) bool {
	return containsAny(strings.ReplaceAll(rawText, "\n", " "), "영수증", "매장")
}

func (p ReceiptParser) Parse(lines []Line, rawText string) Expense {
	rows := clusterRows(lines, p.opts.RowMergePx)
	merchant, ts := extractHeader(rows, rawText)
	items := p.extractItems(rows)
	totals := extractTotals(rows, items)

	return Expense{
		Source:    p.Name(),
		Merchant:  merchant,
		Timestamp: ts,
		Amount:    totals.Total,
		Items:     items,
		Totals:    &totals,
	}
}

func extractHeader(rows []row, rawText string) (merchant, ts *string) {
	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for _, r := range rows[:limit] {
		for _, s := range r.segments {
			condensed := strings.ReplaceAll(s.text, " ", "")
			if merchant == nil && containsAny(condensed, merchantCues...) {
				if v := cleanLabeledValue(s.text); v != "" {
					merchant = &v
				}
			}
			if ts == nil {
				ts = strPtr(ExtractDatetime(condensed))
			}
		}
	}
	if merchant == nil {
		merchant = guessMerchant(rawText)
	}
	return merchant, ts
}

// guessMerchant returns the first of the top five raw lines holding a
// Hangul word.
func guessMerchant(rawText string) *string {
	lines := strings.Split(rawText, "\n")
	if len(lines) > 5 {
		lines = lines[:5]
	}
	for _, l := range lines {
		cleaned := Normalize(l)
		if cleaned != "" && hangulRunRE.MatchString(cleaned) {
			return &cleaned
		}
	}
	return nil
}

// cleanLabeledValue drops a leading "[label]" or "label:" prefix.
func cleanLabeledValue(text string) string {
	if i := strings.Index(text, "]"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	if i := strings.Index(text, ":"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return strings.TrimSpace(text)
}

func (p ReceiptParser) extractItems(rows []row) []ReceiptItem {
	headerIdx := -1
	for i, r := range rows {
		if containsAny(strings.ReplaceAll(r.text, " ", ""), itemHeaderKeywords...) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	end := headerIdx + 2
	if end > len(rows) {
		end = len(rows)
	}
	anchors := locateColumns(rows[:end])

	var items []ReceiptItem
	var buf []segment
	for _, r := range rows[headerIdx+1:] {
		if r.text == "" {
			continue
		}
		if isTerminator(r.text) {
			break
		}
		for _, s := range r.segments {
			if columnLabels[s.text] {
				continue
			}
			buf = append(buf, s)
		}
		if item, ok := p.parseItem(buf, anchors); ok && item.UnitPrice != nil && item.TotalPrice != nil {
			items = append(items, item)
			buf = nil
		}
	}
	if len(buf) > 0 {
		if item, ok := p.parseItem(buf, anchors); ok {
			items = append(items, item)
		}
	}
	return items
}

func isTerminator(text string) bool {
	t := strings.TrimSpace(text)
	return containsAny(t, terminatorKeywords...) || t == "액" || t == "세"
}

// locateColumns records the x position of the first unit-price, quantity and
// amount header labels.
func locateColumns(rows []row) []anchor {
	var anchors []anchor
	seen := map[column]bool{}
	add := func(c column, x float64) {
		anchors = append(anchors, anchor{col: c, x: x})
		seen[c] = true
	}
	for _, r := range rows {
		for _, s := range r.segments {
			switch {
			case strings.Contains(s.text, "단가") && !seen[colUnit]:
				add(colUnit, s.cx)
			case strings.Contains(s.text, "수량") && !seen[colQuantity]:
				add(colQuantity, s.cx)
			case containsAny(s.text, "금액", "합계", "총금액") && !seen[colTotal]:
				add(colTotal, s.cx)
			}
		}
	}
	return anchors
}

func (p ReceiptParser) assignColumn(s segment, anchors []anchor) column {
	best, bestDist := colNone, math.Inf(1)
	for _, a := range anchors {
		if d := math.Abs(s.cx - a.x); d < bestDist {
			best, bestDist = a.col, d
		}
	}
	if bestDist <= p.opts.ColumnMatchPx {
		return best
	}
	return colNone
}

// parseItem classifies buffered fragments into name, quantity and price
// tokens and resolves them into an item.
func (p ReceiptParser) parseItem(segs []segment, anchors []anchor) (ReceiptItem, bool) {
	if len(segs) < 2 {
		return ReceiptItem{}, false
	}

	var names, quantities, units, totals, prices []string
	for _, s := range segs {
		text := s.text
		digits := onlyDigits(text)
		if digits == "" {
			names = append(names, text)
			continue
		}
		// barcodes and product codes
		if digits == text && text[0] == '0' && len(text) >= 5 {
			names = append(names, text)
			continue
		}
		short := len(digits) <= 3
		switch p.assignColumn(s, anchors) {
		case colQuantity:
			if short && !strings.ContainsAny(text, ".,") {
				quantities = append(quantities, text)
			} else {
				units = append(units, text)
			}
		case colUnit:
			units = append(units, text)
		case colTotal:
			if short && !strings.Contains(text, ".") {
				quantities = append(quantities, text)
			} else {
				totals = append(totals, text)
			}
		default:
			switch {
			case strings.ContainsAny(text, ",.") || strings.Contains(text, currencyUnit):
				prices = append(prices, text)
			case short:
				quantities = append(quantities, text)
			default:
				names = append(names, text)
			}
		}
	}

	name := strings.TrimSpace(strings.Join(names, " "))
	if name == "" || isStopword(name) {
		return ReceiptItem{}, false
	}

	unit, unitOK := maxAmount(append(units, prices...))
	total, totalOK := maxAmount(append(totals, prices...))
	if !unitOK && !totalOK {
		return ReceiptItem{}, false
	}

	qty, ok := deriveQuantity(quantities)
	if !ok {
		qty = 1
	}
	if !unitOK {
		unit, unitOK = int64(math.Round(float64(total)/qty)), true
	}
	if !totalOK {
		total, totalOK = int64(math.Round(float64(unit)*qty)), true
	}
	return ReceiptItem{
		Name:       name,
		Quantity:   &qty,
		UnitPrice:  intPtr(unit, unitOK),
		TotalPrice: intPtr(total, totalOK),
	}, true
}

func isStopword(name string) bool {
	if labelStopwords[strings.ReplaceAll(name, " ", "")] {
		return true
	}
	return containsAny(name, phraseStopwords...)
}

// deriveQuantity returns the first token that parses as a count in (0, 100].
func deriveQuantity(tokens []string) (float64, bool) {
	for _, tok := range tokens {
		cleaned := strings.TrimSpace(strings.ReplaceAll(tok, "개", ""))
		if strings.ContainsAny(cleaned, ".,") {
			continue
		}
		v, err := strconv.Atoi(cleaned)
		if err != nil {
			continue
		}
		if v > 0 && v <= 100 {
			return float64(v), true
		}
	}
	return 0, false
}

// maxAmount returns the largest nonzero integer among the tokens' digits.
func maxAmount(tokens []string) (int64, bool) {
	var best int64
	found := false
	for _, tok := range tokens {
		digits := onlyDigits(tok)
		if digits == "" {
			continue
		}
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || v == 0 {
			continue
		}
		if !found || v > best {
			best, found = v, true
		}
	}
	return best, found
}

// extractTotals sums item totals and looks bottom-up for a printed grand
// total no larger than that sum.
func extractTotals(rows []row, items []ReceiptItem) Totals {
	var subtotal int64
	for _, it := range items {
		if it.TotalPrice != nil {
			subtotal += *it.TotalPrice
		}
	}

	var total int64
	for i := len(rows) - 1; i >= 0; i-- {
		c, ok := LastNumber(rows[i].text)
		if !ok || c < 1000 {
			continue
		}
		if subtotal > 0 && c <= subtotal {
			total = c
			break
		}
	}
	if total == 0 {
		total = subtotal
	}

	var out Totals
	out.Subtotal = intPtr(subtotal, subtotal > 0)
	out.Total = intPtr(total, total > 0)
	if subtotal > 0 && total > 0 && total < subtotal {
		out.Discount = intPtr(subtotal-total, true)
	}
	return out
}
