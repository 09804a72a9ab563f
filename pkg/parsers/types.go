package parsers

// Point is one polygon vertex in image pixel coordinates.
type Point [2]float64

// Line is one recognized text unit. Confidence and BBox are optional.
type Line struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	BBox       []Point  `json:"bbox"`
}

// Center returns the centroid of the bounding polygon.
func (l Line) Center() (x, y float64, ok bool) {
	if len(l.BBox) == 0 {
		return 0, 0, false
	}
	for _, p := range l.BBox {
		x += p[0]
		y += p[1]
	}
	n := float64(len(l.BBox))
	return x / n, y / n, true
}

// ReceiptItem is one line of a receipt's item table.
type ReceiptItem struct {
	Name       string   `json:"name"`
	Quantity   *float64 `json:"quantity"`
	UnitPrice  *int64   `json:"unit_price"`
	TotalPrice *int64   `json:"total_price"`
}

// Totals summarises a receipt's item table.
type Totals struct {
	Total    *int64 `json:"total"`
	Subtotal *int64 `json:"subtotal"`
	Discount *int64 `json:"discount"`
}

// Expense is the structured result every parser produces.
type Expense struct {
	Source    string  `json:"source"`
	Merchant  *string `json:"merchant"`
	Amount    *int64  `json:"amount"`
	Account   *string `json:"account"`
	Timestamp *string `json:"timestamp"`
	Balance   *int64  `json:"balance"`

	Items  []ReceiptItem `json:"items,omitempty"`
	Totals *Totals       `json:"totals,omitempty"`
}

func strPtr(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}

func intPtr(v int64, ok bool) *int64 {
	if !ok {
		return nil
	}
	return &v
}
