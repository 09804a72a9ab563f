package parsers

import (
	"math"
	"strings"
	"testing"
)

// boxed places text centered at (cx, cy) with a 40x16 box.
func boxed(text string, cx, cy float64) Line {
	return Line{
		Text: text,
		BBox: []Point{{cx - 20, cy - 8}, {cx + 20, cy - 8}, {cx + 20, cy + 8}, {cx - 20, cy + 8}},
	}
}

func rawTextOf(lines []Line) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

func sampleReceipt() []Line {
	return []Line{
		boxed("[매장명] 스타벅스", 100, 10),
		boxed("2024-01-15 09:30:00", 100, 40),
		// fragments of one row arrive out of order and slightly skewed
		boxed("금액", 400, 82),
		boxed("상품명", 50, 80),
		boxed("수량", 300, 79),
		boxed("단가", 200, 80),
		boxed("아메리카노", 50, 110),
		boxed("4,500", 200, 110),
		boxed("2", 300, 112),
		boxed("9,000", 400, 109),
		boxed("카페라떼", 50, 140),
		boxed("5,000", 200, 140),
		boxed("1", 300, 140),
		boxed("5,000", 400, 140),
		boxed("바닐라 크림", 50, 170),
		boxed("콜드브루", 50, 200),
		boxed("6,000", 200, 200),
		boxed("1", 300, 200),
		boxed("6,000", 400, 200),
		boxed("합계", 50, 240),
		boxed("20,000", 400, 240),
		boxed("결제금액", 50, 270),
		boxed("19,000", 400, 270),
	}
}

func TestClusterRowsOrdersFragments(t *testing.T) {
	rows := clusterRows(sampleReceipt(), 12)
	if len(rows) != 9 {
		t.Fatalf("expected 9 rows got %d", len(rows))
	}
	if rows[2].text != "상품명 단가 수량 금액" {
		t.Fatalf("header row %q", rows[2].text)
	}
	if rows[5].text != "바닐라크림" {
		t.Fatalf("wrapped row %q", rows[5].text)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].segments[0].cy < rows[i-1].segments[0].cy {
			t.Fatalf("rows out of order at %d", i)
		}
	}
}

func TestClusterRowsSkipsUnplacedLines(t *testing.T) {
	rows := clusterRows([]Line{{Text: "no box"}, boxed("  ", 10, 10), boxed("ok", 10, 40)}, 12)
	if len(rows) != 1 || rows[0].text != "ok" {
		t.Fatalf("rows %+v", rows)
	}
}

func TestReceiptParserTable(t *testing.T) {
	lines := sampleReceipt()
	got := NewReceiptParser(DefaultOptions()).Parse(lines, rawTextOf(lines))

	if got.Source != "receipt" {
		t.Fatalf("source %q", got.Source)
	}
	if got.Merchant == nil || *got.Merchant != "스타벅스" {
		t.Fatalf("merchant %v", got.Merchant)
	}
	if got.Timestamp == nil || *got.Timestamp != "2024-01-15 09:30:00" {
		t.Fatalf("timestamp %v", got.Timestamp)
	}

	want := []struct {
		name        string
		qty         float64
		unit, total int64
	}{
		{"아메리카노", 2, 4500, 9000},
		{"카페라떼", 1, 5000, 5000},
		{"바닐라크림 콜드브루", 1, 6000, 6000},
	}
	if len(got.Items) != len(want) {
		t.Fatalf("expected %d items got %+v", len(want), got.Items)
	}
	for i, w := range want {
		it := got.Items[i]
		if it.Name != w.name || *it.Quantity != w.qty || *it.UnitPrice != w.unit || *it.TotalPrice != w.total {
			t.Errorf("item %d = {%s %v %d %d}, want %+v", i, it.Name, *it.Quantity, *it.UnitPrice, *it.TotalPrice, w)
		}
	}

	if got.Totals == nil {
		t.Fatalf("missing totals")
	}
	if *got.Totals.Subtotal != 20000 || *got.Totals.Total != 19000 || *got.Totals.Discount != 1000 {
		t.Fatalf("totals %d/%d/%d", *got.Totals.Subtotal, *got.Totals.Total, *got.Totals.Discount)
	}
	if got.Amount == nil || *got.Amount != 19000 {
		t.Fatalf("amount %v", got.Amount)
	}
}

func TestReceiptItemsNeverLackBothPrices(t *testing.T) {
	lines := []Line{
		boxed("품명", 50, 10),
		boxed("김밥", 50, 40), boxed("3개", 150, 40), boxed("9,000원", 300, 40),
		boxed("라면", 50, 70), boxed("4,000", 300, 70),
		boxed("메모", 50, 100), boxed("없음", 150, 100),
		boxed("880123456789", 50, 130), boxed("생수", 150, 130), boxed("1,000원", 300, 130),
		boxed("세", 50, 160),
	}
	got := NewReceiptParser(DefaultOptions()).Parse(lines, rawTextOf(lines))

	if len(got.Items) != 3 {
		t.Fatalf("expected 3 items got %+v", got.Items)
	}
	for _, it := range got.Items {
		if it.UnitPrice == nil && it.TotalPrice == nil {
			t.Fatalf("item %q has no price", it.Name)
		}
		if it.Quantity == nil {
			t.Fatalf("item %q has no quantity", it.Name)
		}
		// without column anchors the same token feeds both prices; either the
		// relation holds or the total was read directly
		if it.UnitPrice != nil && it.TotalPrice != nil {
			derived := int64(math.Round(float64(*it.UnitPrice) * *it.Quantity))
			if derived != *it.TotalPrice && *it.TotalPrice != *it.UnitPrice {
				t.Fatalf("item %q inconsistent prices %+v", it.Name, it)
			}
		}
	}
	if got.Items[0].Name != "김밥" || *got.Items[0].Quantity != 3 {
		t.Fatalf("first item %+v", got.Items[0])
	}
	if got.Items[2].Name != "메모 없음 880123456789 생수" {
		t.Fatalf("barcode row should join the pending name, got %q", got.Items[2].Name)
	}
	if got.Totals.Discount != nil && *got.Totals.Discount < 0 {
		t.Fatalf("negative discount")
	}
}

func TestReceiptStopwordItemsDropped(t *testing.T) {
	segs := []segment{{text: "부가세", cx: 50}, {text: "1,000", cx: 400}}
	if _, ok := NewReceiptParser(DefaultOptions()).parseItem(segs, nil); ok {
		t.Fatalf("tax label must not become an item")
	}
}

func TestReceiptTotalsFallBackToSubtotal(t *testing.T) {
	ten := int64(10000)
	items := []ReceiptItem{{Name: "a", TotalPrice: &ten}}
	rows := []row{{text: "감사합니다 500"}, {text: "전화 99,999"}}
	got := extractTotals(rows, items)
	if *got.Total != 10000 || *got.Subtotal != 10000 || got.Discount != nil {
		t.Fatalf("totals %+v", got)
	}
}

func TestReceiptThresholdsAreTunable(t *testing.T) {
	lines := []Line{boxed("a", 10, 10), boxed("b", 60, 30)}
	if rows := clusterRows(lines, 12); len(rows) != 2 {
		t.Fatalf("default threshold should split, got %d rows", len(rows))
	}
	if rows := clusterRows(lines, 25); len(rows) != 1 {
		t.Fatalf("wider threshold should merge, got %d rows", len(rows))
	}
}
