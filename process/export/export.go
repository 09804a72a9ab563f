package export

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/xuri/excelize/v2"

	"spendocr/models"
	"spendocr/pkg/store"
)

const (
	expensesSheet = "Expenses"
	itemsSheet    = "Items"
)

// Summary is the month-bounded total printed by the export command.
type Summary struct {
	Records  int
	WithAmt  int
	Total    int64
	BySource map[string]int64
}

// MonthRange returns [start, end) for a "YYYY-MM" month in UTC.
func MonthRange(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM: %w", month, err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// Summarize totals the amounts of exps. Records without an amount are
// counted but contribute nothing.
func Summarize(exps []models.Expense) Summary {
	s := Summary{Records: len(exps), BySource: map[string]int64{}}
	for _, e := range exps {
		if e.Amount == nil {
			continue
		}
		s.WithAmt++
		s.Total += *e.Amount
		s.BySource[e.Source] += *e.Amount
	}
	return s
}

// WriteXLSX writes one row per expense to the Expenses sheet and one row per
// receipt item to the Items sheet.
func WriteXLSX(w io.Writer, exps []models.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", expensesSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return err
	}

	writeRow(f, expensesSheet, 1, "ID", "Created", "Source", "Merchant", "Amount", "Timestamp", "Engine", "File")
	writeRow(f, itemsSheet, 1, "Expense ID", "Merchant", "Item", "Quantity", "Unit Price", "Total Price")

	itemRow := 2
	for i, e := range exps {
		writeRow(f, expensesSheet, i+2,
			e.ID, e.CreatedAt.UTC().Format(time.RFC3339), e.Source,
			deref(e.Merchant), deref(e.Amount), deref(e.Timestamp), e.Engine, e.FileName)

		p, err := store.DecodePayload(e)
		if err != nil {
			log.Printf("export: skip items of %s: %v", e.ID, err)
			continue
		}
		for _, it := range p.Parsed.Items {
			writeRow(f, itemsSheet, itemRow,
				e.ID, deref(e.Merchant), it.Name, deref(it.Quantity), deref(it.UnitPrice), deref(it.TotalPrice))
			itemRow++
		}
	}

	_ = f.SetColWidth(expensesSheet, "A", "A", 38)
	_ = f.SetColWidth(expensesSheet, "B", "B", 22)
	_ = f.SetColWidth(expensesSheet, "D", "D", 28)
	_ = f.SetColWidth(expensesSheet, "F", "F", 20)
	_ = f.SetColWidth(expensesSheet, "H", "H", 40)
	_ = f.SetColWidth(itemsSheet, "A", "A", 38)
	_ = f.SetColWidth(itemsSheet, "B", "C", 28)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// deref turns a nil pointer into an empty cell.
func deref[T any](p *T) any {
	if p == nil {
		return ""
	}
	return *p
}
