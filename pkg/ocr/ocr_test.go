package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"spendocr/pkg/parsers"
)

// fakeRecognizer replays one canned result per call.
type fakeRecognizer struct {
	mu      sync.Mutex
	results [][]parsers.Line
	errs    []error
	calls   int
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Recognize(_ context.Context, _ image.Image) ([]parsers.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	var lines []parsers.Line
	var err error
	if i < len(f.results) {
		lines = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return lines, err
}

func blank() *image.NRGBA {
	return imaging.New(60, 40, color.NRGBA{255, 255, 255, 255})
}

func receiptLines(c float64) []parsers.Line {
	return []parsers.Line{
		{Text: "스 타 벅 스", Confidence: conf(c)},
		{Text: "2024-01-15 09:30:00", Confidence: conf(c)},
		{Text: "아메리카노 4,500원", Confidence: conf(c)},
	}
}

func TestPipelinePicksBestVariant(t *testing.T) {
	rec := &fakeRecognizer{results: [][]parsers.Line{
		receiptLines(0.5),
		receiptLines(0.9),
		{{Text: "x", Confidence: conf(0.99)}},
	}}
	p := NewPipeline(PipelineConfig{Local: rec})
	got := p.Process(context.Background(), blank())

	if got.Debug == nil || got.Debug.Engine != "fake" || got.Debug.Variant != VariantCLAHE {
		t.Fatalf("debug %+v", got.Debug)
	}
	if len(got.Debug.Variants) != 3 {
		t.Fatalf("expected 3 diagnostics, got %+v", got.Debug.Variants)
	}
	if got.Lines[0].Text != "스타벅스" {
		t.Fatalf("lines must be normalized, got %q", got.Lines[0].Text)
	}
	if got.RawText != "스타벅스\n2024-01-15 09:30:00\n아메리카노 4,500원" {
		t.Fatalf("raw text %q", got.RawText)
	}
	if got.Parsed.Merchant == nil || *got.Parsed.Merchant != "스타벅스" || *got.Parsed.Amount != 4500 {
		t.Fatalf("parsed %+v", got.Parsed)
	}
}

func TestPipelineAllVariantsFail(t *testing.T) {
	boom := errors.New("engine crashed")
	rec := &fakeRecognizer{errs: []error{boom, boom, boom}}
	got := NewPipeline(PipelineConfig{Local: rec}).Process(context.Background(), blank())

	if got.RawText != "" || got.Lines == nil || len(got.Lines) != 0 {
		t.Fatalf("expected empty payload, got %+v", got)
	}
	if got.Parsed.Merchant != nil || got.Parsed.Amount != nil || got.Parsed.Timestamp != nil {
		t.Fatalf("expected empty expense, got %+v", got.Parsed)
	}
	if got.Debug.Variant != "" || len(got.Debug.Variants) != 3 {
		t.Fatalf("debug %+v", got.Debug)
	}
	for _, d := range got.Debug.Variants {
		if d.Error != "engine crashed" {
			t.Fatalf("diagnostic %+v", d)
		}
	}
}

func TestSelectVariantReportsNoText(t *testing.T) {
	p := NewPipeline(PipelineConfig{Local: &fakeRecognizer{}})
	sel, err := p.SelectVariant(context.Background(), blank())
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
	if len(sel.Diagnostics) != 3 {
		t.Fatalf("diagnostics %+v", sel.Diagnostics)
	}
}

func TestParallelVariantsKeepOrder(t *testing.T) {
	same := receiptLines(0.8)
	rec := &fakeRecognizer{results: [][]parsers.Line{same, same, same}}
	p := NewPipeline(PipelineConfig{Local: rec, ParallelVariants: true})
	sel, err := p.SelectVariant(context.Background(), blank())
	if err != nil {
		t.Fatalf("SelectVariant: %v", err)
	}
	if sel.Variant != VariantOriginal {
		t.Fatalf("ties must keep the first variant, got %s", sel.Variant)
	}
	names := []string{VariantOriginal, VariantCLAHE, VariantAdaptive}
	for i, d := range sel.Diagnostics {
		if d.Variant != names[i] {
			t.Fatalf("diagnostic %d = %s want %s", i, d.Variant, names[i])
		}
	}
}

func TestRecognizerPanicIsContained(t *testing.T) {
	attempts := runVariants(context.Background(), panicRecognizer{}, GenerateVariants(blank()), true)
	for _, a := range attempts {
		if a.err == nil || !strings.Contains(a.err.Error(), "panic") {
			t.Fatalf("attempt %+v", a)
		}
	}
}

type panicRecognizer struct{}

func (panicRecognizer) Name() string { return "panic" }
func (panicRecognizer) Recognize(context.Context, image.Image) ([]parsers.Line, error) {
	panic("native crash")
}

func TestFromLinesEmptyInput(t *testing.T) {
	got := NewPipeline(PipelineConfig{Local: &fakeRecognizer{}}).FromLines(nil)
	if got.RawText != "" || got.Lines == nil || got.Debug != nil {
		t.Fatalf("payload %+v", got)
	}
	b, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"lines":[]`) || strings.Contains(string(b), `"debug"`) {
		t.Fatalf("json %s", b)
	}
}

func TestFromLinesUsesRegistry(t *testing.T) {
	reg, err := parsers.RegistryForMode("auto", parsers.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(PipelineConfig{Local: &fakeRecognizer{}, Registry: reg})
	got := p.FromLines([]parsers.Line{{Text: "[출금]스타벅스 강남점"}, {Text: "4,500원"}, {Text: "잔액"}, {Text: "123,456원"}})
	if got.Parsed.Source != "bank_alert" || *got.Parsed.Balance != 123456 {
		t.Fatalf("parsed %+v", got.Parsed)
	}
}

func TestFromLinesBankAlertMerchantIsNormalized(t *testing.T) {
	reg, err := parsers.RegistryForMode("auto", parsers.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(PipelineConfig{Local: &fakeRecognizer{}, Registry: reg})
	got := p.FromLines([]parsers.Line{{Text: "[출금]스타벅스 강남점"}, {Text: "4,500원"}, {Text: "잔액"}, {Text: "123,456원"}})

	// spaces between Hangul syllables are dropped before parsing
	if got.Lines[0].Text != "[출금]스타벅스강남점" {
		t.Fatalf("line %q", got.Lines[0].Text)
	}
	if got.Parsed.Merchant == nil || *got.Parsed.Merchant != "스타벅스강남점" {
		t.Fatalf("merchant %v", got.Parsed.Merchant)
	}
	if got.Parsed.Amount == nil || *got.Parsed.Amount != 4500 {
		t.Fatalf("amount %v", got.Parsed.Amount)
	}
}
