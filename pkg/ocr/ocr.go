package ocr

import (
	"context"
	"fmt"
	"image"
	"log"

	"spendocr/pkg/parsers"
)

// Recognizer turns an image into recognized lines with optional confidence
// and bounding polygon.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) ([]parsers.Line, error)
}

// Selection is the outcome of running every image variant.
type Selection struct {
	Variant     string
	Score       float64
	Lines       []parsers.Line
	Diagnostics []VariantDiagnostic
}

// PipelineConfig wires a Pipeline. Remote may be nil.
type PipelineConfig struct {
	Local    Recognizer
	Remote   *ClovaClient
	Registry *parsers.Registry
	// ParallelVariants recognizes the variants concurrently.
	ParallelVariants bool
}

// Pipeline is the OCR front door: image in, payload out.
type Pipeline struct {
	local    Recognizer
	remote   *ClovaClient
	registry *parsers.Registry
	parallel bool
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	reg := cfg.Registry
	if reg == nil {
		reg = parsers.NewRegistry(parsers.DefaultOptions())
	}
	return &Pipeline{local: cfg.Local, remote: cfg.Remote, registry: reg, parallel: cfg.ParallelVariants}
}

// Process recognizes img and assembles a payload. The remote provider is
// tried first when configured; any failure there is recorded and the local
// variant vote runs instead. Recognition failures never surface as errors:
// the worst case is an empty payload with diagnostics.
func (p *Pipeline) Process(ctx context.Context, img image.Image) Payload {
	var clovaErrors []string
	if p.remote.Available() {
		res, err := p.remote.Do(ctx, img)
		if err == nil {
			return Assemble(p.registry, res.Lines, &Debug{Engine: p.remote.Name(), InferResult: res.InferResult})
		}
		log.Printf("OCR clova failed, falling back to %s: %v", p.local.Name(), err)
		clovaErrors = append(clovaErrors, err.Error())
	}

	sel, err := p.SelectVariant(ctx, img)
	if err != nil {
		log.Printf("OCR no usable variant: %v", err)
	}
	debug := &Debug{
		Engine:      p.local.Name(),
		Variant:     sel.Variant,
		Variants:    sel.Diagnostics,
		ClovaErrors: clovaErrors,
	}
	return Assemble(p.registry, sel.Lines, debug)
}

// SelectVariant runs the local recognizer on every image variant and keeps
// the best-scoring non-empty result. ErrNoText is returned, alongside the
// diagnostics, when no variant produced lines.
func (p *Pipeline) SelectVariant(ctx context.Context, img image.Image) (Selection, error) {
	attempts := runVariants(ctx, p.local, GenerateVariants(img), p.parallel)
	best, diags := selectBest(attempts)
	for _, d := range diags {
		if d.Error == "" {
			log.Printf("OCR variant=%s score=%.3f lines=%d avg_conf=%.3f", d.Variant, d.Score, d.Lines, d.AverageConfidence)
		}
	}
	if best < 0 {
		return Selection{Diagnostics: diags}, fmt.Errorf("%d variants tried: %w", len(attempts), ErrNoText)
	}
	win := attempts[best]
	log.Printf("OCR chosen variant=%s snippet=%q", win.variant, snippet(joinNonEmpty(win.lines), 120))
	return Selection{
		Variant:     win.variant,
		Score:       diags[best].Score,
		Lines:       win.lines,
		Diagnostics: diags,
	}, nil
}

// FromLines parses lines recognized elsewhere.
func (p *Pipeline) FromLines(lines []parsers.Line) Payload {
	return Assemble(p.registry, lines, nil)
}
