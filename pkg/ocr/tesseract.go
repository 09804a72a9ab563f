package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"spendocr/pkg/parsers"
)

// TesseractRecognizer runs the local tesseract engine and reports one line
// per recognized text line.
type TesseractRecognizer struct {
	Languages   []string
	PageSegMode gosseract.PageSegMode
	// TessdataPrefix overrides where traineddata files are looked up.
	TessdataPrefix string
}

// NewTesseractRecognizer accepts tesseract's "kor+eng" language notation.
func NewTesseractRecognizer(lang string) *TesseractRecognizer {
	var langs []string
	for _, l := range strings.Split(lang, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return &TesseractRecognizer{Languages: langs, PageSegMode: gosseract.PSM_AUTO}
}

func (t *TesseractRecognizer) Name() string { return "tesseract" }

// Recognize returns the text lines tesseract finds in img. An image without
// text yields no lines and no error.
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) ([]parsers.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if t.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if len(t.Languages) > 0 {
		if err := client.SetLanguage(t.Languages...); err != nil {
			return nil, fmt.Errorf("set language: %w", err)
		}
	}
	if err := client.SetPageSegMode(t.PageSegMode); err != nil {
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("ocr error: %w", err)
	}

	lines := make([]parsers.Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		conf := b.Confidence / 100
		lines = append(lines, parsers.Line{
			Text:       text,
			Confidence: &conf,
			BBox:       rectPolygon(b.Box),
		})
	}
	return lines, nil
}

// rectPolygon lists the corners clockwise from top-left.
func rectPolygon(r image.Rectangle) []parsers.Point {
	x0, y0 := float64(r.Min.X), float64(r.Min.Y)
	x1, y1 := float64(r.Max.X), float64(r.Max.Y)
	return []parsers.Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}
