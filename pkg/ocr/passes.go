package ocr

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/disintegration/imaging"

	"spendocr/pkg/parsers"
)

// Variant names in evaluation order.
const (
	VariantOriginal = "original"
	VariantCLAHE    = "clahe"
	VariantAdaptive = "adaptive"
)

// Variant is one rendition of the input image submitted to recognition.
type Variant struct {
	Name  string
	Image image.Image
}

// GenerateVariants returns the unmodified image, a contrast-equalized and
// sharpened rendition, and a binarized rendition of the latter.
func GenerateVariants(img image.Image) []Variant {
	enhanced := sharpen(clahe(img, claheClipLimit, claheTiles))
	binary := adaptiveThreshold(imaging.Blur(enhanced, preBlurSigma), thresholdSigma, thresholdBias)
	return []Variant{
		{Name: VariantOriginal, Image: img},
		{Name: VariantCLAHE, Image: enhanced},
		{Name: VariantAdaptive, Image: binary},
	}
}

// attempt is the outcome of recognizing one variant.
type attempt struct {
	variant string
	lines   []parsers.Line
	err     error
}

// runVariants recognizes every variant. With parallel set each variant runs
// in its own goroutine; results always keep variant order.
func runVariants(ctx context.Context, rec Recognizer, variants []Variant, parallel bool) []attempt {
	out := make([]attempt, len(variants))
	run := func(i int) {
		v := variants[i]
		out[i] = attempt{variant: v.Name}
		defer func() {
			if r := recover(); r != nil {
				out[i].err = fmt.Errorf("recognizer panic: %v", r)
			}
		}()
		if err := ctx.Err(); err != nil {
			out[i].err = err
			return
		}
		out[i].lines, out[i].err = rec.Recognize(ctx, v.Image)
	}

	if !parallel {
		for i := range variants {
			run(i)
		}
	} else {
		var wg sync.WaitGroup
		for i := range variants {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				run(i)
			}(i)
		}
		wg.Wait()
	}

	for _, a := range out {
		if a.err != nil {
			log.Printf("OCR variant=%s engine=%s error=%v", a.variant, rec.Name(), a.err)
		}
	}
	return out
}
