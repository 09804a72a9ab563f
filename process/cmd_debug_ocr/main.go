package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"spendocr/pkg/config"
	"spendocr/pkg/ocr"
)

func main() {
	f := flag.String("file", "", "image file to OCR")
	saveDir := flag.String("save-variants", "", "write the preprocessed variants to this directory")
	flag.Parse()
	if *f == "" {
		log.Fatalf("-file required")
	}

	cfg := config.Load()
	pipeline, err := cfg.Pipeline()
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}
	img, err := imaging.Open(*f, imaging.AutoOrientation(true))
	if err != nil {
		log.Fatalf("open: %v", err)
	}

	if *saveDir != "" {
		if err := os.MkdirAll(*saveDir, 0o755); err != nil {
			log.Fatal(err)
		}
		base := strings.TrimSuffix(filepath.Base(*f), filepath.Ext(*f))
		for _, v := range ocr.GenerateVariants(img) {
			out := filepath.Join(*saveDir, base+".ocr."+v.Name+".png")
			if err := imaging.Save(v.Image, out); err != nil {
				log.Fatalf("save %s: %v", out, err)
			}
			fmt.Fprintf(os.Stderr, "saved %s\n", out)
		}
	}

	p := pipeline.Process(context.Background(), img)
	if p.Debug != nil {
		fmt.Fprintf(os.Stderr, "engine=%s variant=%s\n", p.Debug.Engine, p.Debug.Variant)
		for _, d := range p.Debug.Variants {
			if d.Error != "" {
				fmt.Fprintf(os.Stderr, "  %-9s error=%s\n", d.Variant, d.Error)
				continue
			}
			fmt.Fprintf(os.Stderr, "  %-9s score=%.4f lines=%d avg_conf=%.4f\n", d.Variant, d.Score, d.Lines, d.AverageConfidence)
		}
		for _, e := range p.Debug.ClovaErrors {
			fmt.Fprintf(os.Stderr, "  clova error: %s\n", e)
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		log.Fatal(err)
	}
}
