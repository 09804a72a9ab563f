package config

import (
	"spendocr/pkg/ocr"
	"spendocr/pkg/parsers"
)

// Registry returns the parser registry for the configured mode.
func (c Config) Registry() (*parsers.Registry, error) {
	return parsers.RegistryForMode(c.ParserMode, c.ParserOptions)
}

// Pipeline wires the local tesseract engine, the remote provider when
// enabled, and the parser registry.
func (c Config) Pipeline() (*ocr.Pipeline, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}
	local := ocr.NewTesseractRecognizer(c.OCRLang)
	local.TessdataPrefix = c.TessdataPrefix
	pc := ocr.PipelineConfig{
		Local:            local,
		Registry:         reg,
		ParallelVariants: c.ParallelVariants,
	}
	if c.ClovaEnabled() {
		pc.Remote = ocr.NewClovaClient(c.Clova)
	}
	return ocr.NewPipeline(pc), nil
}
