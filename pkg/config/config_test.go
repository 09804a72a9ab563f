package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "PARSER_MODE", "USE_CLOVA", "CLOVA_OCR_TIMEOUT", "MAX_UPLOAD_BYTES", "RECEIPT_ROW_MERGE_PX"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Port != "8081" || c.ParserMode != "basic" || !c.UseClova {
		t.Fatalf("defaults %+v", c)
	}
	if c.Clova.Timeout != 15*time.Second || c.MaxUploadBytes != 5<<20 {
		t.Fatalf("defaults %+v", c)
	}
	if c.ParserOptions.RowMergePx != 12 || c.ParserOptions.ColumnMatchPx != 90 {
		t.Fatalf("parser options %+v", c.ParserOptions)
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("CLOVA_OCR_TIMEOUT", "2.5")
	t.Setenv("USE_CLOVA", "false")
	t.Setenv("RECEIPT_ROW_MERGE_PX", "20")
	t.Setenv("MAX_UPLOAD_BYTES", "not-a-number")
	c := FromEnv()
	if c.Clova.Timeout != 2500*time.Millisecond {
		t.Fatalf("timeout %s", c.Clova.Timeout)
	}
	if c.UseClova || c.ClovaEnabled() {
		t.Fatalf("clova should be disabled")
	}
	if c.ParserOptions.RowMergePx != 20 {
		t.Fatalf("row merge %v", c.ParserOptions.RowMergePx)
	}
	if c.MaxUploadBytes != 5<<20 {
		t.Fatalf("bad integer must fall back, got %d", c.MaxUploadBytes)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("OCR_LANG=eng\nPARSER_MODE=auto\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OCR_LANG", "kor")
	t.Setenv("PARSER_MODE", "")
	os.Unsetenv("PARSER_MODE")
	c := Load(path)
	t.Cleanup(func() { os.Unsetenv("PARSER_MODE") })
	if c.OCRLang != "kor" {
		t.Fatalf("existing variable overridden: %q", c.OCRLang)
	}
	if c.ParserMode != "auto" {
		t.Fatalf(".env value not loaded: %q", c.ParserMode)
	}
}

func TestPipelineRejectsUnknownParserMode(t *testing.T) {
	t.Setenv("PARSER_MODE", "fancy")
	if _, err := FromEnv().Pipeline(); err == nil {
		t.Fatalf("expected error for unknown parser mode")
	}
	t.Setenv("PARSER_MODE", "auto")
	if _, err := FromEnv().Pipeline(); err != nil {
		t.Fatalf("auto: %v", err)
	}
}
