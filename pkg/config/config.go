package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"spendocr/pkg/ocr"
	"spendocr/pkg/parsers"
)

// Config holds every runtime setting. Values come from the environment,
// optionally seeded from a .env file.
type Config struct {
	Port          string
	DBDSN         string
	DBAutoMigrate bool
	JWTSecret     string

	OCRLang          string
	TessdataPrefix   string
	ParallelVariants bool

	ParserMode    string
	ParserOptions parsers.Options

	UseClova bool
	Clova    ocr.ClovaConfig

	MaxUploadBytes int64
	SaveUploads    bool
	UploadBase     string
}

// Load reads .env files (without overriding variables already set) and then
// the environment.
func Load(files ...string) Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("config: could not load %s: %v", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		Port:          str("PORT", "8081"),
		DBDSN:         str("DB_DSN", ""),
		DBAutoMigrate: boolean("DB_AUTO_MIGRATE", true),
		JWTSecret:     str("JWT_SECRET", ""),

		OCRLang:          str("OCR_LANG", "kor+eng"),
		TessdataPrefix:   str("TESSDATA_PREFIX", ""),
		ParallelVariants: boolean("OCR_PARALLEL_VARIANTS", true),

		ParserMode: str("PARSER_MODE", "basic"),
		ParserOptions: parsers.Options{
			RowMergePx:    float("RECEIPT_ROW_MERGE_PX", 12),
			ColumnMatchPx: float("RECEIPT_COLUMN_MATCH_PX", 90),
		},

		UseClova: boolean("USE_CLOVA", true),
		Clova: ocr.ClovaConfig{
			Endpoint:    str("CLOVA_OCR_ENDPOINT", ""),
			Secret:      str("CLOVA_OCR_SECRET", ""),
			Version:     str("CLOVA_OCR_VERSION", "V2"),
			Timeout:     seconds("CLOVA_OCR_TIMEOUT", 15*time.Second),
			JPEGQuality: int(integer("CLOVA_OCR_JPEG_QUALITY", 90)),
			RPS:         float("CLOVA_OCR_RPS", 5),
		},

		MaxUploadBytes: integer("MAX_UPLOAD_BYTES", 5<<20),
		SaveUploads:    boolean("SAVE_UPLOADS", false),
		UploadBase:     str("UPLOAD_BASE", "uploads"),
	}
}

// ClovaEnabled reports whether the remote provider should be tried first.
func (c Config) ClovaEnabled() bool {
	return c.UseClova && c.Clova.Endpoint != "" && c.Clova.Secret != ""
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func boolean(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	log.Printf("config: %s=%q is not a boolean, using %v", key, v, def)
	return def
}

func integer(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return n
}

func float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: %s=%q is not a number, using %v", key, v, def)
		return def
	}
	return f
}

// seconds accepts either a bare number of seconds or a Go duration.
func seconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: %s=%q is not a duration, using %s", key, v, def)
		return def
	}
	return d
}
