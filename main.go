package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"spendocr/pkg/config"
	"spendocr/pkg/ocr"
)

var (
	cfg       config.Config
	jwtSecret []byte // empty disables bearer auth
	pipeline  *ocr.Pipeline
)

func main() {
	// .env is optional and never overrides the real environment
	cfg = config.Load()
	jwtSecret = []byte(cfg.JWTSecret)

	// Support a lightweight migrate command: `./spendocr migrate`
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if cfg.DBDSN == "" {
			log.Fatal("DB_DSN is not set; nothing to migrate")
		}
		cfg.DBAutoMigrate = true
		if err := initDB(); err != nil {
			log.Fatal(err)
		}
		fmt.Println("migration completed")
		return
	}

	if err := initDB(); err != nil {
		log.Fatal(err)
	}
	var err error
	pipeline, err = cfg.Pipeline()
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}
	if len(jwtSecret) == 0 {
		log.Printf("JWT_SECRET not set; API is open and records have no owner")
	}
	log.Printf("OCR lang=%s tessdata=%q parser_mode=%s clova=%v parallel_variants=%v",
		cfg.OCRLang, cfg.TessdataPrefix, cfg.ParserMode, cfg.ClovaEnabled(), cfg.ParallelVariants)

	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	setupRoutes(r)

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
