package main

import (
	"fmt"
	"log"
	"os"

	"spendocr/pkg/store"
)

// expenses is nil when persistence is disabled.
var expenses *store.Store

func initDB() error {
	if cfg.DBDSN == "" {
		log.Printf("DB_DSN not set; payloads will not be persisted")
		return nil
	}
	s, err := store.Open(cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to connect postgres database: %w", err)
	}
	// Any permission errors are logged and ignored.
	if cfg.DBAutoMigrate {
		if err := s.Migrate(); err != nil {
			log.Printf("migration warning: %v", err)
		}
	}
	expenses = s
	return nil
}

// ensureUploadBase creates the base uploads directory.
func ensureUploadBase() error {
	base := uploadBaseDir()
	if err := os.MkdirAll(base, 0755); err != nil {
		log.Printf("failed to create upload base dir %s: %v", base, err)
		return err
	}
	return nil
}

// uploadBaseDir returns the base directory for kept uploads (UPLOAD_BASE).
func uploadBaseDir() string {
	if cfg.UploadBase != "" {
		return cfg.UploadBase
	}
	return "uploads"
}
