package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"spendocr/pkg/auth"
	"spendocr/pkg/config"
)

func main() {
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime (0 = no expiry)")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("usage: go run ./cmd/issue_token [-ttl 720h] <owner>")
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set in environment")
	}
	tok, err := auth.Sign([]byte(cfg.JWTSecret), flag.Arg(0), *ttl)
	if err != nil {
		log.Fatalf("sign failed: %v", err)
	}
	fmt.Println(tok)
}
