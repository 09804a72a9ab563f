package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"spendocr/pkg/config"
	"spendocr/pkg/store"
	"spendocr/process/retry"
)

func main() {
	dir := flag.String("dir", "public/receipts", "base directory of failed uploads")
	owner := flag.String("owner", "", "owner recorded on recovered expenses")
	dry := flag.Bool("dry-run", true, "dry-run: don't write to DB")
	limit := flag.Int("limit", 0, "max uploads to retry (0 = all)")
	flag.Parse()

	cfg := config.Load()
	if cfg.DBDSN == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export and retry")
		os.Exit(2)
	}
	pipeline, err := cfg.Pipeline()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.DBDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	res, err := retry.Run(context.Background(), retry.Options{Dir: *dir, Owner: *owner, DryRun: *dry, Limit: *limit}, pipeline, st)
	fmt.Printf("tried=%d recovered=%d missing=%d still_failing=%d\n", res.Tried, res.Recovered, res.Missing, res.StillFail)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}
