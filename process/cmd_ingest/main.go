package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"spendocr/pkg/config"
	"spendocr/pkg/store"
	"spendocr/process/ingest"
)

func main() {
	dir := flag.String("dir", "public/receipts", "directory of receipt images")
	watch := flag.Bool("watch", false, "keep watching the directory for new files")
	workers := flag.Int("workers", 0, "concurrent files (0 = NumCPU)")
	owner := flag.String("owner", "", "owner recorded on stored expenses")
	verbose := flag.Bool("verbose", false, "per-file logging")
	dry := flag.Bool("dry-run", false, "print payloads as JSON lines instead of storing them")
	keep := flag.Bool("keep", false, "leave processed files in place")
	flag.Parse()

	cfg := config.Load()
	pipeline, err := cfg.Pipeline()
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	opts := ingest.Options{Dir: *dir, Owner: *owner, Workers: *workers, Verbose: *verbose, KeepFiles: *keep}
	var sink ingest.Sink
	switch {
	case *dry:
		opts.Out = os.Stdout
	case cfg.DBDSN == "":
		fmt.Fprintln(os.Stderr, "DB_DSN not set; use -dry-run or export DB_DSN and retry")
		os.Exit(2)
	default:
		st, err := store.Open(cfg.DBDSN)
		if err != nil {
			log.Fatal(err)
		}
		if cfg.DBAutoMigrate {
			if err := st.Migrate(); err != nil {
				log.Printf("migration warning: %v", err)
			}
		}
		sink = st
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := ingest.New(opts, pipeline, sink)
	stats, err := in.Scan(ctx)
	if err != nil {
		log.Fatalf("scan: %v", err)
	}
	log.Printf("scan done processed=%d failed=%d skipped=%d", stats.Processed, stats.Failed, stats.Skipped)
	if !*watch {
		return
	}
	if err := in.Watch(ctx, 0); err != nil {
		log.Fatalf("watch: %v", err)
	}
	stats = in.Stats()
	log.Printf("stopped processed=%d failed=%d skipped=%d", stats.Processed, stats.Failed, stats.Skipped)
}
