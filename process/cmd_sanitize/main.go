package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"spendocr/pkg/config"
	"spendocr/pkg/store"
	"spendocr/process/sanitize"
)

func main() {
	var (
		dryRun = flag.Bool("dry-run", true, "Don't perform destructive actions; show what would be done")
		yes    = flag.Bool("yes", false, "Confirm destructive action (required to actually truncate)")
		tables = flag.String("tables", sanitize.DefaultTables, "Comma-separated list of tables to truncate")
	)
	flag.Parse()

	cfg := config.Load()
	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN must be set to run sanitize")
	}
	st, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	existing, err := sanitize.ExistingTables(ctx, st.DB(), sanitize.ParseTables(*tables))
	if err != nil {
		log.Fatal(err)
	}
	if len(existing) == 0 {
		log.Println("no requested tables present in the database; nothing to do")
		return
	}

	fmt.Println("Tables considered for truncation:")
	for _, t := range existing {
		fmt.Printf(" - %s\n", t)
	}
	if *dryRun {
		fmt.Println("dry-run enabled; no changes will be made. Use --dry-run=false --yes to execute.")
		return
	}
	if !*yes {
		fmt.Println("Destructive operation. Pass --yes to confirm execution. Aborting.")
		return
	}
	if err := sanitize.Truncate(ctx, st.DB(), existing); err != nil {
		log.Fatal(err)
	}
	log.Println("Truncate completed.")
}
