package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"spendocr/pkg/config"
	"spendocr/pkg/store"
	"spendocr/process/export"
)

func main() {
	owner := flag.String("owner", "", "only export this owner's expenses")
	month := flag.String("month", time.Now().UTC().Format("2006-01"), "month to export (YYYY-MM)")
	out := flag.String("out", "", "write an xlsx workbook to this path")
	list := flag.Bool("list", false, "list matching rows")
	flag.Parse()

	cfg := config.Load()
	if cfg.DBDSN == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export DB_DSN and retry")
		os.Exit(2)
	}
	start, end, err := export.MonthRange(*month)
	if err != nil {
		log.Fatal(err)
	}
	st, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	exps, err := st.ExpensesBetween(context.Background(), *owner, start, end)
	if err != nil {
		log.Fatal(err)
	}

	s := export.Summarize(exps)
	fmt.Printf("Report owner=%q month=%s (UTC):\n", *owner, *month)
	fmt.Printf("  records=%d with_amount=%d total_amount=%d\n", s.Records, s.WithAmt, s.Total)
	sources := make([]string, 0, len(s.BySource))
	for src := range s.BySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		fmt.Printf("  %s=%d\n", src, s.BySource[src])
	}
	if *list {
		for _, e := range exps {
			amt := "-"
			if e.Amount != nil {
				amt = fmt.Sprint(*e.Amount)
			}
			fmt.Printf("%s|%s|%s|%s|%s\n", e.ID, e.Source, e.FileName, amt, e.CreatedAt.Format(time.RFC3339))
		}
	}

	if *out == "" {
		return
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	if err := export.WriteXLSX(f, exps); err != nil {
		f.Close()
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s\n", *out)
}
