package retry

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/disintegration/imaging"

	"spendocr/models"
	"spendocr/pkg/ocr"
	"spendocr/process/ingest"
)

// Store is the subset of *store.Store a retry run needs.
type Store interface {
	FailedUploads(ctx context.Context, limit int) ([]models.Upload, error)
	SaveExpense(ctx context.Context, owner, fileName string, p ocr.Payload) (models.Expense, error)
	ResolveUpload(ctx context.Context, uploadID uint, expenseID string) error
}

// Options configures Run.
type Options struct {
	// Dir is the base the uploads' store paths are relative to.
	Dir string
	// ProcessedDir receives recovered files; defaults to <Dir>/processed.
	ProcessedDir      string
	MaxProcessedBytes int64
	Owner             string
	DryRun            bool
	Limit             int
}

// Result counts what a run did, one per file.
type Result struct {
	Tried     int
	Recovered int
	Missing   int
	StillFail int
}

// Run re-runs OCR on every file with failed uploads that is still on disk.
// A file that now yields text gets one expense, every failed upload of that
// file is marked resolved, and the file moves to the processed directory.
// With DryRun set nothing is written or moved.
func Run(ctx context.Context, opts Options, proc ingest.Processor, st Store) (Result, error) {
	if opts.ProcessedDir == "" {
		opts.ProcessedDir = filepath.Join(opts.Dir, "processed")
	}
	if opts.MaxProcessedBytes <= 0 {
		opts.MaxProcessedBytes = ingest.DefaultMaxProcessedBytes
	}

	var res Result
	ups, err := st.FailedUploads(ctx, opts.Limit)
	if err != nil {
		return res, err
	}
	for _, group := range groupByPath(ups) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Tried++
		u := group[0]
		path := filepath.Join(opts.Dir, filepath.FromSlash(u.StorePath))
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			log.Printf("retry upload=%d file=%s: %v", u.ID, u.FileName, err)
			res.Missing++
			continue
		}
		p := proc.Process(ctx, img)
		if len(p.Lines) == 0 {
			log.Printf("retry upload=%d file=%s: still no text", u.ID, u.FileName)
			res.StillFail++
			continue
		}
		if opts.DryRun {
			log.Printf("[dry-run] upload=%d file=%s rows=%d source=%s amount=%s", u.ID, u.FileName, len(group), p.Parsed.Source, amountString(p.Parsed.Amount))
			res.Recovered++
			continue
		}
		rec, err := st.SaveExpense(ctx, opts.Owner, u.FileName, p)
		if err != nil {
			return res, fmt.Errorf("save expense for upload %d: %w", u.ID, err)
		}
		for _, g := range group {
			if err := st.ResolveUpload(ctx, g.ID, rec.ID); err != nil {
				return res, err
			}
		}
		if err := ingest.MoveToProcessed(path, opts.ProcessedDir, filepath.Base(path), opts.MaxProcessedBytes); err != nil {
			log.Printf("WARN failed to move recovered file %s: %v", u.FileName, err)
		}
		log.Printf("recovered upload=%d file=%s rows=%d expense=%s", u.ID, u.FileName, len(group), rec.ID)
		res.Recovered++
	}
	return res, nil
}

// groupByPath buckets uploads by store path, keeping first-seen order.
func groupByPath(ups []models.Upload) [][]models.Upload {
	idx := map[string]int{}
	var out [][]models.Upload
	for _, u := range ups {
		i, ok := idx[u.StorePath]
		if !ok {
			i = len(out)
			idx[u.StorePath] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], u)
	}
	return out
}

func amountString(a *int64) string {
	if a == nil {
		return "-"
	}
	return fmt.Sprint(*a)
}
