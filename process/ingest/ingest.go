package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/patrickmn/go-cache"

	"spendocr/models"
	"spendocr/pkg/ocr"
)

// Processor turns an image into a payload. *ocr.Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, img image.Image) ocr.Payload
}

// Sink stores results. *store.Store satisfies it; a nil Sink means dry-run.
type Sink interface {
	SaveExpense(ctx context.Context, owner, fileName string, p ocr.Payload) (models.Expense, error)
	SaveUpload(ctx context.Context, u *models.Upload) error
	// HasFailedUpload reports whether storePath is already recorded as failed.
	HasFailedUpload(ctx context.Context, storePath string) (bool, error)
}

// DefaultMaxProcessedBytes is the size budget for files moved to processed.
const DefaultMaxProcessedBytes = 1_000_000

// Options configures an Ingester.
type Options struct {
	Dir string
	// ProcessedDir receives files once stored; defaults to <Dir>/processed.
	ProcessedDir string
	// KeepFiles leaves processed files in place.
	KeepFiles bool
	// MaxProcessedBytes is the size budget for moved files; larger images are downscaled.
	MaxProcessedBytes int64
	Owner             string
	Workers           int
	Verbose           bool
	// Out receives one JSON line per processed file when set.
	Out io.Writer
}

// Stats counts outcomes of a scan.
type Stats struct {
	Processed int64
	Failed    int64
	Skipped   int64
}

// MIME mapping to avoid sniffing every file
var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Ingester feeds a directory of images through the OCR pipeline.
type Ingester struct {
	opts Options
	proc Processor
	sink Sink

	// recently handled names, so repeated fs events do not reprocess a file
	seen  *cache.Cache
	outMu sync.Mutex

	processed, failed, skipped atomic.Int64
}

func New(opts Options, proc Processor, sink Sink) *Ingester {
	if opts.ProcessedDir == "" {
		opts.ProcessedDir = filepath.Join(opts.Dir, "processed")
	}
	if opts.MaxProcessedBytes <= 0 {
		opts.MaxProcessedBytes = DefaultMaxProcessedBytes
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Ingester{
		opts: opts,
		proc: proc,
		sink: sink,
		seen: cache.New(10*time.Minute, time.Minute),
	}
}

func (in *Ingester) logV(format string, args ...any) {
	if in.opts.Verbose {
		log.Printf(format, args...)
	}
}

// Stats returns counters accumulated so far.
func (in *Ingester) Stats() Stats {
	return Stats{Processed: in.processed.Load(), Failed: in.failed.Load(), Skipped: in.skipped.Load()}
}

// Scan processes every supported image currently in the directory.
func (in *Ingester) Scan(ctx context.Context) (Stats, error) {
	files, err := listImageFiles(in.opts.Dir)
	if err != nil {
		return in.Stats(), err
	}
	log.Printf("Scanning %d files (workers=%d)", len(files), in.opts.Workers)
	ch := make(chan string, len(files))
	for _, f := range files {
		ch <- f
	}
	close(ch)
	in.runWorkerPool(ctx, ch)
	return in.Stats(), nil
}

// Watch processes files as they appear until ctx is cancelled. Events for a
// file are debounced until it has been quiet for settle.
func (in *Ingester) Watch(ctx context.Context, settle time.Duration) error {
	if settle <= 0 {
		settle = 300 * time.Millisecond
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(in.opts.Dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", in.opts.Dir)

	// pending maps name -> last event time; entries expire if a file never settles
	pending := cache.New(time.Minute, time.Minute)
	fileCh := make(chan string, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		in.runWorkerPool(ctx, fileCh)
	}()

	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(fileCh)
			<-done
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				close(fileCh)
				<-done
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !isSupportedExt(name) {
				continue
			}
			pending.Set(name, time.Now(), cache.DefaultExpiration)
		case <-ticker.C:
			now := time.Now()
			for name, item := range pending.Items() {
				last, _ := item.Object.(time.Time)
				if now.Sub(last) > settle {
					pending.Delete(name)
					select {
					case fileCh <- name:
					case <-ctx.Done():
					}
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				close(fileCh)
				<-done
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

func (in *Ingester) runWorkerPool(ctx context.Context, files <-chan string) {
	var wg sync.WaitGroup
	for i := 0; i < in.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range files {
				if ctx.Err() != nil {
					in.skipped.Add(1)
					continue
				}
				in.processSingleFile(ctx, name)
			}
		}()
	}
	wg.Wait()
}

// result is the JSON line written to Options.Out.
type result struct {
	File    string       `json:"file"`
	ID      string       `json:"id,omitempty"`
	Error   string       `json:"error,omitempty"`
	Payload *ocr.Payload `json:"payload,omitempty"`
}

func (in *Ingester) processSingleFile(ctx context.Context, name string) {
	if _, ok := in.seen.Get(name); ok {
		in.logV("SKIP recently processed %s", name)
		in.skipped.Add(1)
		return
	}
	in.seen.SetDefault(name, true)
	path := filepath.Join(in.opts.Dir, name)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		log.Printf("ERROR decode %s: %v", name, err)
		in.failed.Add(1)
		in.recordFailure(ctx, name, "invalid image")
		in.emit(result{File: name, Error: err.Error()})
		return
	}

	start := time.Now()
	payload := in.proc.Process(ctx, img)
	in.logV("OCR %s lines=%d took=%s", name, len(payload.Lines), time.Since(start).Round(time.Millisecond))
	if len(payload.Lines) == 0 {
		in.failed.Add(1)
		in.recordFailure(ctx, name, ocr.ErrNoText.Error())
		in.emit(result{File: name, Error: ocr.ErrNoText.Error(), Payload: &payload})
		return
	}

	res := result{File: name, Payload: &payload}
	if in.sink != nil {
		rec, err := in.sink.SaveExpense(ctx, in.opts.Owner, name, payload)
		if err != nil {
			log.Printf("ERROR store %s: %v", name, err)
			in.failed.Add(1)
			in.seen.Delete(name)
			return
		}
		res.ID = rec.ID
		up := models.Upload{FileName: name, StorePath: name, ContentType: mimeFromExt(name), ExpenseID: &rec.ID}
		if !in.opts.KeepFiles {
			up.StorePath = filepath.ToSlash(filepath.Join(filepath.Base(in.opts.ProcessedDir), name))
		}
		if fi, err := os.Stat(path); err == nil {
			up.Size = fi.Size()
		}
		if err := in.sink.SaveUpload(ctx, &up); err != nil {
			log.Printf("WARN record upload %s: %v", name, err)
		}
		log.Printf("EXPENSE id=%s source=%s file=%s", rec.ID, payload.Parsed.Source, name)
	}
	in.processed.Add(1)
	in.emit(res)

	if in.opts.KeepFiles || in.sink == nil {
		return
	}
	// Move the processed file out so new images are processed only once
	if err := MoveToProcessed(path, in.opts.ProcessedDir, name, in.opts.MaxProcessedBytes); err != nil {
		log.Printf("WARN failed to move processed file %s: %v", name, err)
	} else {
		in.logV("moved processed %s to %s", name, in.opts.ProcessedDir)
	}
}

func (in *Ingester) recordFailure(ctx context.Context, name, reason string) {
	if in.sink == nil {
		return
	}
	// a file left in place fails again on every scan; one row is enough
	known, err := in.sink.HasFailedUpload(ctx, name)
	if err != nil {
		log.Printf("WARN lookup failed upload %s: %v", name, err)
		return
	}
	if known {
		in.logV("failed upload %s already recorded", name)
		return
	}
	up := models.Upload{FileName: name, StorePath: name, ContentType: mimeFromExt(name), Failed: true, FailedReason: reason}
	if err := in.sink.SaveUpload(ctx, &up); err != nil {
		log.Printf("WARN record failed upload %s: %v", name, err)
	}
}

func (in *Ingester) emit(r result) {
	if in.opts.Out == nil {
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		log.Printf("WARN encode result %s: %v", r.File, err)
		return
	}
	in.outMu.Lock()
	defer in.outMu.Unlock()
	fmt.Fprintln(in.opts.Out, string(b))
}

func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func isSupportedExt(name string) bool {
	// ignore temp files written by the pipeline or editors
	if strings.Contains(name, ".ocr.") || strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

func mimeFromExt(name string) string {
	return extMime[strings.ToLower(filepath.Ext(name))]
}
