package ingest

import (
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// MoveToProcessed moves src into dir as name, downscaling images larger
// than maxBytes.
func MoveToProcessed(src, dir, name string, maxBytes int64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, name)

	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if fi.Size() <= maxBytes {
		return rename(src, dst)
	}
	img, err := imaging.Open(src)
	if err != nil {
		return rename(src, dst)
	}
	// encoded size roughly scales with area
	scale := math.Sqrt(float64(maxBytes) / float64(fi.Size()))
	scale = math.Max(0.1, math.Min(scale, 0.95))
	w := int(math.Max(1, math.Round(float64(img.Bounds().Dx())*scale)))
	h := int(math.Max(1, math.Round(float64(img.Bounds().Dy())*scale)))
	img = imaging.Resize(img, w, h, imaging.Lanczos)
	if err := imaging.Save(img, dst); err != nil {
		return rename(src, dst)
	}
	_ = os.Remove(src)

	// one more 80% pass if still over budget
	if fi2, err := os.Stat(dst); err == nil && fi2.Size() > maxBytes {
		if img2, err := imaging.Open(dst); err == nil {
			img2 = imaging.Resize(img2, int(float64(img2.Bounds().Dx())*0.8), 0, imaging.Lanczos)
			_ = imaging.Save(img2, dst)
		}
	}
	return nil
}

func rename(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyRemove(src, dst)
}

func copyRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
