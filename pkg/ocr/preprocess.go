package ocr

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

const (
	claheClipLimit = 3.0
	claheTiles     = 8

	// sigma of a 3x3 gaussian kernel
	preBlurSigma = 0.8
	// sigma of a 31px gaussian neighbourhood
	thresholdSigma = 5.0
	thresholdBias  = 8
)

// sharpenKernel boosts the center pixel against its 4-neighbourhood.
var sharpenKernel = [9]float64{
	0, -1, 0,
	-1, 5, -1,
	0, -1, 0,
}

// grayPlane returns the luma of img as a row-major byte slice.
func grayPlane(img image.Image) (pix []uint8, w, h int) {
	g := imaging.Grayscale(img)
	w, h = g.Bounds().Dx(), g.Bounds().Dy()
	pix = make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[y*w+x] = g.Pix[y*g.Stride+x*4]
		}
	}
	return pix, w, h
}

func fromPlane(pix []uint8, w, h int) *image.NRGBA {
	out := imaging.New(w, h, color.NRGBA{0, 0, 0, 255})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := pix[y*w+x]
			i := y*out.Stride + x*4
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = v, v, v
		}
	}
	return out
}

// clahe performs contrast-limited adaptive histogram equalization on the
// luma of img over a tiles x tiles grid, bilinearly blending tile mappings.
func clahe(img image.Image, clipLimit float64, tiles int) *image.NRGBA {
	pix, w, h := grayPlane(img)
	if w == 0 || h == 0 {
		return fromPlane(pix, w, h)
	}
	if tiles > w {
		tiles = w
	}
	if tiles > h {
		tiles = h
	}
	tileW := (w + tiles - 1) / tiles
	tileH := (h + tiles - 1) / tiles

	luts := make([][256]uint8, tiles*tiles)
	for ty := 0; ty < tiles; ty++ {
		for tx := 0; tx < tiles; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			var hist [256]int
			n := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[pix[y*w+x]]++
					n++
				}
			}
			luts[ty*tiles+tx] = clippedEqualization(hist, n, clipLimit)
		}
	}

	out := make([]uint8, len(pix))
	for y := 0; y < h; y++ {
		// position relative to tile centers
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := clampInt(int(math.Floor(fy)), 0, tiles-1)
		ty1 := clampInt(ty0+1, 0, tiles-1)
		wy := clampFloat(fy-float64(ty0), 0, 1)
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := clampInt(int(math.Floor(fx)), 0, tiles-1)
			tx1 := clampInt(tx0+1, 0, tiles-1)
			wx := clampFloat(fx-float64(tx0), 0, 1)

			v := pix[y*w+x]
			a := float64(luts[ty0*tiles+tx0][v])
			b := float64(luts[ty0*tiles+tx1][v])
			c := float64(luts[ty1*tiles+tx0][v])
			d := float64(luts[ty1*tiles+tx1][v])
			top := a*(1-wx) + b*wx
			bot := c*(1-wx) + d*wx
			out[y*w+x] = uint8(clampFloat(top*(1-wy)+bot*wy+0.5, 0, 255))
		}
	}
	return fromPlane(out, w, h)
}

// clippedEqualization clips the histogram at clipLimit times the mean bin
// height, redistributes the excess evenly and returns the cumulative mapping.
func clippedEqualization(hist [256]int, n int, clipLimit float64) [256]uint8 {
	var lut [256]uint8
	if n == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}
	limit := int(clipLimit * float64(n) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	bonus, rest := excess/256, excess%256
	for i := range hist {
		hist[i] += bonus
		if i < rest {
			hist[i]++
		}
	}
	sum := 0
	scale := 255 / float64(n)
	for i, c := range hist {
		sum += c
		lut[i] = uint8(clampFloat(float64(sum)*scale+0.5, 0, 255))
	}
	return lut
}

// sharpen applies the 3x3 sharpening kernel.
func sharpen(img image.Image) *image.NRGBA {
	return imaging.Convolve3x3(img, sharpenKernel, nil)
}

// adaptiveThreshold binarizes img against a gaussian-weighted local mean:
// a pixel stays white when it is brighter than mean-bias.
func adaptiveThreshold(img image.Image, sigma float64, bias int) *image.NRGBA {
	pix, w, h := grayPlane(img)
	mean, _, _ := grayPlane(imaging.Blur(img, sigma))
	out := make([]uint8, len(pix))
	for i, v := range pix {
		if int(v) > int(mean[i])-bias {
			out[i] = 255
		}
	}
	return fromPlane(out, w, h)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
