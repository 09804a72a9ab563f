package parsers

import (
	"math"
	"sort"
	"strings"
)

// segment is one normalized fragment placed on the page.
type segment struct {
	text string
	cx   float64
	cy   float64
}

// row is a group of fragments sharing a visual line, left to right.
type row struct {
	text     string
	segments []segment
}

// clusterRows groups fragments whose vertical centers are within mergePx of
// the previous fragment. Fragments without a bounding box are ignored.
// Rows come out top to bottom; segments within a row left to right.
func clusterRows(lines []Line, mergePx float64) []row {
	placed := make([]segment, 0, len(lines))
	for _, l := range lines {
		x, y, ok := l.Center()
		if !ok {
			continue
		}
		placed = append(placed, segment{text: l.Text, cx: x, cy: y})
	}
	sort.SliceStable(placed, func(i, j int) bool {
		if placed[i].cy != placed[j].cy {
			return placed[i].cy < placed[j].cy
		}
		return placed[i].cx < placed[j].cx
	})

	var groups [][]segment
	lastY := math.NaN()
	for _, s := range placed {
		if math.IsNaN(lastY) || math.Abs(s.cy-lastY) > mergePx {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], s)
		lastY = s.cy
	}

	rows := make([]row, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].cx < g[j].cx })
		segs := make([]segment, 0, len(g))
		texts := make([]string, 0, len(g))
		for _, s := range g {
			s.text = Normalize(s.text)
			if s.text == "" {
				continue
			}
			segs = append(segs, s)
			texts = append(texts, s.text)
		}
		if len(segs) == 0 {
			continue
		}
		rows = append(rows, row{text: strings.Join(texts, " "), segments: segs})
	}
	return rows
}
