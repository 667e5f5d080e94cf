package storage

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/ddesim/internal/dde"
)

var svgColors = []string{"#00ffff", "#ffcc00", "#00ff88", "#ff00ff", "#ff4444", "#4488ff"}

// ExportSVG draws every component against time as an SVG line chart. Non
// finite samples break the line.
func ExportSVG(w io.Writer, times []float64, states []dde.State, width, height int) error {
	if len(times) < 2 || len(states) != len(times) {
		return fmt.Errorf("svg export needs at least two samples")
	}

	minX, maxX := times[0], times[len(times)-1]
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range states {
		for _, v := range s {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				minY, maxY = math.Min(minY, v), math.Max(maxY, v)
			}
		}
	}
	if math.IsInf(minY, 1) {
		return fmt.Errorf("svg export: no finite samples")
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for c := range states[0] {
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, svgColors[c%len(svgColors)])
		pen := false
		for k, t := range times {
			v := states[k][c]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				pen = false
				continue
			}
			x := (t - minX) / rangeX * float64(width)
			y := float64(height) - (v-minY)/rangeY*float64(height)
			if pen {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
				pen = true
			}
		}
		sb.WriteString("\"/>\n")
	}
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
