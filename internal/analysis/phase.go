package analysis

import (
	"math"
	"sort"
	"strings"
)

type Point struct{ X, Y float64 }

// Portrait holds data for a 2D phase space plot.
type Portrait struct {
	Points []Point
}

// DelayEmbedding pairs each sample x(t) with x(t-lag), interpolating linearly
// between samples. Samples with t-lag before the first sample are skipped.
// For a scalar DDE with lag equal to its delay this is the usual attractor
// plot.
func DelayEmbedding(times, values []float64, lag float64) *Portrait {
	p := &Portrait{Points: make([]Point, 0, len(times))}
	if len(times) == 0 || len(times) != len(values) || lag < 0 {
		return p
	}
	for k, t := range times {
		s := t - lag
		if s < times[0] {
			continue
		}
		p.Points = append(p.Points, Point{X: values[k], Y: interp(times, values, s)})
	}
	return p
}

func interp(times, values []float64, s float64) float64 {
	j := sort.SearchFloat64s(times, s)
	if j < len(times) && times[j] == s {
		return values[j]
	}
	if j == 0 {
		return values[0]
	}
	if j == len(times) {
		return values[len(values)-1]
	}
	w := (s - times[j-1]) / (times[j] - times[j-1])
	return values[j-1] + w*(values[j]-values[j-1])
}

// StatePortrait pairs xs[k] with ys[k].
func StatePortrait(xs, ys []float64) *Portrait {
	n := min(len(xs), len(ys))
	p := &Portrait{Points: make([]Point, n)}
	for k := 0; k < n; k++ {
		p.Points[k] = Point{xs[k], ys[k]}
	}
	return p
}

// Crossings records (x, y) where cross passes upward through threshold,
// interpolated between the two samples either side. It is a Poincare section
// of the sampled solution.
func Crossings(cross, xs, ys []float64, threshold float64) *Portrait {
	p := &Portrait{}
	n := min(len(cross), len(xs), len(ys))
	for k := 1; k < n; k++ {
		prev, curr := cross[k-1], cross[k]
		if !(prev < threshold && curr >= threshold) {
			continue
		}
		frac := (threshold - prev) / (curr - prev)
		if math.IsNaN(frac) || math.IsInf(frac, 0) {
			frac = 0.5
		}
		p.Points = append(p.Points, Point{
			X: xs[k-1] + frac*(xs[k]-xs[k-1]),
			Y: ys[k-1] + frac*(ys[k]-ys[k-1]),
		})
	}
	return p
}

// ASCII draws the portrait on a width x height grid of runes.
func (p *Portrait) ASCII(width, height int) string {
	if p == nil || len(p.Points) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	minX, maxX := p.Points[0].X, p.Points[0].X
	minY, maxY := p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := newCanvas(width, height)
	for _, pt := range p.Points {
		col := int((pt.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((pt.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	// axes, where they cross the visible area
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if col >= 0 && col < width && canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if row >= 0 && row < height && canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}
	return render(canvas)
}

func newCanvas(width, height int) [][]rune {
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}
	return canvas
}

func render(canvas [][]rune) string {
	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
