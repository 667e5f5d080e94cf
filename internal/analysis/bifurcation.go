package analysis

import "math"

// BifurcationPoint holds the distinct peak values seen for one parameter
// value. A single value means a steady or period-1 solution.
type BifurcationPoint struct {
	Param  float64
	Values []float64
}

// Peaks returns the interior local maxima of data.
func Peaks(data []float64) []float64 {
	var out []float64
	for k := 1; k+1 < len(data); k++ {
		if data[k] > data[k-1] && data[k] >= data[k+1] {
			out = append(out, data[k])
		}
	}
	return out
}

// DistinctPeaks returns the peaks of data after skipping the first skip
// samples, merging values closer than tol. A series without peaks, such as
// one that settled to an equilibrium, yields its last value.
func DistinctPeaks(data []float64, skip int, tol float64) []float64 {
	if skip >= len(data) {
		return nil
	}
	data = data[max(skip, 0):]
	peaks := Peaks(data)
	if len(peaks) == 0 {
		return []float64{data[len(data)-1]}
	}

	var out []float64
	for _, v := range peaks {
		dup := false
		for _, seen := range out {
			if math.Abs(seen-v) <= tol {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

// BifurcationToASCII plots peak values against the parameter, one column
// per point.
func BifurcationToASCII(data []BifurcationPoint, width, height int) string {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	var minVal, maxVal float64
	found := false
	for _, p := range data {
		for _, v := range p.Values {
			if math.IsNaN(v) {
				continue
			}
			if !found {
				minVal, maxVal = v, v
				found = true
				continue
			}
			minVal, maxVal = math.Min(minVal, v), math.Max(maxVal, v)
		}
	}
	if !found {
		return ""
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}

	canvas := newCanvas(width, height)
	for i, p := range data {
		col := min(i*width/len(data), width-1)
		for _, v := range p.Values {
			if math.IsNaN(v) {
				continue
			}
			row := height - 1 - int((v-minVal)/(maxVal-minVal)*float64(height-1))
			if row >= 0 && row < height {
				canvas[row][col] = '•'
			}
		}
	}
	return render(canvas)
}
