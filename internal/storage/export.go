package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/san-kum/ddesim/internal/dde"
)

// Number encodes NaN and Inf as JSON null.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

type ExportStats struct {
	Accepted     int     `json:"accepted"`
	Rejected     int     `json:"rejected"`
	Throttled    int     `json:"throttled"`
	Iterations   int     `json:"iterations"`
	Evaluations  int     `json:"evaluations"`
	MinPWSFactor float64 `json:"min_pws_factor"`
}

type ExportData struct {
	ID        string      `json:"id"`
	Model     string      `json:"model"`
	CreatedAt time.Time   `json:"created_at"`
	Duration  float64     `json:"duration"`
	SampleDt  float64     `json:"sample_dt"`
	Failed    bool        `json:"failed"`
	Stats     ExportStats `json:"stats"`
	Times     []float64   `json:"times"`
	States    [][]Number  `json:"states"`
}

func ExportJSON(w io.Writer, run *Run, times []float64, states []dde.State) error {
	data := ExportData{
		ID:        run.ID,
		Model:     run.Model,
		CreatedAt: run.CreatedAt,
		Duration:  run.Duration,
		SampleDt:  run.SampleDt,
		Failed:    run.Failed,
		Stats: ExportStats{
			Accepted:     run.Stats.Accepted,
			Rejected:     run.Stats.Rejected,
			Throttled:    run.Stats.Throttled,
			Iterations:   run.Stats.Iterations,
			Evaluations:  run.Stats.Evaluations,
			MinPWSFactor: run.Stats.MinPWSFactor,
		},
		Times:  times,
		States: make([][]Number, len(states)),
	}
	for i, s := range states {
		row := make([]Number, len(s))
		for j, v := range s {
			row[j] = Number(v)
		}
		data.States[i] = row
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV writes a header "time,y0,y1,..." and one row per sample.
func ExportCSV(w io.Writer, times []float64, states []dde.State) error {
	cw := csv.NewWriter(w)
	if len(states) > 0 {
		header := []string{"time"}
		for i := range states[0] {
			header = append(header, fmt.Sprintf("y%d", i))
		}
		if err := cw.Write(header); err != nil {
			return err
		}
	}

	for i, s := range states {
		row := []string{strconv.FormatFloat(times[i], 'g', -1, 64)}
		for _, v := range s {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
